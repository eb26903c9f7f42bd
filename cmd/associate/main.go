package main

import (
	"os"

	"github.com/tinker495/associate/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
