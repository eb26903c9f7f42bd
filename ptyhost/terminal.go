package ptyhost

import (
	"sort"
	"strings"
)

// Terminal is the capability set the registry needs from a running session.
// Read belongs to the session's pump; the other methods to the registry.
type Terminal interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(rows, cols uint16) error
	// Terminate stops the process and releases the terminal. A blocked Read
	// returns an error afterwards. Safe to call more than once.
	Terminate() error
}

// Command describes the process to launch inside a new terminal.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
	Rows uint16
	Cols uint16
}

// Starter allocates a terminal and starts cmd inside it.
type Starter func(cmd Command) (Terminal, error)

// BuildEnv returns base without the stripped variables, with the terminal
// capability variables and extras set.
func BuildEnv(base []string, strip []string, extra map[string]string) []string {
	drop := map[string]bool{"TERM": true, "COLORTERM": true}
	for _, k := range strip {
		drop[k] = true
	}
	for k := range extra {
		drop[k] = true
	}

	env := make([]string, 0, len(base)+len(extra)+2)
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if drop[key] {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "TERM=xterm-256color", "COLORTERM=truecolor")

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
