package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinker495/associate/summary"
)

var (
	summariesFormat string
	summariesShow   string
)

var summariesCmd = &cobra.Command{
	Use:   "summaries <project-dir> <session-id>",
	Short: "List completion summaries saved for a session",
	Long: `List the completion summaries captured from a session's Stop hook records.

project-dir is either the working directory the session ran in (the hook
record's cwd) or its encoded form as stored under the state directory, e.g.
-home-user-app. Use --show <filename> to print one summary.`,
	Args: cobra.ExactArgs(2),
	RunE: runSummaries,
}

func init() {
	summariesCmd.Flags().StringVarP(&summariesFormat, "format", "f", "", "Output format: json or toon (default: table)")
	summariesCmd.Flags().StringVar(&summariesShow, "show", "", "Print the summary file with this name")
	rootCmd.AddCommand(summariesCmd)
}

func runSummaries(cmd *cobra.Command, args []string) error {
	if summariesFormat != "" {
		if err := validFormat(summariesFormat); err != nil {
			return err
		}
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	store := summary.NewStore(cfg.SummariesRoot(), logger)
	w := cmd.OutOrStdout()
	projectDir := projectDirName(args[0])

	if summariesShow != "" {
		content, err := store.Read(projectDir, summariesShow)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, content)
		return err
	}

	files, err := store.List(projectDir, args[1])
	if err != nil {
		return err
	}
	return printSummaries(w, files, summariesFormat)
}

// projectDirName encodes an absolute working directory; anything else is
// taken as already encoded.
func projectDirName(arg string) string {
	if filepath.IsAbs(arg) {
		return summary.EncodeProjectPath(arg)
	}
	return arg
}

func printSummaries(w io.Writer, files []summary.File, format string) error {
	if format != "" {
		return writeRecord(w, format, files)
	}
	if len(files) == 0 {
		fmt.Fprintln(w, "No summaries found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tCREATED\tPREVIEW")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Filename, f.Created.Format(time.DateTime), firstLine(f.Preview))
	}
	return tw.Flush()
}
