package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tinker495/associate/transcript"
)

var (
	transcriptTail     int
	transcriptFormat   string
	transcriptFollow   bool
	transcriptInterval time.Duration
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript <path>",
	Short: "Show the recent items of a session transcript",
	Long: `Print the display items derived from the last lines of a JSONL session
transcript (user and assistant messages, tool calls and results, system and
progress records).

With --follow, open an interactive viewer that polls the transcript for new
lines. Keys: up/down or j/k scroll, g/G jump to top/bottom, q quits.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscript,
}

func init() {
	transcriptCmd.Flags().IntVarP(&transcriptTail, "tail", "n", 0, "Number of trailing lines to read (default: transcript.tail_lines)")
	transcriptCmd.Flags().StringVarP(&transcriptFormat, "format", "f", "", "Output format: json or toon (default: text)")
	transcriptCmd.Flags().BoolVar(&transcriptFollow, "follow", false, "Keep polling the transcript in an interactive viewer")
	transcriptCmd.Flags().DurationVar(&transcriptInterval, "interval", time.Second, "Poll interval for --follow")
	rootCmd.AddCommand(transcriptCmd)
}

func runTranscript(cmd *cobra.Command, args []string) error {
	if transcriptFormat != "" {
		if err := validFormat(transcriptFormat); err != nil {
			return err
		}
	}
	if transcriptFollow && transcriptFormat != "" {
		return fmt.Errorf("--format cannot be combined with --follow")
	}

	cfg, _, err := setup()
	if err != nil {
		return err
	}
	tail := transcriptTail
	if tail <= 0 {
		tail = cfg.Transcript.TailLines
	}

	window := transcript.NewWindow(args[0], tail, cfg.Transcript.MaxItems)
	res, err := window.Open()
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}

	if transcriptFollow {
		model := newViewer(window, res, transcriptInterval)
		_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
		return err
	}

	w := cmd.OutOrStdout()
	if transcriptFormat != "" {
		return writeRecord(w, transcriptFormat, res)
	}
	return printItems(w, res.Items)
}

func printItems(w io.Writer, items []transcript.Item) error {
	for _, item := range items {
		if _, err := fmt.Fprintf(w, "%s  %-11s  %s\n", itemTime(item), item.Kind, firstLine(item.Text)); err != nil {
			return err
		}
	}
	return nil
}

func itemTime(item transcript.Item) string {
	if item.Timestamp == nil {
		return "--:--:--"
	}
	return item.Timestamp.Local().Format(time.TimeOnly)
}

// firstLine returns the first non-empty line of s, marking dropped lines
// with an ellipsis.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, rest, found := strings.Cut(s, "\n")
	line = strings.TrimRight(line, "\r")
	if found && strings.TrimSpace(rest) != "" {
		return line + " …"
	}
	return line
}
