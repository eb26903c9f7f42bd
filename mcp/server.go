// Package mcp exposes session control, transcript windows and summaries as
// MCP tools, and forwards bus events to connected clients as notifications.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"log/slog"

	"github.com/alpkeskin/gotoon"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tinker495/associate/events"
	"github.com/tinker495/associate/ptyhost"
	"github.com/tinker495/associate/summary"
	"github.com/tinker495/associate/transcript"
)

// EventNotification is the notification method carrying bus events.
const EventNotification = "notifications/associate/event"

// SessionHost is the session registry as seen by the tools.
type SessionHost interface {
	Spawn(ctx context.Context, req ptyhost.SpawnRequest) (string, error)
	Resize(id string, rows, cols uint16) error
	Write(id string, data []byte) error
	Kill(id string) error
	List() []string
	State(id string) (ptyhost.State, error)
}

type Transcripts interface {
	Open(path string) (transcript.OpenResult, error)
	Poll(path string, offset int64) (transcript.PollResult, error)
}

type Summaries interface {
	List(projectDir, sessionID string) ([]summary.File, error)
	Read(projectDir, filename string) (string, error)
}

// Server wraps the MCP server with the associate tools.
type Server struct {
	mcpServer   *server.MCPServer
	sessions    SessionHost
	transcripts Transcripts
	summaries   Summaries
	logger      *slog.Logger
}

// SessionInfo is the session_list output row.
type SessionInfo struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// encodeOutput encodes data in the specified format (json or toon).
func encodeOutput(data any, format string) (string, error) {
	switch format {
	case "toon":
		return gotoon.Encode(data)
	default: // "json"
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonBytes), nil
	}
}

func NewServer(sessions SessionHost, transcripts Transcripts, summaries Summaries, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions:    sessions,
		transcripts: transcripts,
		summaries:   summaries,
		logger:      logger,
	}

	s.mcpServer = server.NewMCPServer(
		"associate",
		version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()

	return s
}

func formatOption() mcp.ToolOption {
	return mcp.WithString("format",
		mcp.Description("Output format: 'json' (default) or 'toon' (token-efficient)"),
	)
}

func (s *Server) registerTools() {
	spawnTool := mcp.NewTool("session_spawn",
		mcp.WithDescription("Start an interactive agent session in a new pseudo-terminal. Output is streamed as terminal-output notifications."),
		mcp.WithString("cwd",
			mcp.Required(),
			mcp.Description("Working directory for the agent"),
		),
		mcp.WithString("id",
			mcp.Description("Session id (generated when omitted)"),
		),
		mcp.WithString("resume_id",
			mcp.Description("Agent conversation id to resume (optional)"),
		),
		mcp.WithNumber("rows",
			mcp.Description("Terminal rows (default: 24)"),
		),
		mcp.WithNumber("cols",
			mcp.Description("Terminal columns (default: 80)"),
		),
	)
	s.mcpServer.AddTool(spawnTool, s.handleSpawn)

	resizeTool := mcp.NewTool("session_resize",
		mcp.WithDescription("Change the terminal size of a live session."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithNumber("rows", mcp.Required(), mcp.Description("Terminal rows")),
		mcp.WithNumber("cols", mcp.Required(), mcp.Description("Terminal columns")),
	)
	s.mcpServer.AddTool(resizeTool, s.handleResize)

	writeTool := mcp.NewTool("session_write",
		mcp.WithDescription("Send input to a session's terminal. Include \\r to submit a line."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("data", mcp.Required(), mcp.Description("Bytes to write, as text")),
	)
	s.mcpServer.AddTool(writeTool, s.handleWrite)

	killTool := mcp.NewTool("session_kill",
		mcp.WithDescription("Terminate a session. Killing an unknown id succeeds."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session id")),
	)
	s.mcpServer.AddTool(killTool, s.handleKill)

	listTool := mcp.NewTool("session_list",
		mcp.WithDescription("List live sessions and their state."),
		formatOption(),
	)
	s.mcpServer.AddTool(listTool, s.handleList)

	openTool := mcp.NewTool("transcript_open",
		mcp.WithDescription("Open a JSONL transcript and return the items of its most recent lines plus the offset to poll from."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the transcript file")),
		formatOption(),
	)
	s.mcpServer.AddTool(openTool, s.handleTranscriptOpen)

	pollTool := mcp.NewTool("transcript_poll",
		mcp.WithDescription("Return transcript items appended after offset. Fails with a rotation error when the file shrank; open it again."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the transcript file")),
		mcp.WithNumber("offset", mcp.Required(), mcp.Description("Offset returned by the previous open or poll")),
		formatOption(),
	)
	s.mcpServer.AddTool(pollTool, s.handleTranscriptPoll)

	summaryListTool := mcp.NewTool("summary_list",
		mcp.WithDescription("List saved completion summaries of a session."),
		mcp.WithString("project_dir", mcp.Required(), mcp.Description("Encoded project directory name, e.g. -home-user-app")),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		formatOption(),
	)
	s.mcpServer.AddTool(summaryListTool, s.handleSummaryList)

	summaryReadTool := mcp.NewTool("summary_read",
		mcp.WithDescription("Read the markdown of one saved summary."),
		mcp.WithString("project_dir", mcp.Required(), mcp.Description("Encoded project directory name")),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Summary filename from summary_list")),
	)
	s.mcpServer.AddTool(summaryReadTool, s.handleSummaryRead)
}

func validFormat(format string) bool {
	return format == "json" || format == "toon"
}

func (s *Server) encoded(data any, format string) (*mcp.CallToolResult, error) {
	if !validFormat(format) {
		return mcp.NewToolResultError("format must be 'json' or 'toon'"), nil
	}
	out, err := encodeOutput(data, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// terminalSize reads a row or column count, rejecting values a terminal
// cannot hold.
func terminalSize(request mcp.CallToolRequest, key string, def int) (uint16, error) {
	v := request.GetInt(key, def)
	if v < 0 || v > 0xffff {
		return 0, fmt.Errorf("%s must be between 1 and 65535", key)
	}
	return uint16(v), nil
}

func (s *Server) handleSpawn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cwd, err := request.RequireString("cwd")
	if err != nil {
		return mcp.NewToolResultError("cwd parameter is required"), nil
	}
	rows, err := terminalSize(request, "rows", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cols, err := terminalSize(request, "cols", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := s.sessions.Spawn(ctx, ptyhost.SpawnRequest{
		ID:       request.GetString("id", ""),
		ResumeID: request.GetString("resume_id", ""),
		Cwd:      cwd,
		Rows:     rows,
		Cols:     cols,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.encoded(map[string]string{"id": id}, "json")
}

func (s *Server) handleResize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	rows, err := terminalSize(request, "rows", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cols, err := terminalSize(request, "cols", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.sessions.Resize(id, rows, cols); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (s *Server) handleWrite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	data, err := request.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError("data parameter is required"), nil
	}

	if err := s.sessions.Write(id, []byte(data)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (s *Server) handleKill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	if err := s.sessions.Kill(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "json")

	infos := []SessionInfo{}
	for _, id := range s.sessions.List() {
		state, err := s.sessions.State(id)
		if errors.Is(err, ptyhost.ErrNotFound) {
			continue // killed between List and State
		}
		infos = append(infos, SessionInfo{ID: id, State: state.String()})
	}
	return s.encoded(infos, format)
}

func (s *Server) handleTranscriptOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	format := request.GetString("format", "json")

	res, err := s.transcripts.Open(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.encoded(res, format)
}

func (s *Server) handleTranscriptPoll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	offset, err := request.RequireFloat("offset")
	if err != nil || offset < 0 || offset >= math.MaxInt64 || offset != math.Trunc(offset) {
		return mcp.NewToolResultError("offset must be a non-negative integer"), nil
	}
	format := request.GetString("format", "json")

	res, err := s.transcripts.Poll(path, int64(offset))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.encoded(res, format)
}

func (s *Server) handleSummaryList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectDir, err := request.RequireString("project_dir")
	if err != nil {
		return mcp.NewToolResultError("project_dir parameter is required"), nil
	}
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	format := request.GetString("format", "json")

	files, err := s.summaries.List(projectDir, sessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.encoded(files, format)
}

func (s *Server) handleSummaryRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectDir, err := request.RequireString("project_dir")
	if err != nil {
		return mcp.NewToolResultError("project_dir parameter is required"), nil
	}
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError("filename parameter is required"), nil
	}

	content, err := s.summaries.Read(projectDir, filename)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

// ForwardEvents relays bus events to every connected client until the
// channel closes or ctx ends.
func (s *Server) ForwardEvents(ctx context.Context, ch <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			s.mcpServer.SendNotificationToAllClients(EventNotification, map[string]any{
				"topic":   ev.Topic,
				"payload": ev.Payload,
				"time":    ev.Time,
			})
		}
	}
}

// Serve answers MCP requests on the given streams until ctx ends or the
// input closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}
