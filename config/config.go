package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ClaudeDirName      = ".claude"
	AppDirName         = "theassociate"
	ConfigFileName     = "config.yaml"
	HookLogFileName    = "hook-events.jsonl"
	OffsetStateFile    = "watcher-state.json"
	SummariesDirName   = "summaries"
	ProjectsDirName    = "projects"
	DefaultTailLines   = 200
	DefaultMaxItems    = 5000
	DefaultPollMs      = 500
	DefaultDedupWindow = 10
)

type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Agent      AgentConfig      `yaml:"agent"`
	Watch      WatchConfig      `yaml:"watch"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Detect     DetectConfig     `yaml:"detect"`
	Log        LogConfig        `yaml:"log"`
}

// PathsConfig locates the agent's home directory and our own state directory.
// Empty values resolve relative to the user's home directory.
type PathsConfig struct {
	ClaudeHome string `yaml:"claude_home,omitempty"`
	AppDir     string `yaml:"app_dir,omitempty"`
}

type AgentConfig struct {
	Command  string            `yaml:"command"`
	Args     []string          `yaml:"args,omitempty"`
	StripEnv []string          `yaml:"strip_env"` // removed so the agent does not think it is nested
	Env      map[string]string `yaml:"env,omitempty"`
}

type WatchConfig struct {
	PollIntervalMs    int      `yaml:"poll_interval_ms"`
	TerminationEvents []string `yaml:"termination_events"`
}

type TranscriptConfig struct {
	TailLines int `yaml:"tail_lines"`
	MaxItems  int `yaml:"max_items"`
}

// DetectConfig holds the trigger strings for the terminal output detectors.
// They mirror one CLI's rendering conventions and are expected to drift.
type DetectConfig struct {
	PlanMarkers        []string `yaml:"plan_markers"`
	PlanExtension      string   `yaml:"plan_extension"`
	QuestionPrefix     string   `yaml:"question_prefix"`
	QuestionExclusions []string `yaml:"question_exclusions"`
	ConfirmSuffixes    []string `yaml:"confirm_suffixes"`
	NavigationHints    []string `yaml:"navigation_hints"`
	DedupSeconds       int      `yaml:"dedup_seconds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Agent: AgentConfig{
			Command: "claude",
			StripEnv: []string{
				"CLAUDECODE",
				"CLAUDE_CODE_SESSION_ID",
				"CLAUDE_SESSION_ID",
				"CLAUDE_CODE_ENTRYPOINT",
				"ANTHROPIC_CLAUDE_ENTRYPOINT",
				"CLAUDE_CODE_IS_SIDE_CHANNEL",
			},
		},
		Watch: WatchConfig{
			PollIntervalMs:    DefaultPollMs,
			TerminationEvents: []string{"Stop"},
		},
		Transcript: TranscriptConfig{
			TailLines: DefaultTailLines,
			MaxItems:  DefaultMaxItems,
		},
		Detect: DetectConfig{
			PlanMarkers:        []string{".claude\\plans\\", ".claude/plans/"},
			PlanExtension:      ".md",
			QuestionPrefix:     "? ",
			QuestionExclusions: []string{"? for shortcuts"},
			ConfirmSuffixes:    []string{"(y/n)", "(Y/n)", "(y/N)", "[y/N]", "[Y/n]"},
			NavigationHints:    []string{"Enter to select", "to navigate"},
			DedupSeconds:       DefaultDedupWindow,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if err := cfg.resolvePaths(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in values left empty by older or partial config files.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Agent.Command == "" {
		c.Agent.Command = defaults.Agent.Command
	}
	if c.Agent.StripEnv == nil {
		c.Agent.StripEnv = defaults.Agent.StripEnv
	}

	if c.Watch.PollIntervalMs <= 0 {
		c.Watch.PollIntervalMs = defaults.Watch.PollIntervalMs
	}
	if len(c.Watch.TerminationEvents) == 0 {
		c.Watch.TerminationEvents = defaults.Watch.TerminationEvents
	}

	if c.Transcript.TailLines <= 0 {
		c.Transcript.TailLines = defaults.Transcript.TailLines
	}
	if c.Transcript.MaxItems <= 0 {
		c.Transcript.MaxItems = defaults.Transcript.MaxItems
	}

	if len(c.Detect.PlanMarkers) == 0 {
		c.Detect.PlanMarkers = defaults.Detect.PlanMarkers
	}
	if c.Detect.PlanExtension == "" {
		c.Detect.PlanExtension = defaults.Detect.PlanExtension
	}
	if c.Detect.QuestionPrefix == "" {
		c.Detect.QuestionPrefix = defaults.Detect.QuestionPrefix
	}
	if c.Detect.QuestionExclusions == nil {
		c.Detect.QuestionExclusions = defaults.Detect.QuestionExclusions
	}
	if len(c.Detect.ConfirmSuffixes) == 0 {
		c.Detect.ConfirmSuffixes = defaults.Detect.ConfirmSuffixes
	}
	if len(c.Detect.NavigationHints) == 0 {
		c.Detect.NavigationHints = defaults.Detect.NavigationHints
	}
	if c.Detect.DedupSeconds <= 0 {
		c.Detect.DedupSeconds = defaults.Detect.DedupSeconds
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// resolvePaths fills empty path settings from the user's home directory.
func (c *Config) resolvePaths() error {
	if c.Paths.ClaudeHome == "" {
		home, err := ClaudeHome()
		if err != nil {
			return err
		}
		c.Paths.ClaudeHome = home
	}
	if c.Paths.AppDir == "" {
		c.Paths.AppDir = filepath.Join(c.Paths.ClaudeHome, AppDirName)
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// PollInterval returns the router's fallback polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollIntervalMs) * time.Millisecond
}

// DedupWindow returns how long an identical question stays suppressed.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Detect.DedupSeconds) * time.Second
}

func (c *Config) HookLogPath() string {
	return filepath.Join(c.Paths.AppDir, HookLogFileName)
}

func (c *Config) OffsetStatePath() string {
	return filepath.Join(c.Paths.AppDir, OffsetStateFile)
}

// SummariesRoot is the directory holding per-project summary folders.
func (c *Config) SummariesRoot() string {
	return filepath.Join(c.Paths.AppDir, ProjectsDirName)
}

// ClaudeHome returns ~/.claude, honouring USERPROFILE before HOME like the
// agent itself does on Windows.
func ClaudeHome() (string, error) {
	home := os.Getenv("USERPROFILE")
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	return filepath.Join(home, ClaudeDirName), nil
}

// DefaultConfigPath returns <claude home>/theassociate/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := ClaudeHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, AppDirName, ConfigFileName), nil
}
