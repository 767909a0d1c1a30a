// Package config centralizes runtime configuration. Values come from
// defaults, an optional YAML file, and VOYANT_* environment variables, in
// ascending precedence, all through viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LLMProvider identifies a reasoning backend.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
)

// LoggerConfig controls the zap logger and file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
	Colors      bool   `mapstructure:"colors"`
}

// BrowserConfig controls the Chromium allocator and session behavior.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors"`
	HumanizeTyping  bool     `mapstructure:"humanize_typing"`
	UserDataDir     string   `mapstructure:"user_data_dir"`
	ExtraArgs       []string `mapstructure:"extra_args"`
	ViewportWidth   int      `mapstructure:"viewport_width"`
	ViewportHeight  int      `mapstructure:"viewport_height"`

	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout"`
	CaptureTimeout    time.Duration `mapstructure:"capture_timeout"`
	StabilizeWait     time.Duration `mapstructure:"stabilize_wait"`
}

// LLMModelConfig describes one concrete model binding.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	APITimeout  time.Duration `mapstructure:"api_timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// LLMRouterConfig maps capability tiers to model bindings.
type LLMRouterConfig struct {
	FastModel     string                    `mapstructure:"fast_model"`
	PowerfulModel string                    `mapstructure:"powerful_model"`
	Models        map[string]LLMModelConfig `mapstructure:"models"`
}

// AgentConfig controls the decision loop.
type AgentConfig struct {
	MaxIterations  int             `mapstructure:"max_iterations"`
	IterationDelay time.Duration   `mapstructure:"iteration_delay"`
	HistoryTail    int             `mapstructure:"history_tail"`
	ScreenshotKeep int             `mapstructure:"screenshot_keep"`
	RunTimeout     time.Duration   `mapstructure:"run_timeout"`
	LLM            LLMRouterConfig `mapstructure:"llm"`
}

// Config is the root configuration object passed by reference through the
// process. It is read-only after load.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Browser BrowserConfig `mapstructure:"browser"`
	Agent   AgentConfig   `mapstructure:"agent"`
}

// SetDefaults registers every known key with its default value so that env
// binding and partial config files behave predictably.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "voyant")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.humanize_typing", false)
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.extra_args", []string{})
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.action_timeout", 10*time.Second)
	v.SetDefault("browser.capture_timeout", 5*time.Second)
	v.SetDefault("browser.stabilize_wait", 500*time.Millisecond)

	v.SetDefault("agent.max_iterations", 50)
	v.SetDefault("agent.iteration_delay", 500*time.Millisecond)
	v.SetDefault("agent.history_tail", 10)
	v.SetDefault("agent.screenshot_keep", 5)
	v.SetDefault("agent.run_timeout", 10*time.Minute)
	v.SetDefault("agent.llm.fast_model", "default-fast")
	v.SetDefault("agent.llm.powerful_model", "default-powerful")
	v.SetDefault("agent.llm.models", map[string]any{})
}

// NewDefaultConfig returns a Config built purely from defaults. Used by tests
// and as a base for programmatic overrides.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults are compile-time constants; failure here is a bug.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// NewConfigFromViper unmarshals and validates a fully populated viper
// instance. Env variables take the form VOYANT_AGENT_MAX_ITERATIONS.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("VOYANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Logger.LogFile, &c.Browser.UserDataDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = filepath.Clean(expanded)
	}
	return nil
}

// Validate rejects configurations the agent cannot run with.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d",
			c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"browser.navigation_timeout", c.Browser.NavigationTimeout},
		{"browser.action_timeout", c.Browser.ActionTimeout},
		{"browser.capture_timeout", c.Browser.CaptureTimeout},
		{"agent.run_timeout", c.Agent.RunTimeout},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.val)
		}
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.IterationDelay < 0 {
		return fmt.Errorf("agent.iteration_delay must not be negative, got %s", c.Agent.IterationDelay)
	}
	if c.Agent.HistoryTail <= 0 {
		return fmt.Errorf("agent.history_tail must be positive, got %d", c.Agent.HistoryTail)
	}
	if c.Agent.ScreenshotKeep < 0 {
		return fmt.Errorf("agent.screenshot_keep must not be negative, got %d", c.Agent.ScreenshotKeep)
	}
	for name, m := range c.Agent.LLM.Models {
		switch m.Provider {
		case ProviderGemini, ProviderAnthropic, ProviderOpenAI:
		default:
			return fmt.Errorf("model %q has unknown provider %q", name, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("model %q missing model name", name)
		}
	}
	return nil
}

// ModelFor resolves the tier alias to a concrete model binding.
func (c *Config) ModelFor(tierModel string) (LLMModelConfig, bool) {
	m, ok := c.Agent.LLM.Models[tierModel]
	return m, ok
}
