// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// CaptureMode selects how page state is gathered for the model on each step.
type CaptureMode string

const (
	// ModeHTML sends simplified HTML only. No screenshots are taken and no
	// images ever reach the model while this mode is active.
	ModeHTML CaptureMode = "html"
	// ModeBatch scrolls through the page collecting one screenshot per
	// viewport (bounded by MaxScrolls), plus the final simplified HTML.
	ModeBatch CaptureMode = "batch"
	// ModeStandard takes a single screenshot of the current viewport.
	ModeStandard CaptureMode = "standard"
)

// ParseCaptureMode validates a user-supplied mode string.
func ParseCaptureMode(s string) (CaptureMode, error) {
	switch CaptureMode(s) {
	case ModeHTML, ModeBatch, ModeStandard:
		return CaptureMode(s), nil
	default:
		return "", fmt.Errorf("unknown capture mode %q (want html, batch or standard)", s)
	}
}

// Config holds the entire application configuration. A single instance is
// built at startup and passed by reference into every component; only the
// interactive console mutates it, and only between tasks.
type Config struct {
	Logger  LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig     `mapstructure:"agent" yaml:"agent"`
	LLM     LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
	Reports ReportsConfig   `mapstructure:"reports" yaml:"reports"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for the console level encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleTimeout     time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	SettlePause       time.Duration `mapstructure:"settle_pause" yaml:"settle_pause"`
}

// AgentConfig holds the run-wide session settings. The console mutates these
// between tasks via the -set and -url commands.
type AgentConfig struct {
	StartURL   string      `mapstructure:"start_url" yaml:"start_url"`
	Mode       CaptureMode `mapstructure:"mode" yaml:"mode"`
	MaxScrolls int         `mapstructure:"max_scrolls" yaml:"max_scrolls"`
	MaxSteps   int         `mapstructure:"max_steps" yaml:"max_steps"`
	// MaxImageWidth caps screenshot width before prompting; wider captures
	// are downscaled to respect model payload limits. Zero disables scaling.
	MaxImageWidth int `mapstructure:"max_image_width" yaml:"max_image_width"`
	// HTMLByteBudget truncates simplified HTML at a tag boundary.
	HTMLByteBudget int `mapstructure:"html_byte_budget" yaml:"html_byte_budget"`
	// ConsentSelectors are CSS selectors tried first when dismissing
	// cookie-consent overlays after navigation.
	ConsentSelectors []string `mapstructure:"consent_selectors" yaml:"consent_selectors"`
	// ConsentButtonTexts are accept-button labels matched when no selector hits.
	ConsentButtonTexts []string `mapstructure:"consent_button_texts" yaml:"consent_button_texts"`
}

// ReportsConfig controls the optional per-task transcript output.
type ReportsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// LLMProvider identifies the backend serving a model tier.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMRouterConfig configures the model routing logic. The fast tier serves
// perception and HTML planning; the powerful tier serves vision planning.
type LLMRouterConfig struct {
	Fast     LLMModelConfig `mapstructure:"fast" yaml:"fast"`
	Powerful LLMModelConfig `mapstructure:"powerful" yaml:"powerful"`
}

// LLMModelConfig defines the configuration for a single model endpoint.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	// RequestsPerMinute bounds the client-side request rate. Zero disables
	// the limiter.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webagent")
	v.SetDefault("logger.log_file", "webagent.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.navigation_timeout", "20s")
	v.SetDefault("browser.settle_timeout", "7s")
	v.SetDefault("browser.settle_pause", "2s")

	// -- Agent --
	v.SetDefault("agent.start_url", "https://www.imdb.com/")
	v.SetDefault("agent.mode", string(ModeStandard))
	v.SetDefault("agent.max_scrolls", 5)
	v.SetDefault("agent.max_steps", 15)
	v.SetDefault("agent.max_image_width", 1568)
	v.SetDefault("agent.html_byte_budget", 1_000_000)
	v.SetDefault("agent.consent_selectors", []string{
		"#onetrust-accept-btn-handler",
		"button[aria-label='Accept all']",
		"button[id*='accept']",
		".cc-allow",
		".fc-cta-consent",
	})
	v.SetDefault("agent.consent_button_texts", []string{
		"Accept all", "Accept All", "I agree", "Agree", "Accept", "Allow all", "Got it",
	})

	// -- LLM --
	v.SetDefault("llm.fast.provider", string(ProviderGemini))
	v.SetDefault("llm.fast.model", "gemini-2.0-flash")
	v.SetDefault("llm.fast.api_timeout", "90s")
	v.SetDefault("llm.powerful.provider", string(ProviderGemini))
	v.SetDefault("llm.powerful.model", "gemini-2.0-flash")
	v.SetDefault("llm.powerful.api_timeout", "120s")

	// -- Reports --
	v.SetDefault("reports.enabled", false)
	v.SetDefault("reports.dir", "reports")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// The API credential is never read from the config file directly; bind the
	// well-known environment variables for both tiers.
	v.BindEnv("llm.fast.api_key", "WEBAGENT_GEMINI_API_KEY", "GEMINI_API_KEY", "WEBAGENT_LLM_API_KEY")
	v.BindEnv("llm.powerful.api_key", "WEBAGENT_GEMINI_API_KEY", "GEMINI_API_KEY", "WEBAGENT_LLM_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Unmarshal does not apply BindEnv for keys absent from the file.
	if cfg.LLM.Fast.APIKey == "" {
		cfg.LLM.Fast.APIKey = v.GetString("llm.fast.api_key")
	}
	if cfg.LLM.Powerful.APIKey == "" {
		cfg.LLM.Powerful.APIKey = v.GetString("llm.powerful.api_key")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// A missing API credential is startup-fatal: the process must refuse to
// accept tasks it cannot run.
func (c *Config) Validate() error {
	if _, err := ParseCaptureMode(string(c.Agent.Mode)); err != nil {
		return err
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.Agent.MaxScrolls <= 0 {
		return fmt.Errorf("agent.max_scrolls must be a positive integer")
	}
	if c.Agent.StartURL != "" {
		if _, err := url.ParseRequestURI(c.Agent.StartURL); err != nil {
			return fmt.Errorf("agent.start_url is not a valid URL: %w", err)
		}
	}
	if err := c.LLM.Fast.validate("llm.fast"); err != nil {
		return err
	}
	if err := c.LLM.Powerful.validate("llm.powerful"); err != nil {
		return err
	}
	return nil
}

func (m *LLMModelConfig) validate(key string) error {
	switch m.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%s.provider %q is not supported (want gemini or openai)", key, m.Provider)
	}
	if m.Model == "" {
		return fmt.Errorf("%s.model is required", key)
	}
	if m.APIKey == "" {
		return fmt.Errorf("%s: no API credential found. Set WEBAGENT_GEMINI_API_KEY or GEMINI_API_KEY (a .env file next to the binary is honored)", key)
	}
	return nil
}
