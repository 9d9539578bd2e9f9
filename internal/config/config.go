package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/shanehull/twscreener/internal/common"
	"github.com/shanehull/twscreener/internal/notify"
	"github.com/shanehull/twscreener/internal/pipeline"
	"github.com/shanehull/twscreener/internal/quotes"
	"github.com/shanehull/twscreener/internal/screen"
	"github.com/shanehull/twscreener/internal/symbols"
	"github.com/shopspring/decimal"
)

// Transport names accepted by delivery.transport.
const (
	TransportLine    = "line"
	TransportEmail   = "email"
	TransportConsole = "console"
)

// watchAllLineBound is the header sizing bound used when the watchlist is "ALL"
// and the final instrument count is only known after the symbol table loads.
const watchAllLineBound = 9999

// Config represents the application configuration.
type Config struct {
	Timezone string         `toml:"timezone"`
	Screen   ScreenConfig   `toml:"screen"`
	Message  MessageConfig  `toml:"message"`
	Symbols  SymbolsConfig  `toml:"symbols"`
	Quotes   QuotesConfig   `toml:"quotes"`
	Delivery DeliveryConfig `toml:"delivery"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ScreenConfig contains the watchlist and match thresholds.
// FallbackWatchlist is screened when the watchlist expands to nothing,
// e.g. "ALL" with no symbol table.
type ScreenConfig struct {
	MinChangePct      float64  `toml:"min_change_pct"`
	MinVolume         int64    `toml:"min_volume"`
	Watchlist         []string `toml:"watchlist"`
	FallbackWatchlist []string `toml:"fallback_watchlist"`
	MaxMatches        int      `toml:"max_matches"`
}

// MessageConfig contains the per-message size limits.
type MessageConfig struct {
	MaxLines int    `toml:"max_lines"`
	MaxChars int    `toml:"max_chars"`
	Title    string `toml:"title"`
}

// SymbolsConfig points at the instrument CSV.
type SymbolsConfig struct {
	Path string `toml:"path"`
}

// QuotesConfig contains quote source settings.
type QuotesConfig struct {
	BaseURL     string `toml:"base_url"`
	Timeout     string `toml:"timeout"`
	Concurrency int    `toml:"concurrency"`
}

// DeliveryConfig selects the transport and destination.
type DeliveryConfig struct {
	Transport   string      `toml:"transport"`
	Destination string      `toml:"destination"`
	Timeout     string      `toml:"timeout"`
	Line        LineConfig  `toml:"line"`
	Email       EmailConfig `toml:"email"`
}

// LineConfig contains LINE Messaging API settings.
type LineConfig struct {
	Endpoint     string `toml:"endpoint"`
	ChannelToken string `toml:"channel_token"`
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	SMTPServer string `toml:"smtp_server"`
	SMTPPort   int    `toml:"smtp_port"`
	SMTPUser   string `toml:"smtp_user"`
	SMTPPass   string `toml:"smtp_pass"`
	FromEmail  string `toml:"from_email"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// ConfigError lists every problem found while loading or validating configuration.
type ConfigError struct {
	Issues []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Issues, "; ")
}

// LoadFromFiles loads configuration with priority:
// defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files. A .env file in the working directory is read
// if present and never overrides variables already set in the environment.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Missing .env is the normal case.
	_ = godotenv.Load()

	if issues := applyEnvOverrides(config); len(issues) > 0 {
		return nil, &ConfigError{Issues: issues}
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config and returns
// one issue per variable that is set but malformed.
func applyEnvOverrides(config *Config) []string {
	var issues []string

	if v := os.Getenv("WATCHLIST"); v != "" {
		config.Screen.Watchlist = ParseWatchlist(v)
	}
	if v := os.Getenv("MIN_CHANGE"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || !isFinite(f) {
			issues = append(issues, fmt.Sprintf("MIN_CHANGE: %q is not a finite number", v))
		} else {
			config.Screen.MinChangePct = f
		}
	}
	if v := os.Getenv("MIN_VOLUME"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			issues = append(issues, fmt.Sprintf("MIN_VOLUME: %q is not an integer", v))
		} else {
			config.Screen.MinVolume = n
		}
	}
	for _, o := range []struct {
		name   string
		target *int
	}{
		{"MAX_LINES", &config.Message.MaxLines},
		{"MAX_CHARS", &config.Message.MaxChars},
		{"MAX_MATCHES", &config.Screen.MaxMatches},
	} {
		v := os.Getenv(o.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %q is not an integer", o.name, v))
			continue
		}
		*o.target = n
	}
	if v := os.Getenv("LINE_USER_ID"); v != "" {
		config.Delivery.Destination = v
	}
	if v := os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"); v != "" {
		config.Delivery.Line.ChannelToken = v
	}
	if v := os.Getenv("SYMBOLS_PATH"); v != "" {
		config.Symbols.Path = v
	}
	if v := os.Getenv("SCREENER_TRANSPORT"); v != "" {
		config.Delivery.Transport = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SCREENER_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	return issues
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, watchlist, destination, transport string) {
	if watchlist != "" {
		config.Screen.Watchlist = ParseWatchlist(watchlist)
	}
	if destination != "" {
		config.Delivery.Destination = destination
	}
	if transport != "" {
		config.Delivery.Transport = strings.ToLower(strings.TrimSpace(transport))
	}
}

// ParseWatchlist splits a comma separated code list, dropping blanks.
func ParseWatchlist(s string) []string {
	var codes []string
	for _, part := range strings.Split(s, ",") {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// Validate checks the loaded configuration and returns every issue found.
func (c *Config) Validate() []string {
	var issues []string

	if !isFinite(c.Screen.MinChangePct) {
		issues = append(issues, "screen.min_change_pct must be a finite number")
	} else if c.Screen.MinChangePct < 0 {
		issues = append(issues, "screen.min_change_pct must not be negative")
	}
	if c.Screen.MinVolume < 0 {
		issues = append(issues, "screen.min_volume must not be negative")
	}
	if c.Screen.MaxMatches < 0 {
		issues = append(issues, "screen.max_matches must not be negative (0 means no cap)")
	}
	if len(c.Screen.Watchlist) == 0 {
		issues = append(issues, "screen.watchlist is empty (set WATCHLIST or -watchlist)")
	}

	if c.Message.MaxLines < 1 {
		issues = append(issues, "message.max_lines must be at least 1")
	} else if c.Message.Title != "" && c.Message.MaxLines < 2 {
		issues = append(issues, "message.max_lines must be at least 2 when a title is set (the header takes one line)")
	}
	if c.Message.MaxChars < 1 {
		issues = append(issues, "message.max_chars must be at least 1")
	} else if cost := notify.HeaderCost(c.Message.Title, c.headerLineBound()); c.Message.MaxChars <= cost {
		issues = append(issues, fmt.Sprintf("message.max_chars (%d) leaves no room after the %d-character title header", c.Message.MaxChars, cost))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		issues = append(issues, fmt.Sprintf("timezone %q is not a known time zone", c.Timezone))
	}
	if _, err := parseDuration(c.Quotes.Timeout); err != nil {
		issues = append(issues, fmt.Sprintf("quotes.timeout: %v", err))
	}
	if _, err := parseDuration(c.Delivery.Timeout); err != nil {
		issues = append(issues, fmt.Sprintf("delivery.timeout: %v", err))
	}
	if c.Quotes.Concurrency < 1 {
		issues = append(issues, "quotes.concurrency must be at least 1")
	}

	switch c.Delivery.Transport {
	case TransportLine:
		if c.Delivery.Line.ChannelToken == "" {
			issues = append(issues, "delivery.line.channel_token is required (set LINE_CHANNEL_ACCESS_TOKEN)")
		}
		if c.Delivery.Destination == "" {
			issues = append(issues, "delivery.destination is required (set LINE_USER_ID or -to)")
		}
	case TransportEmail:
		if c.Delivery.Email.SMTPServer == "" || c.Delivery.Email.SMTPUser == "" || c.Delivery.Email.SMTPPass == "" {
			issues = append(issues, "delivery.email needs smtp_server, smtp_user and smtp_pass")
		}
		if c.Delivery.Destination == "" {
			issues = append(issues, "delivery.destination is required (recipient address or -to)")
		}
	case TransportConsole:
	default:
		issues = append(issues, fmt.Sprintf("delivery.transport %q is not one of line, email, console", c.Delivery.Transport))
	}

	return issues
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (c *Config) headerLineBound() int {
	for _, code := range c.Screen.Watchlist {
		if strings.EqualFold(strings.TrimSpace(code), symbols.WatchAll) {
			return watchAllLineBound
		}
	}
	return len(c.Screen.Watchlist)
}

// Location returns the configured time zone, or UTC if it does not load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetQuoteTimeout returns the per-fetch timeout.
func (c *Config) GetQuoteTimeout() time.Duration {
	d, err := parseDuration(c.Quotes.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetDeliveryTimeout returns the per-send timeout.
func (c *Config) GetDeliveryTimeout() time.Duration {
	d, err := parseDuration(c.Delivery.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// Thresholds returns the screening thresholds.
func (c *Config) Thresholds() screen.Thresholds {
	return screen.Thresholds{
		MinChangePct: decimal.NewFromFloat(c.Screen.MinChangePct),
		MinVolume:    c.Screen.MinVolume,
	}
}

// PipelineOptions returns the run parameters for a pipeline.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Thresholds:   c.Thresholds(),
		MaxLines:     c.Message.MaxLines,
		MaxChars:     c.Message.MaxChars,
		MaxMatches:   c.Screen.MaxMatches,
		Title:        c.Message.Title,
		Location:     c.Location(),
		Concurrency:  c.Quotes.Concurrency,
		FetchTimeout: c.GetQuoteTimeout(),
		SendTimeout:  c.GetDeliveryTimeout(),
	}
}

// QuoteClientConfig returns the quote client settings.
func (c *Config) QuoteClientConfig() quotes.Config {
	return quotes.Config{
		BaseURL: c.Quotes.BaseURL,
		Timeout: c.GetQuoteTimeout(),
	}
}

// LineTransportConfig returns the LINE transport settings.
func (c *Config) LineTransportConfig() notify.LineConfig {
	return notify.LineConfig{
		Endpoint:     c.Delivery.Line.Endpoint,
		ChannelToken: c.Delivery.Line.ChannelToken,
	}
}

// EmailTransportConfig returns the SMTP settings.
func (c *Config) EmailTransportConfig() notify.EmailConfig {
	e := c.Delivery.Email
	return notify.EmailConfig{
		SMTPServer: e.SMTPServer,
		SMTPPort:   e.SMTPPort,
		SMTPUser:   e.SMTPUser,
		SMTPPass:   e.SMTPPass,
		FromEmail:  e.FromEmail,
		Title:      c.Message.Title,
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() common.LoggingConfig {
	return common.LoggingConfig{
		Level:      c.Logging.Level,
		Outputs:    c.Logging.Outputs,
		FilePath:   c.Logging.FilePath,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
	}
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a duration", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%q must be positive", s)
	}
	return d, nil
}
