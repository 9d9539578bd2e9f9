package config

import (
	"github.com/shanehull/twscreener/internal/notify"
	"github.com/shanehull/twscreener/internal/quotes"
)

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Timezone: "Asia/Taipei",
		Screen: ScreenConfig{
			MinChangePct:      2.0,
			MinVolume:         1_000_000,
			Watchlist:         defaultWatchlist(),
			FallbackWatchlist: defaultWatchlist(),
		},
		Message: MessageConfig{
			MaxLines: 25,
			MaxChars: 1800,
			Title:    "Watchlist movers",
		},
		Symbols: SymbolsConfig{
			Path: "all_taiwan_stocks.csv",
		},
		Quotes: QuotesConfig{
			BaseURL:     quotes.DefaultBaseURL,
			Timeout:     "10s",
			Concurrency: 8,
		},
		Delivery: DeliveryConfig{
			Transport: TransportLine,
			Timeout:   "10s",
			Line: LineConfig{
				Endpoint: notify.DefaultLineEndpoint,
			},
			Email: EmailConfig{
				SMTPServer: "smtp.gmail.com",
				SMTPPort:   587,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Outputs:  []string{"console"},
			FilePath: "logs/screener.log",
		},
	}
}

func defaultWatchlist() []string {
	return []string{"2330", "2317", "2454", "2303", "2882", "2603"}
}
