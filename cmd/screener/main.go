package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/shanehull/twscreener/internal/common"
	"github.com/shanehull/twscreener/internal/config"
	"github.com/shanehull/twscreener/internal/history"
	"github.com/shanehull/twscreener/internal/notify"
	"github.com/shanehull/twscreener/internal/pipeline"
	"github.com/shanehull/twscreener/internal/quotes"
	"github.com/shanehull/twscreener/internal/symbols"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	watchlist   = flag.String("watchlist", "", "(-w) Comma-separated codes to screen, or ALL (overrides config)")
	destination = flag.String("to", "", "Destination: LINE user/group id or recipient email (overrides config)")
	transport   = flag.String("transport", "", "Delivery transport: line, email or console (overrides config)")
	dryRun      = flag.Bool("dry-run", false, "Print messages to stdout instead of delivering them")
	showStatus  = flag.Bool("status", false, "Print the last recorded run and exit")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.StringVar(watchlist, "w", "", "(-w) Comma-separated codes to screen, or ALL (shorthand)")

	flag.Usage = func() {
		flagSet := flag.CommandLine
		fmt.Printf("Usage of %s:\n", os.Args[0])

		order := []string{
			"config",
			"watchlist",
			"to",
			"transport",
			"dry-run",
			"status",
			"version",
		}

		for _, name := range order {
			f := flagSet.Lookup(name)
			if f != nil {
				fmt.Printf("  -%s\n", f.Name)
				fmt.Printf("    %s\n", f.Usage)
			}
		}
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("twscreener version %s\n", config.GetFullVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("twscreener.toml"); err == nil {
			configFiles = append(configFiles, "twscreener.toml")
		}
	}

	cfg, err := config.LoadFromFiles(configFiles...)
	if err != nil {
		fallback, _ := history.NewManager(config.NewDefaultConfig().Timezone, common.NewSilentLogger())
		fail(fallback, err)
	}

	config.ApplyFlagOverrides(cfg, *watchlist, *destination, *transport)
	if *dryRun {
		cfg.Delivery.Transport = config.TransportConsole
	}

	logger := common.NewLoggerFromConfig(cfg.LoggerConfig())

	historyManager, err := history.NewManager(cfg.Timezone, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("run history unavailable")
	}

	if *showStatus {
		printStatus(historyManager)
		return
	}

	if issues := cfg.Validate(); len(issues) > 0 {
		fail(historyManager, &config.ConfigError{Issues: issues})
	}

	logger.Info().
		Str("config_files", fmt.Sprintf("%v", configFiles)).
		Str("transport", cfg.Delivery.Transport).
		Int("watchlist", len(cfg.Screen.Watchlist)).
		Msg("configuration loaded")

	table, err := symbols.LoadFile(cfg.Symbols.Path)
	if err != nil {
		logger.Warn().
			Str("path", cfg.Symbols.Path).
			Err(err).
			Msg("symbol table unavailable, names will fall back to codes")
		table = symbols.NewTable(nil)
	} else {
		logger.Info().Str("path", cfg.Symbols.Path).Int("instruments", table.Len()).Msg("symbol table loaded")
	}

	codes, usedFallback := table.ExpandWatchlistOr(cfg.Screen.Watchlist, cfg.Screen.FallbackWatchlist)
	if usedFallback {
		logger.Warn().
			Strs("watchlist", cfg.Screen.Watchlist).
			Strs("fallback", codes).
			Msg("watchlist expanded to nothing, screening the fallback list")
	}

	quoteClient, err := quotes.NewYahooClient(cfg.QuoteClientConfig())
	if err != nil {
		fail(historyManager, err)
	}

	sender, err := newTransport(cfg)
	if err != nil {
		fail(historyManager, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg.PipelineOptions(), table, quoteClient, sender, logger)
	summary := p.Run(ctx, codes, cfg.Delivery.Destination)

	if historyManager != nil {
		if err := historyManager.Record(history.NewRecord(summary)); err != nil {
			logger.Warn().Err(err).Msg("failed to record run history")
		}
	}

	printSummary(summary)
}

func newTransport(cfg *config.Config) (notify.Transport, error) {
	switch cfg.Delivery.Transport {
	case config.TransportLine:
		return notify.NewLineTransport(cfg.LineTransportConfig()), nil
	case config.TransportEmail:
		return notify.NewEmailSender(cfg.EmailTransportConfig()), nil
	case config.TransportConsole:
		return notify.NewConsoleTransport(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Delivery.Transport)
	}
}

// fail prints err, records the refused run when history is available and exits 1.
func fail(historyManager *history.Manager, err error) {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Configuration error: required values are missing or invalid:")
		fmt.Fprintln(os.Stderr, "")
		for _, issue := range cfgErr.Issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Values can be set via TOML file, environment variables (.env supported), or CLI flags.")
		fmt.Fprintln(os.Stderr, "")
	} else {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}

	if historyManager != nil {
		_ = historyManager.Record(history.NotRun(time.Now(), err))
	}
	os.Exit(1)
}

func printSummary(s pipeline.RunSummary) {
	fmt.Println("\n-------------------------------------------")
	fmt.Printf("Run %s: %s\n", s.RunID, s.Outcome())
	fmt.Printf("Watched %d, matched %d, fetch failures %d, lookup misses %d\n",
		s.Watched, s.Matched, s.FetchFailures, s.LookupMisses)
	if s.Matched > 0 {
		fmt.Printf("Chunks sent %d, failed %d, oversized %d\n", s.ChunksSent, s.ChunksFailed, s.OversizedChunks)
	}
	for _, e := range s.Errors {
		fmt.Printf("  - %s\n", e)
	}
	fmt.Println("-------------------------------------------")
}

func printStatus(historyManager *history.Manager) {
	if historyManager == nil {
		fmt.Println("Run history unavailable.")
		return
	}

	last, ok := historyManager.Last()
	if !ok {
		fmt.Println("No runs recorded today.")
		return
	}

	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode last run: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
