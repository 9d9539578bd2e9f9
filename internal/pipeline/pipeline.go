/*
Package pipeline runs one screening pass: resolve the watchlist, fetch quotes, filter,
format, chunk and deliver.
*/
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shanehull/twscreener/internal/common"
	"github.com/shanehull/twscreener/internal/notify"
	"github.com/shanehull/twscreener/internal/screen"
	"github.com/shanehull/twscreener/internal/symbols"
	"github.com/shanehull/twscreener/internal/types"
)

const (
	defaultConcurrency  = 8
	defaultFetchTimeout = 10 * time.Second
	defaultSendTimeout  = 10 * time.Second
)

// InstrumentLookup resolves a watchlist code to an instrument.
type InstrumentLookup interface {
	Lookup(code string) (types.Instrument, bool)
}

// QuoteProvider fetches the current quote for one instrument.
type QuoteProvider interface {
	Fetch(ctx context.Context, inst types.Instrument) (types.Quote, error)
}

// Options are the run parameters. They are read-only once the pipeline is built.
type Options struct {
	Thresholds   screen.Thresholds
	MaxLines     int
	MaxChars     int
	MaxMatches   int
	Title        string
	Location     *time.Location
	Concurrency  int
	FetchTimeout time.Duration
	SendTimeout  time.Duration
}

// Pipeline wires the collaborators of a screening run.
type Pipeline struct {
	opts      Options
	lookup    InstrumentLookup
	quotes    QuoteProvider
	transport notify.Transport
	logger    *common.Logger
	now       func() time.Time
}

// New creates a pipeline. Zero-valued options fall back to defaults.
func New(opts Options, lookup InstrumentLookup, quotes QuoteProvider, transport notify.Transport, logger *common.Logger) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	return &Pipeline{
		opts:      opts,
		lookup:    lookup,
		quotes:    quotes,
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
}

// entry is one watchlist position: what it resolved to and what was fetched for it.
type entry struct {
	inst  types.Instrument
	found bool
	quote types.Quote
	err   error
}

// Run screens watchlist and pushes matches to destination. It always runs to completion;
// per-code and per-chunk failures are counted in the summary rather than returned.
func (p *Pipeline) Run(ctx context.Context, watchlist []string, destination string) RunSummary {
	started := p.now()
	summary := RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	logger := p.logger.WithCorrelationId(summary.RunID)

	codes := dedupe(watchlist)
	summary.Watched = len(codes)

	entries := make([]entry, len(codes))
	for i, code := range codes {
		inst, found := p.lookup.Lookup(code)
		if !found {
			summary.LookupMisses++
			logger.Debug().Str("code", code).Msg("code not in symbol table, using code as name")
			inst = types.Instrument{Code: code, Name: code}
		}
		entries[i] = entry{inst: inst, found: found}
	}

	p.fetchAll(ctx, entries, logger)

	var lines []string
	for _, e := range entries {
		if e.err != nil {
			summary.FetchFailures++
			summary.Errors = append(summary.Errors, fmt.Sprintf("fetch %s: %v", e.inst.Code, e.err))
			continue
		}
		if !screen.Passes(e.quote, p.opts.Thresholds) {
			continue
		}
		if p.opts.MaxMatches > 0 && len(lines) >= p.opts.MaxMatches {
			continue
		}
		lines = append(lines, screen.FormatLine(e.inst, e.found, e.quote))
	}
	summary.Matched = len(lines)

	if len(lines) == 0 {
		summary.Duration = p.now().Sub(started)
		logger.Info().
			Int("watched", summary.Watched).
			Int("fetch_failures", summary.FetchFailures).
			Msg("no instruments matched, nothing sent")
		return summary
	}

	// The header takes one line and up to HeaderCost runes of every message.
	title := p.title(started, len(lines))
	lineBudget := p.opts.MaxLines
	if title != "" {
		lineBudget--
	}
	lineBudget = max(lineBudget, 1)
	charBudget := max(p.opts.MaxChars-notify.HeaderCost(title, len(lines)), 1)
	chunks := notify.ChunkLines(lines, lineBudget, charBudget)

	dispatcher := notify.NewDispatcher(p.transport,
		notify.WithSendTimeout(p.opts.SendTimeout),
		notify.WithTitle(title),
		notify.WithMaxChars(charBudget),
		notify.WithLogger(logger),
	)
	dispatched := dispatcher.Dispatch(ctx, chunks, destination)

	summary.ChunksSent = dispatched.Sent
	summary.ChunksFailed = dispatched.Failed
	summary.OversizedChunks = dispatched.Oversized
	summary.Errors = append(summary.Errors, dispatched.Errors...)
	summary.Duration = p.now().Sub(started)

	logger.Info().
		Int("watched", summary.Watched).
		Int("matched", summary.Matched).
		Int("chunks_sent", summary.ChunksSent).
		Int("chunks_failed", summary.ChunksFailed).
		Dur("duration", summary.Duration).
		Msg("screening run complete")

	return summary
}

// fetchAll fills every entry's quote or error. Workers write only to their own index,
// so results stay in watchlist order whatever order the fetches finish in.
func (p *Pipeline) fetchAll(ctx context.Context, entries []entry, logger *common.Logger) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.opts.Concurrency)

	for i := range entries {
		wg.Add(1)
		sem <- struct{}{}

		go func(e *entry) {
			defer wg.Done()
			defer func() { <-sem }()

			e.quote, e.err = p.fetch(ctx, e.inst)
			if e.err != nil {
				logger.Warn().
					Str("code", e.inst.Code).
					Err(e.err).
					Msg("quote fetch failed, skipping code")
			}
		}(&entries[i])
	}

	wg.Wait()
}

func (p *Pipeline) fetch(ctx context.Context, inst types.Instrument) (types.Quote, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	type result struct {
		quote types.Quote
		err   error
	}
	resultChan := make(chan result, 1)

	go func() {
		q, err := p.quotes.Fetch(fetchCtx, inst)
		resultChan <- result{quote: q, err: err}
	}()

	select {
	case r := <-resultChan:
		return r.quote, r.err
	case <-fetchCtx.Done():
		return types.Quote{}, fmt.Errorf("quote fetch timed out after %s: %w", p.opts.FetchTimeout, fetchCtx.Err())
	}
}

func (p *Pipeline) title(now time.Time, matched int) string {
	if p.opts.Title == "" {
		return ""
	}
	return fmt.Sprintf("%s %s: %d", now.In(p.opts.Location).Format("2006-01-02"), p.opts.Title, matched)
}

// dedupe drops blank and repeated codes, keeping the first position of each.
func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		key := symbols.BaseCode(code)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, code)
	}
	return out
}
