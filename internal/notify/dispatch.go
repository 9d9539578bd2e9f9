package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/shanehull/twscreener/internal/common"
)

const defaultSendTimeout = 10 * time.Second

// ErrRejected is returned by transports when the channel answers but refuses the message.
var ErrRejected = errors.New("message rejected")

// Transport delivers one text message to a destination.
// Implementations must honour ctx cancellation.
type Transport interface {
	Send(ctx context.Context, destination, text string) error
}

// DispatchSummary is the outcome of delivering a sequence of chunks.
// Oversized counts chunks sent over the char bound because a single line exceeded it.
type DispatchSummary struct {
	Sent      int
	Failed    int
	Oversized int
	Errors    []string
}

// Dispatcher sends chunks through a Transport one at a time, in order.
// A failed chunk is recorded and never stops the chunks after it. There are no retries.
type Dispatcher struct {
	transport Transport
	timeout   time.Duration
	title     string
	maxChars  int
	logger    *common.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout bounds every Send call.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithTitle prefixes every message with a header line built from title.
func WithTitle(title string) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.title = title
	}
}

// WithMaxChars sets the char bound the chunks were packed to. Chunks that exceed it
// are logged and counted. Zero disables the check.
func WithMaxChars(n int) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.maxChars = n
	}
}

// WithLogger sets the logger used for per-chunk events.
func WithLogger(l *common.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		if l != nil {
			disp.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher writing to transport.
func NewDispatcher(transport Transport, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		timeout:   defaultSendTimeout,
		logger:    common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends every chunk to destination and reports how many went through.
func (d *Dispatcher) Dispatch(ctx context.Context, chunks []Chunk, destination string) DispatchSummary {
	var summary DispatchSummary
	total := len(chunks)

	for i, chunk := range chunks {
		text := d.render(chunk, i+1, total)

		if d.maxChars > 0 && chunk.Oversized(d.maxChars) {
			summary.Oversized++
			d.logger.Warn().
				Int("chunk", i+1).
				Int("chars", chunk.CharCount).
				Int("max_chars", d.maxChars).
				Msg("line longer than the message limit, sending it alone")
		}

		if err := d.send(ctx, destination, text); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("chunk %d/%d: %v", i+1, total, err))
			d.logger.Warn().
				Int("chunk", i+1).
				Int("chunks", total).
				Err(err).
				Msg("chunk delivery failed")
			continue
		}

		summary.Sent++
		d.logger.Debug().
			Int("chunk", i+1).
			Int("chunks", total).
			Int("lines", len(chunk.Lines)).
			Int("chars", utf8.RuneCountInString(text)).
			Msg("chunk delivered")
	}

	return summary
}

func (d *Dispatcher) send(ctx context.Context, destination, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.transport.Send(sendCtx, destination, text)
	}()

	select {
	case err := <-errChan:
		return err
	case <-sendCtx.Done():
		return fmt.Errorf("send timed out after %s: %w", d.timeout, sendCtx.Err())
	}
}

func (d *Dispatcher) render(chunk Chunk, index, total int) string {
	if d.title == "" {
		return chunk.Text()
	}
	return header(d.title, index, total) + lineSeparator + chunk.Text()
}

func header(title string, index, total int) string {
	if total <= 1 {
		return title
	}
	return fmt.Sprintf("%s (%d/%d)", title, index, total)
}

// HeaderCost is the largest number of runes a header for title can add to a message
// when lineCount lines are being delivered. Every chunk holds at least one line, so
// lineCount bounds the chunk count.
func HeaderCost(title string, lineCount int) int {
	if title == "" {
		return 0
	}
	n := strconv.Itoa(max(lineCount, 1))
	widest := fmt.Sprintf("%s (%s/%s)", title, n, n)
	return utf8.RuneCountInString(widest) + utf8.RuneCountInString(lineSeparator)
}
