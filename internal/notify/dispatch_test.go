package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

// recordingTransport records every message and fails the calls listed in failOn (1-based).
type recordingTransport struct {
	mu       sync.Mutex
	calls    int
	failOn   map[int]bool
	delay    time.Duration
	messages []string
	dests    []string
}

func (r *recordingTransport) Send(ctx context.Context, destination, text string) error {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.failOn[call] {
		return fmt.Errorf("%w: simulated failure on call %d", ErrRejected, call)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
	r.dests = append(r.dests, destination)
	return nil
}

func chunksOf(texts ...string) []Chunk {
	var chunks []Chunk
	for _, text := range texts {
		chunks = append(chunks, Chunk{Lines: []string{text}, CharCount: utf8.RuneCountInString(text)})
	}
	return chunks
}

func TestDispatch_AllDelivered(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(tr)

	summary := d.Dispatch(context.Background(), chunksOf("one", "two", "three"), "U123")

	if summary.Sent != 3 || summary.Failed != 0 {
		t.Fatalf("expected 3 sent 0 failed, got %d sent %d failed", summary.Sent, summary.Failed)
	}
	if strings.Join(tr.messages, "|") != "one|two|three" {
		t.Errorf("messages delivered out of order: %v", tr.messages)
	}
	for _, dest := range tr.dests {
		if dest != "U123" {
			t.Errorf("expected destination U123, got %s", dest)
		}
	}
}

func TestDispatch_FailureDoesNotStopLaterChunks(t *testing.T) {
	tr := &recordingTransport{failOn: map[int]bool{2: true}}
	d := NewDispatcher(tr)

	summary := d.Dispatch(context.Background(), chunksOf("one", "two", "three"), "U123")

	if summary.Sent != 2 || summary.Failed != 1 {
		t.Fatalf("expected 2 sent 1 failed, got %d sent %d failed", summary.Sent, summary.Failed)
	}
	if tr.calls != 3 {
		t.Errorf("expected all 3 chunks attempted, got %d calls", tr.calls)
	}
	if strings.Join(tr.messages, "|") != "one|three" {
		t.Errorf("unexpected delivered messages: %v", tr.messages)
	}
	if len(summary.Errors) != 1 || !strings.HasPrefix(summary.Errors[0], "chunk 2/3:") {
		t.Errorf("expected one error for chunk 2/3, got %v", summary.Errors)
	}
}

func TestDispatch_NoRetries(t *testing.T) {
	tr := &recordingTransport{failOn: map[int]bool{1: true}}
	d := NewDispatcher(tr)

	summary := d.Dispatch(context.Background(), chunksOf("only"), "U123")

	if summary.Failed != 1 || tr.calls != 1 {
		t.Errorf("expected a single failed attempt, got %d failed over %d calls", summary.Failed, tr.calls)
	}
}

func TestDispatch_TimeoutCountsAsFailure(t *testing.T) {
	tr := &recordingTransport{delay: time.Second}
	d := NewDispatcher(tr, WithSendTimeout(20*time.Millisecond))

	start := time.Now()
	summary := d.Dispatch(context.Background(), chunksOf("slow", "slower"), "U123")

	if summary.Failed != 2 || summary.Sent != 0 {
		t.Fatalf("expected both chunks to time out, got %d sent %d failed", summary.Sent, summary.Failed)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("dispatch took %s, expected the send timeout to cut it short", elapsed)
	}
	if !strings.Contains(summary.Errors[0], "timed out") {
		t.Errorf("expected timeout error, got %q", summary.Errors[0])
	}
}

func TestDispatch_TransportIgnoringContextStillTimesOut(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	tr := transportFunc(func(ctx context.Context, destination, text string) error {
		<-block
		return nil
	})
	d := NewDispatcher(tr, WithSendTimeout(20*time.Millisecond))

	summary := d.Dispatch(context.Background(), chunksOf("stuck"), "U123")
	if summary.Failed != 1 {
		t.Errorf("expected the stuck send to fail, got %+v", summary)
	}
}

func TestDispatch_TitleHeader(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(tr, WithTitle("Movers"))

	d.Dispatch(context.Background(), chunksOf("a", "b"), "U123")

	want := []string{"Movers (1/2)\na", "Movers (2/2)\nb"}
	if strings.Join(tr.messages, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", tr.messages, want)
	}
}

func TestDispatch_SingleChunkHeaderHasNoCounter(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(tr, WithTitle("Movers"))

	d.Dispatch(context.Background(), chunksOf("a"), "U123")

	if len(tr.messages) != 1 || tr.messages[0] != "Movers\na" {
		t.Errorf("unexpected message: %q", tr.messages)
	}
}

func TestDispatch_NoChunksSendsNothing(t *testing.T) {
	tr := &recordingTransport{}
	summary := NewDispatcher(tr).Dispatch(context.Background(), nil, "U123")

	if summary.Sent != 0 || summary.Failed != 0 || tr.calls != 0 {
		t.Errorf("expected no sends, got %+v with %d calls", summary, tr.calls)
	}
}

func TestDispatch_CountsOversizedChunks(t *testing.T) {
	long := strings.Repeat("z", 30)
	chunks := ChunkLines([]string{"short", long, "tail"}, 10, 20)
	tr := &recordingTransport{}

	summary := NewDispatcher(tr, WithMaxChars(20)).Dispatch(context.Background(), chunks, "U123")

	if summary.Oversized != 1 {
		t.Errorf("expected 1 oversized chunk, got %d", summary.Oversized)
	}
	if summary.Sent != 3 || tr.messages[1] != long {
		t.Errorf("expected the long line delivered intact, got %+v %q", summary, tr.messages)
	}

	unchecked := NewDispatcher(&recordingTransport{}).Dispatch(context.Background(), chunks, "U123")
	if unchecked.Oversized != 0 {
		t.Errorf("expected no oversized count without a char bound, got %d", unchecked.Oversized)
	}
}

func TestHeaderCost(t *testing.T) {
	if got := HeaderCost("", 10); got != 0 {
		t.Errorf("expected 0 for empty title, got %d", got)
	}

	// "Movers (12/12)" is 14 runes plus the separator.
	if got := HeaderCost("Movers", 12); got != 15 {
		t.Errorf("expected 15, got %d", got)
	}

	// The reserved budget covers every header actually rendered.
	title := "2026-10-15 漲跌: 30"
	lines := makeLines(30, 20)
	budget := 120 - HeaderCost(title, len(lines))
	chunks := ChunkLines(lines, 25, budget)
	tr := &recordingTransport{}
	NewDispatcher(tr, WithTitle(title)).Dispatch(context.Background(), chunks, "U123")
	for i, msg := range tr.messages {
		if n := utf8.RuneCountInString(msg); n > 120 {
			t.Errorf("message %d has %d runes, max 120", i, n)
		}
	}
}

type transportFunc func(ctx context.Context, destination, text string) error

func (f transportFunc) Send(ctx context.Context, destination, text string) error {
	return f(ctx, destination, text)
}
