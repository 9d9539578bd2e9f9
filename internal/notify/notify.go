/*
Package notify splits report lines into size-bounded messages and delivers them
through a push transport: LINE, email or the console.
*/
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsoleTransport prints messages instead of pushing them. Used for dry runs.
type ConsoleTransport struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleTransport creates a transport writing to out.
func NewConsoleTransport(out io.Writer) *ConsoleTransport {
	return &ConsoleTransport{out: out}
}

// Send writes text framed by a banner naming the destination.
func (t *ConsoleTransport) Send(ctx context.Context, destination, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if destination == "" {
		destination = "console"
	}

	var sb strings.Builder
	sb.WriteString("\n===========================================\n")
	sb.WriteString(fmt.Sprintf("-> %s\n", destination))
	sb.WriteString("===========================================\n")
	sb.WriteString(text + "\n")

	_, err := io.WriteString(t.out, sb.String())
	return err
}
