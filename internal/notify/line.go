package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const DefaultLineEndpoint = "https://api.line.me/v2/bot/message/push"

// LineConfig holds the LINE Messaging API push settings.
type LineConfig struct {
	Endpoint     string
	ChannelToken string
}

type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type lineErrorResponse struct {
	Message string `json:"message"`
	Details []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details"`
}

// LineTransport pushes text messages to a LINE user, group or room id.
type LineTransport struct {
	client   *resty.Client
	endpoint string
}

// NewLineTransport creates a transport authenticated with a long-lived channel access token.
func NewLineTransport(cfg LineConfig) *LineTransport {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultLineEndpoint
	}

	client := resty.New().
		SetAuthToken(cfg.ChannelToken).
		SetHeaders(map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		})

	return &LineTransport{
		client:   client,
		endpoint: endpoint,
	}
}

// Send pushes one text message to destination.
func (t *LineTransport) Send(ctx context.Context, destination, text string) error {
	var apiErr lineErrorResponse

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(linePushRequest{
			To:       destination,
			Messages: []lineMessage{{Type: "text", Text: text}},
		}).
		SetError(&apiErr).
		Post(t.endpoint)
	if err != nil {
		return fmt.Errorf("line push to %s failed: %w", destination, err)
	}

	if !resp.IsSuccess() {
		msg := apiErr.Message
		if len(apiErr.Details) > 0 {
			msg = fmt.Sprintf("%s (%s: %s)", msg, apiErr.Details[0].Property, apiErr.Details[0].Message)
		}
		return fmt.Errorf("%w: line push returned status %d: %s", ErrRejected, resp.StatusCode(), msg)
	}

	return nil
}
