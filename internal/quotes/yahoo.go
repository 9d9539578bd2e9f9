/*
Package quotes fetches the latest price, change and volume for Taiwan-listed instruments.
*/
package quotes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shanehull/twscreener/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	listedSuffix = ".TW"
	otcSuffix    = ".TWO"
)

var (
	// ErrNotFound means the quote source does not know the symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrNoData means the symbol exists but has no usable price or volume.
	ErrNoData = errors.New("no quote data")
)

// Config holds the Yahoo chart endpoint settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// YahooClient reads quotes from the Yahoo Finance chart API.
type YahooClient struct {
	client *resty.Client
}

// NewYahooClient creates a client. Yahoo hands out session cookies on first contact,
// so the client keeps a cookie jar for its lifetime.
func NewYahooClient(cfg Config) (*YahooClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetCookieJar(jar).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": userAgent,
		})

	return &YahooClient{client: client}, nil
}

// Fetch returns the quote for inst. Codes carrying an explicit exchange suffix are used
// as given; otherwise the suffix follows the board, and an unknown board tries the
// listed market before OTC.
func (y *YahooClient) Fetch(ctx context.Context, inst types.Instrument) (types.Quote, error) {
	var lastErr error
	for _, symbol := range Symbols(inst) {
		q, err := y.fetchSymbol(ctx, symbol)
		if errors.Is(err, ErrNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return types.Quote{}, err
		}
		q.Code = inst.Code
		return q, nil
	}
	return types.Quote{}, fmt.Errorf("quote for %s: %w", inst.Code, lastErr)
}

// Symbols lists the Yahoo symbols to try for inst, in order.
func Symbols(inst types.Instrument) []string {
	code := strings.ToUpper(strings.TrimSpace(inst.Code))
	if strings.Contains(code, ".") {
		return []string{code}
	}

	switch inst.Board {
	case types.BoardOTC:
		return []string{code + otcSuffix}
	case types.BoardListed, types.BoardETF:
		return []string{code + listedSuffix}
	default:
		return []string{code + listedSuffix, code + otcSuffix}
	}
}

func (y *YahooClient) fetchSymbol(ctx context.Context, symbol string) (types.Quote, error) {
	var chart chartResponse

	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"range":    "1d",
			"interval": "1d",
		}).
		SetResult(&chart).
		SetError(&chart).
		Get("/" + url.PathEscape(symbol))
	if err != nil {
		return types.Quote{}, fmt.Errorf("yahoo request for %s failed: %w", symbol, err)
	}

	if resp.StatusCode() == http.StatusNotFound || chart.Chart.Error.notFound() {
		return types.Quote{}, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	if !resp.IsSuccess() {
		return types.Quote{}, fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode(), symbol)
	}
	if chart.Chart.Error != nil {
		return types.Quote{}, fmt.Errorf("yahoo error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return types.Quote{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}

	return parseQuote(symbol, chart.Chart.Result[0])
}

func parseQuote(symbol string, r chartResult) (types.Quote, error) {
	price := r.Meta.RegularMarketPrice
	if !price.Valid {
		return types.Quote{}, fmt.Errorf("%s has no market price: %w", symbol, ErrNoData)
	}

	prev := r.Meta.ChartPreviousClose
	if !prev.Valid || prev.Decimal.IsZero() {
		prev = r.Meta.PreviousClose
	}
	if !prev.Valid || prev.Decimal.IsZero() {
		return types.Quote{}, fmt.Errorf("%s has no previous close: %w", symbol, ErrNoData)
	}

	changePct := price.Decimal.Sub(prev.Decimal).
		Div(prev.Decimal).
		Mul(decimal.NewFromInt(100)).
		Round(4)

	return types.Quote{
		Code:      symbol,
		Price:     price.Decimal,
		ChangePct: changePct,
		Volume:    r.volume(),
	}, nil
}
