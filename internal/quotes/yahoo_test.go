package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shanehull/twscreener/internal/types"
	"github.com/shopspring/decimal"
)

const notFoundBody = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func chartBody(symbol, price, prevClose, volume string) string {
	return `{"chart":{"result":[{"meta":{"symbol":"` + symbol + `","currency":"TWD",` +
		`"regularMarketPrice":` + price + `,"chartPreviousClose":` + prevClose + `,"regularMarketVolume":` + volume + `},` +
		`"timestamp":[1760486400],"indicators":{"quote":[{"volume":[` + volume + `]}]}}],"error":null}}`
}

// chartServer serves bodies keyed by symbol and answers 404 for anything else.
func chartServer(t *testing.T, bodies map[string]string) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var requested []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimPrefix(r.URL.Path, "/")
		mu.Lock()
		requested = append(requested, symbol)
		mu.Unlock()

		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("expected interval=1d, got %q", r.URL.RawQuery)
		}

		w.Header().Set("Content-Type", "application/json")
		body, ok := bodies[symbol]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(notFoundBody))
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), requested...)
	}
}

func newTestClient(t *testing.T, baseURL string) *YahooClient {
	t.Helper()
	c, err := NewYahooClient(Config{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewYahooClient failed: %v", err)
	}
	return c
}

func TestFetch_Listed(t *testing.T) {
	srv, requested := chartServer(t, map[string]string{
		"2330.TW": chartBody("2330.TW", "600.0", "580.0", "25000000"),
	})
	c := newTestClient(t, srv.URL)

	q, err := c.Fetch(context.Background(), types.Instrument{Code: "2330", Board: types.BoardListed})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if q.Code != "2330" {
		t.Errorf("expected code 2330, got %s", q.Code)
	}
	if !q.Price.Equal(decimal.RequireFromString("600")) {
		t.Errorf("expected price 600, got %s", q.Price)
	}
	if !q.ChangePct.Equal(decimal.RequireFromString("3.4483")) {
		t.Errorf("expected change 3.4483%%, got %s", q.ChangePct)
	}
	if q.Volume != 25_000_000 {
		t.Errorf("expected volume 25000000, got %d", q.Volume)
	}
	if !reflect.DeepEqual(requested(), []string{"2330.TW"}) {
		t.Errorf("unexpected requests %v", requested())
	}
}

func TestFetch_UnknownBoardFallsBackToOTC(t *testing.T) {
	srv, requested := chartServer(t, map[string]string{
		"6488.TWO": chartBody("6488.TWO", "380", "400", "1200000"),
	})
	c := newTestClient(t, srv.URL)

	q, err := c.Fetch(context.Background(), types.Instrument{Code: "6488"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !q.ChangePct.Equal(decimal.RequireFromString("-5")) {
		t.Errorf("expected change -5%%, got %s", q.ChangePct)
	}
	if !reflect.DeepEqual(requested(), []string{"6488.TW", "6488.TWO"}) {
		t.Errorf("expected .TW then .TWO, got %v", requested())
	}
}

func TestFetch_NotFound(t *testing.T) {
	srv, _ := chartServer(t, nil)
	c := newTestClient(t, srv.URL)

	_, err := c.Fetch(context.Background(), types.Instrument{Code: "0000", Board: types.BoardOTC})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetch_ServerErrorIsNotRetriedOnOtherBoard(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	_, err := c.Fetch(context.Background(), types.Instrument{Code: "2330"})
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected a non-not-found error, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestFetch_NoPreviousClose(t *testing.T) {
	srv, _ := chartServer(t, map[string]string{
		"2330.TW": `{"chart":{"result":[{"meta":{"regularMarketPrice":600,"chartPreviousClose":null,"previousClose":0}}],"error":null}}`,
	})
	c := newTestClient(t, srv.URL)

	_, err := c.Fetch(context.Background(), types.Instrument{Code: "2330", Board: types.BoardListed})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestFetch_VolumeFromBars(t *testing.T) {
	srv, _ := chartServer(t, map[string]string{
		"2330.TW": `{"chart":{"result":[{"meta":{"regularMarketPrice":610,"previousClose":600},` +
			`"indicators":{"quote":[{"volume":[1500,null]}]}}],"error":null}}`,
	})
	c := newTestClient(t, srv.URL)

	q, err := c.Fetch(context.Background(), types.Instrument{Code: "2330", Board: types.BoardListed})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if q.Volume != 1500 {
		t.Errorf("expected last non-null bar volume 1500, got %d", q.Volume)
	}
	if !q.ChangePct.Equal(decimal.RequireFromString("1.6667")) {
		t.Errorf("expected change 1.6667%%, got %s", q.ChangePct)
	}
}

func TestSymbols(t *testing.T) {
	tests := []struct {
		inst types.Instrument
		want []string
	}{
		{types.Instrument{Code: "2330", Board: types.BoardListed}, []string{"2330.TW"}},
		{types.Instrument{Code: "0050", Board: types.BoardETF}, []string{"0050.TW"}},
		{types.Instrument{Code: "6488", Board: types.BoardOTC}, []string{"6488.TWO"}},
		{types.Instrument{Code: "1234"}, []string{"1234.TW", "1234.TWO"}},
		{types.Instrument{Code: "6488.two", Board: types.BoardListed}, []string{"6488.TWO"}},
	}
	for _, tt := range tests {
		if got := Symbols(tt.inst); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Symbols(%+v) = %v, want %v", tt.inst, got, tt.want)
		}
	}
}
