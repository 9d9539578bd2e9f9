package quotes

import "github.com/shopspring/decimal"

type chartResponse struct {
	Chart chartData `json:"chart"`
}

type chartData struct {
	Result []chartResult `json:"result"`
	Error  *chartError   `json:"error"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *chartError) notFound() bool {
	return e != nil && e.Code == "Not Found"
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol              string              `json:"symbol"`
	Currency            string              `json:"currency"`
	RegularMarketPrice  decimal.NullDecimal `json:"regularMarketPrice"`
	ChartPreviousClose  decimal.NullDecimal `json:"chartPreviousClose"`
	PreviousClose       decimal.NullDecimal `json:"previousClose"`
	RegularMarketVolume *int64              `json:"regularMarketVolume"`
}

type indicators struct {
	Quote []quoteSeries `json:"quote"`
}

type quoteSeries struct {
	Volume []*int64 `json:"volume"`
}

// volume prefers the meta field and falls back to the last reported bar.
func (r chartResult) volume() int64 {
	if r.Meta.RegularMarketVolume != nil {
		return *r.Meta.RegularMarketVolume
	}
	if len(r.Indicators.Quote) == 0 {
		return 0
	}
	series := r.Indicators.Quote[0].Volume
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] != nil {
			return *series[i]
		}
	}
	return 0
}
