package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Board is the market segment an instrument trades on.
type Board string

const (
	BoardListed Board = "LISTED"
	BoardOTC    Board = "OTC"
	BoardETF    Board = "ETF"
)

// ParseBoard maps a board label to a Board, ignoring case and surrounding space.
func ParseBoard(s string) (Board, error) {
	switch b := Board(strings.ToUpper(strings.TrimSpace(s))); b {
	case BoardListed, BoardOTC, BoardETF:
		return b, nil
	default:
		return "", fmt.Errorf("unknown board %q", s)
	}
}

type Instrument struct {
	Code  string
	Name  string
	Board Board
}

// DisplayName returns the instrument name, or the code when no name is known.
func (i Instrument) DisplayName() string {
	if strings.TrimSpace(i.Name) == "" {
		return i.Code
	}
	return i.Name
}

type Quote struct {
	Code      string
	Price     decimal.Decimal
	ChangePct decimal.Decimal
	Volume    int64
}
