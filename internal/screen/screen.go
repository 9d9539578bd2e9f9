/*
Package screen decides which quotes are worth reporting and renders them as report lines.
*/
package screen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shanehull/twscreener/internal/types"
	"github.com/shopspring/decimal"
)

// Thresholds are the minimum move and turnover a quote needs to be reported.
type Thresholds struct {
	MinChangePct decimal.Decimal
	MinVolume    int64
}

// Passes reports whether the absolute change and the volume both reach the thresholds.
// Drops count the same as gains.
func Passes(q types.Quote, t Thresholds) bool {
	return q.ChangePct.Abs().GreaterThanOrEqual(t.MinChangePct) && q.Volume >= t.MinVolume
}

// FormatLine renders one report line: code, name, price, signed change and volume.
// found is false when the code had no symbol table entry; the code then stands in for the name.
func FormatLine(inst types.Instrument, found bool, q types.Quote) string {
	name := inst.Code
	if found {
		name = inst.DisplayName()
	}
	code := inst.Code
	if code == "" {
		code = q.Code
		name = q.Code
	}

	return fmt.Sprintf("%s %s %s %s %s%% vol %s",
		trendGlyph(q.ChangePct),
		code,
		name,
		q.Price.StringFixed(2),
		signed(q.ChangePct),
		groupThousands(q.Volume))
}

func trendGlyph(change decimal.Decimal) string {
	switch change.Sign() {
	case 1:
		return "▲"
	case -1:
		return "▼"
	default:
		return "－"
	}
}

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Sign() >= 0 {
		return "+" + s
	}
	return s
}

// groupThousands formats n with comma separators, e.g. 1234567 -> "1,234,567".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}

	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}
