/*
Package symbols holds the instrument table that maps watchlist codes to names and boards.
The table is filled from the daily symbol CSV and swapped wholesale on refresh.
*/
package symbols

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
	"github.com/shanehull/twscreener/internal/types"
	"golang.org/x/text/width"
)

// WatchAll is the watchlist keyword that selects every listed and OTC stock in the table.
const WatchAll = "ALL"

const utf8BOM = "\ufeff"

// Table is a read-mostly code -> instrument lookup.
// Replace swaps the whole table at once so readers never see a half-loaded refresh.
type Table struct {
	items atomic.Pointer[cache.Cache]
}

// NewTable creates a table holding instruments.
func NewTable(instruments []types.Instrument) *Table {
	t := &Table{}
	t.Replace(instruments)
	return t
}

// Replace installs instruments as the new table contents. The first entry for a code wins.
func (t *Table) Replace(instruments []types.Instrument) {
	c := cache.New(cache.NoExpiration, 0)
	for _, inst := range instruments {
		// Add fails on duplicates, which keeps the first entry.
		_ = c.Add(inst.Code, inst, cache.NoExpiration)
	}
	t.items.Store(c)
}

// Lookup returns the instrument for code. Case, surrounding space and an exchange
// suffix such as ".TW" are ignored.
func (t *Table) Lookup(code string) (types.Instrument, bool) {
	v, ok := t.items.Load().Get(BaseCode(code))
	if !ok {
		return types.Instrument{}, false
	}
	return v.(types.Instrument), true
}

// Len returns the number of instruments in the table.
func (t *Table) Len() int {
	return t.items.Load().ItemCount()
}

// Stocks returns the codes of every LISTED and OTC instrument, listed board first, then by code.
func (t *Table) Stocks() []string {
	var stocks []types.Instrument
	for _, item := range t.items.Load().Items() {
		inst := item.Object.(types.Instrument)
		if inst.Board == types.BoardListed || inst.Board == types.BoardOTC {
			stocks = append(stocks, inst)
		}
	}

	slices.SortFunc(stocks, func(a, b types.Instrument) int {
		if a.Board != b.Board {
			if a.Board == types.BoardListed {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Code, b.Code)
	})

	codes := make([]string, len(stocks))
	for i, inst := range stocks {
		codes[i] = inst.Code
	}
	return codes
}

// ExpandWatchlist replaces the WatchAll keyword with every stock in the table.
// Other codes are trimmed and kept in order.
func (t *Table) ExpandWatchlist(codes []string) []string {
	var out []string
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if strings.EqualFold(code, WatchAll) {
			out = append(out, t.Stocks()...)
			continue
		}
		out = append(out, code)
	}
	return out
}

// ExpandWatchlistOr expands codes like ExpandWatchlist and returns fallback instead
// when that leaves nothing to screen. The second result reports whether fallback was used.
func (t *Table) ExpandWatchlistOr(codes, fallback []string) ([]string, bool) {
	if expanded := t.ExpandWatchlist(codes); len(expanded) > 0 {
		return expanded, false
	}
	return t.ExpandWatchlist(fallback), true
}

// BaseCode normalises a code for lookup: upper case, trimmed, exchange suffix removed.
func BaseCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if i := strings.IndexByte(code, '.'); i > 0 {
		code = code[:i]
	}
	return code
}

// LoadFile reads a symbol CSV from path into a new table.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol file %s: %w", path, err)
	}
	defer f.Close()

	instruments, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol file %s: %w", path, err)
	}
	return NewTable(instruments), nil
}

// Read parses a symbol CSV with code, name and board columns, in any order.
// Rows with an empty code or an unknown board are skipped.
func Read(r io.Reader) ([]types.Instrument, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("symbol CSV is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	headerMap := make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, utf8BOM)))
		headerMap[name] = i
	}

	codeIdx, hasCode := headerMap["code"]
	nameIdx, hasName := headerMap["name"]
	boardIdx, hasBoard := headerMap["board"]
	if !hasCode || !hasName || !hasBoard {
		return nil, fmt.Errorf("missing required columns: code, name or board")
	}
	minFields := max(codeIdx, nameIdx, boardIdx) + 1

	var instruments []types.Instrument
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv record: %w", err)
		}
		if len(record) < minFields {
			continue
		}

		code := BaseCode(record[codeIdx])
		if code == "" {
			continue
		}
		board, err := types.ParseBoard(record[boardIdx])
		if err != nil {
			continue
		}

		instruments = append(instruments, types.Instrument{
			Code:  code,
			Name:  normaliseName(record[nameIdx]),
			Board: board,
		})
	}

	return instruments, nil
}

// normaliseName folds full-width latin letters, digits and spaces to their narrow forms
// and collapses runs of whitespace.
func normaliseName(name string) string {
	return strings.Join(strings.Fields(width.Narrow.String(name)), " ")
}
