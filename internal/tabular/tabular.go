// Package tabular reads and writes the pipeline's CSV tables.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Column headers, in file order.
var (
	WalletColumns      = []string{"wallet"}
	TransactionColumns = []string{"wallet", "tx_hash", "timestamp", "from", "to", "contract_label", "action", "value"}
	FeatureColumns     = []string{"wallet", "tx_count", "total_value", "first_tx", "last_tx", "active_days"}
	ScoreColumns       = []string{"wallet_id", "score"}
)

// ErrMissingColumn is returned when a table header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// RowError locates a malformed row. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

const pandasTimeLayout = "2006-01-02 15:04:05-07:00"

// FormatTime renders a timestamp in UTC RFC3339.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime accepts RFC3339 and the "YYYY-MM-DD HH:MM:SS+00:00" layout.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(pandasTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// header maps column names to indexes and checks that all required columns exist.
type header map[string]int

func readHeader(r *csv.Reader, required []string) (header, error) {
	row, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty table: %w", ErrMissingColumn)
		}
		return nil, err
	}
	h := make(header, len(row))
	for i, name := range row {
		h[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return h, nil
}

func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// forEachRow reads the header and calls fn for every data row.
func forEachRow(r io.Reader, required []string, fn func(h header, row []string, line int) error) error {
	cr := newReader(r)
	h, err := readHeader(cr, required)
	if err != nil {
		return err
	}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return &RowError{Line: perr.StartLine, Err: err}
			}
			return err
		}
		line, _ := cr.FieldPos(0)
		if isBlank(row) {
			continue
		}
		if err := fn(h, row, line); err != nil {
			return err
		}
	}
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func writeTable(w io.Writer, columns []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// writeFile writes to a temporary file in the target directory and renames
// it into place, so readers never observe a half-written table.
func writeFile(path string, fn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
