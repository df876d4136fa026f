package tabular

import (
	"fmt"
	"io"
	"strconv"

	"wallet-score-lab/internal/domain"
)

// ReadScores reads a scores table.
func ReadScores(r io.Reader) ([]*domain.ScoreRecord, error) {
	var out []*domain.ScoreRecord
	err := forEachRow(r, ScoreColumns, func(h header, row []string, line int) error {
		s, err := strconv.Atoi(h.get(row, "score"))
		if err != nil {
			return &RowError{Line: line, Err: fmt.Errorf("score: %w", err)}
		}
		out = append(out, &domain.ScoreRecord{WalletID: h.get(row, "wallet_id"), Score: s})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteScores writes a scores table.
func WriteScores(w io.Writer, records []*domain.ScoreRecord) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.WalletID, strconv.Itoa(r.Score)}
	}
	return writeTable(w, ScoreColumns, rows)
}

// ReadScoresFile reads a scores table from path.
func ReadScoresFile(path string) ([]*domain.ScoreRecord, error) {
	var out []*domain.ScoreRecord
	err := readFile(path, func(r io.Reader) error {
		var err error
		out, err = ReadScores(r)
		return err
	})
	return out, err
}

// WriteScoresFile writes a scores table to path.
func WriteScoresFile(path string, records []*domain.ScoreRecord) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteScores(w, records)
	})
}
