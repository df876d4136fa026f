package tabular

import (
	"io"

	"wallet-score-lab/internal/domain"
)

// WalletList is the result of reading a wallet table.
type WalletList struct {
	Wallets []string    // canonical, de-duplicated, in file order
	Invalid []*RowError // rows whose address failed validation
}

// ReadWallets reads the wallets table. Invalid addresses are collected
// rather than failing the whole read.
func ReadWallets(r io.Reader) (*WalletList, error) {
	out := &WalletList{}
	seen := make(map[string]struct{})
	err := forEachRow(r, WalletColumns, func(h header, row []string, line int) error {
		w, err := domain.CanonicalWallet(h.get(row, "wallet"))
		if err != nil {
			out.Invalid = append(out.Invalid, &RowError{Line: line, Err: err})
			return nil
		}
		if _, dup := seen[w]; dup {
			return nil
		}
		seen[w] = struct{}{}
		out.Wallets = append(out.Wallets, w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteWallets writes a wallets table.
func WriteWallets(w io.Writer, wallets []string) error {
	rows := make([][]string, len(wallets))
	for i, wallet := range wallets {
		rows[i] = []string{wallet}
	}
	return writeTable(w, WalletColumns, rows)
}

// ReadWalletsFile reads a wallets table from path.
func ReadWalletsFile(path string) (*WalletList, error) {
	var out *WalletList
	err := readFile(path, func(r io.Reader) error {
		var err error
		out, err = ReadWallets(r)
		return err
	})
	return out, err
}

// WriteWalletsFile writes a wallets table to path.
func WriteWalletsFile(path string, wallets []string) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteWallets(w, wallets)
	})
}
