package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"wallet-score-lab/internal/domain"
)

// ComputeRecordID computes a deterministic transaction row ID using SHA256.
// Formula: SHA256(lower(wallet)|lower(tx_hash))
// Returns hex-encoded hash (64 characters).
func ComputeRecordID(wallet, txHash string) string {
	data := fmt.Sprintf("%s|%s",
		domain.NormalizeAddress(wallet),
		strings.ToLower(strings.TrimSpace(txHash)),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputePopulationHash fingerprints the set of wallets scored together.
// Order and duplicates do not affect the result.
// Formula: SHA256(sorted unique wallets joined by "|")
func ComputePopulationHash(wallets []string) string {
	uniq := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		uniq[domain.NormalizeAddress(w)] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for w := range uniq {
		sorted = append(sorted, w)
	}
	sort.Strings(sorted)

	hash := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(hash[:])
}
