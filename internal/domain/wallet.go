package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidWallet is returned for strings that are not 20-byte hex addresses.
var ErrInvalidWallet = errors.New("invalid wallet address")

// CanonicalWallet validates a wallet address and returns its lower-cased form.
func CanonicalWallet(addr string) (string, error) {
	norm := NormalizeAddress(addr)
	if !common.IsHexAddress(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidWallet, addr)
	}
	if len(norm) == 40 {
		norm = "0x" + norm
	}
	return norm, nil
}
