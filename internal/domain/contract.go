package domain

import (
	"sort"
	"strings"
)

// Market is a named group of lending-protocol contracts.
type Market struct {
	Name      string            // e.g. compound_v2
	Protocol  string            // e.g. Compound
	Contracts map[string]string // symbol -> address
}

// Contract is a single target contract.
type Contract struct {
	Address  string // lower-cased
	Symbol   string
	Market   string
	Protocol string
}

// ContractSet is a case-insensitive set of target contracts.
type ContractSet struct {
	byAddress map[string]Contract
}

// NewContractSet builds a set from markets. Later markets win on address collisions.
func NewContractSet(markets ...Market) *ContractSet {
	s := &ContractSet{byAddress: make(map[string]Contract)}
	for _, m := range markets {
		for symbol, addr := range m.Contracts {
			key := NormalizeAddress(addr)
			if key == "" {
				continue
			}
			s.byAddress[key] = Contract{
				Address:  key,
				Symbol:   symbol,
				Market:   m.Name,
				Protocol: m.Protocol,
			}
		}
	}
	return s
}

// Lookup returns the contract for addr, ignoring letter case.
func (s *ContractSet) Lookup(addr string) (Contract, bool) {
	if s == nil || addr == "" {
		return Contract{}, false
	}
	c, ok := s.byAddress[NormalizeAddress(addr)]
	return c, ok
}

// Contains reports whether addr is a target contract.
func (s *ContractSet) Contains(addr string) bool {
	_, ok := s.Lookup(addr)
	return ok
}

// Len returns the number of contracts.
func (s *ContractSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byAddress)
}

// Addresses returns all contract addresses, sorted.
func (s *ContractSet) Addresses() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.byAddress))
	for a := range s.byAddress {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// NormalizeAddress trims and lower-cases an address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
