package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"pcnchain/crypto"
)

// Spec seeds the external ledger and the participant registry of a fresh
// network. Alloc maps an address (bech32 or 0x hex) to a base-10 amount.
type Spec struct {
	NetworkName  string            `json:"networkName"`
	Alloc        map[string]string `json:"alloc"`
	Participants []string          `json:"participants"`

	allocations  []Allocation
	participants [][20]byte
}

// Allocation is a validated ledger credit.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

// LoadSpec reads and validates a JSON genesis file. Unknown fields are
// rejected.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// Validate parses every address and amount. Allocations are ordered by
// address so application is deterministic.
func (s *Spec) Validate() error {
	s.allocations = s.allocations[:0]
	for raw, value := range s.Alloc {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", raw, err)
		}
		amount, err := parseAmountString(value)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", raw, err)
		}
		s.allocations = append(s.allocations, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(s.allocations, func(i, j int) bool {
		return bytes.Compare(s.allocations[i].Address[:], s.allocations[j].Address[:]) < 0
	})

	seen := make(map[[20]byte]struct{}, len(s.Participants))
	s.participants = s.participants[:0]
	for _, raw := range s.Participants {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("participant %q: %w", raw, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("participant %q listed twice", raw)
		}
		seen[addr] = struct{}{}
		s.participants = append(s.participants, addr)
	}
	return nil
}

// Allocations returns the validated ledger credits.
func (s *Spec) Allocations() []Allocation { return s.allocations }

// ParticipantAddresses returns the participants to register, in file order.
func (s *Spec) ParticipantAddresses() [][20]byte { return s.participants }

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
