package params

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParamsKeyPlatform is the canonical parameter-store key holding the platform
// lending parameters.
const ParamsKeyPlatform = "lending.platform"

// PlatformParams groups the governance-controlled percentages applied to new
// loans. All three values are percentages scaled by 1000 (three implied
// decimal digits), so a loan-to-value of 50% is stored as 50000.
type PlatformParams struct {
	// FeePercentage is the platform fee charged on every granted loan.
	FeePercentage uint32 `json:"feePercentage"`
	// InterestRate is the annual interest rate applied to outstanding debt.
	InterestRate uint32 `json:"interestRate"`
	// LoanToValue caps the borrowable fraction of the pledged collateral
	// worth.
	LoanToValue uint32 `json:"loanToValue"`
}

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Store provides typed accessors for the governance-controlled platform
// parameters. Writes flow exclusively through the multisig engine's executed
// commands; the lending engine only reads.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetPlatform persists the supplied platform parameters under the canonical
// key. Values are marshalled as JSON to align with governance command
// payloads.
func (s *Store) SetPlatform(p PlatformParams) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("params: encode platform params: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyPlatform, encoded)
}

// Platform loads the persisted platform parameters. When unset, a zero-value
// configuration is returned.
func (s *Store) Platform() (PlatformParams, error) {
	state, err := s.withState()
	if err != nil {
		return PlatformParams{}, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyPlatform)
	if err != nil {
		return PlatformParams{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return PlatformParams{}, nil
	}
	var p PlatformParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return PlatformParams{}, fmt.Errorf("params: decode platform params: %w", err)
	}
	return p, nil
}
