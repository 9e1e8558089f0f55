package custody

import (
	"errors"
	"math/big"

	"nftlend/core/types"
)

// The custody service is an external collaborator; every failure below aborts
// the enclosing state transition so no partial transfer ever commits.
var (
	ErrUnknownAsset        = errors.New("custody: unknown asset")
	ErrInvalidAmount       = errors.New("custody: amount must be positive")
	ErrInsufficientBalance = errors.New("custody: insufficient balance")
	ErrNotMintAuthority    = errors.New("custody: caller is not the mint authority")
	ErrHoldingNotFound     = errors.New("custody: holding account not found")
)

// Receipt acknowledges an escrow deposit held by the custody vault.
type Receipt struct {
	Asset  types.AssetID
	Amount *big.Int
	Vault  types.Address
}

// Adapter wraps the asset custody service's atomic primitives. Implementations
// must treat each call as part of the caller's atomic unit: on error nothing
// may have moved.
type Adapter interface {
	// Escrow moves amount of asset from payer into the custody vault.
	Escrow(asset types.AssetID, amount *big.Int, payer types.Address) (*Receipt, error)
	// Release moves amount of asset from the custody vault to the recipient.
	Release(asset types.AssetID, amount *big.Int, to types.Address) error
	// Mint creates amount of asset in the recipient's holding account. The
	// supplied authority must match the asset's registered mint authority.
	Mint(asset types.AssetID, amount *big.Int, to types.Address, authority types.Address) error
	// Burn destroys amount of asset held by from. The supplied authority
	// must match the asset's registered mint authority.
	Burn(asset types.AssetID, amount *big.Int, from types.Address, authority types.Address) error
	// SetMintAuthority reassigns the asset's mint authority.
	SetMintAuthority(asset types.AssetID, newAuthority types.Address) error
	// CreateHoldingAccount ensures the owner has a holding account for the
	// asset and returns its address.
	CreateHoldingAccount(owner types.Address, asset types.AssetID) (types.Address, error)
}
