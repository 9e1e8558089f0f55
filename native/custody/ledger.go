package custody

import (
	"math/big"
	"sync"

	"nftlend/core/types"
)

// Ledger is a deterministic in-process implementation of the Adapter
// interface. It mirrors the behaviour of the host custody service closely
// enough for the daemon and the engine tests: per-asset balances, a single
// protocol vault, and registered mint authorities.
type Ledger struct {
	mu          sync.Mutex
	vault       types.Address
	balances    map[types.AssetID]map[types.Address]*big.Int
	authorities map[types.AssetID]types.Address
}

// NewLedger constructs an empty ledger whose escrow vault lives at the given
// address.
func NewLedger(vault types.Address) *Ledger {
	return &Ledger{
		vault:       vault,
		balances:    make(map[types.AssetID]map[types.Address]*big.Int),
		authorities: make(map[types.AssetID]types.Address),
	}
}

// RegisterAsset records a new asset and its initial mint authority. The
// native asset is implicitly registered.
func (l *Ledger) RegisterAsset(asset types.AssetID, authority types.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authorities[asset] = authority
	if _, ok := l.balances[asset]; !ok {
		l.balances[asset] = make(map[types.Address]*big.Int)
	}
}

// Credit seeds a holding account balance. Intended for genesis bootstrap and
// tests; it bypasses mint-authority checks.
func (l *Ledger) Credit(asset types.AssetID, addr types.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, addr, amount)
}

// Balance reports the holding account balance for the asset.
func (l *Ledger) Balance(asset types.AssetID, addr types.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	holdings, ok := l.balances[asset]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := holdings[addr]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// VaultBalance reports the escrow vault balance for the asset.
func (l *Ledger) VaultBalance(asset types.AssetID) *big.Int {
	return l.Balance(asset, l.vault)
}

// Escrow implements the Adapter interface.
func (l *Ledger) Escrow(asset types.AssetID, amount *big.Int, payer types.Address) (*Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(asset, payer, amount); err != nil {
		return nil, err
	}
	l.credit(asset, l.vault, amount)
	return &Receipt{Asset: asset, Amount: new(big.Int).Set(amount), Vault: l.vault}, nil
}

// Release implements the Adapter interface.
func (l *Ledger) Release(asset types.AssetID, amount *big.Int, to types.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(asset, l.vault, amount); err != nil {
		return err
	}
	l.credit(asset, to, amount)
	return nil
}

// Mint implements the Adapter interface.
func (l *Ledger) Mint(asset types.AssetID, amount *big.Int, to types.Address, authority types.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.authorities[asset]
	if !ok {
		return ErrUnknownAsset
	}
	if current != authority {
		return ErrNotMintAuthority
	}
	l.credit(asset, to, amount)
	return nil
}

// Burn implements the Adapter interface.
func (l *Ledger) Burn(asset types.AssetID, amount *big.Int, from types.Address, authority types.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.authorities[asset]
	if !ok {
		return ErrUnknownAsset
	}
	if current != authority {
		return ErrNotMintAuthority
	}
	return l.debit(asset, from, amount)
}

// SetMintAuthority implements the Adapter interface.
func (l *Ledger) SetMintAuthority(asset types.AssetID, newAuthority types.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.authorities[asset]; !ok {
		return ErrUnknownAsset
	}
	l.authorities[asset] = newAuthority
	return nil
}

// CreateHoldingAccount implements the Adapter interface. Holding accounts are
// implicit in the balance ledger, so this only ensures the slot exists.
func (l *Ledger) CreateHoldingAccount(owner types.Address, asset types.AssetID) (types.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holdings, ok := l.balances[asset]
	if !ok {
		holdings = make(map[types.Address]*big.Int)
		l.balances[asset] = holdings
	}
	if _, ok := holdings[owner]; !ok {
		holdings[owner] = big.NewInt(0)
	}
	return owner, nil
}

// MintAuthority reports the registered authority for the asset.
func (l *Ledger) MintAuthority(asset types.AssetID) (types.Address, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	authority, ok := l.authorities[asset]
	return authority, ok
}

func (l *Ledger) credit(asset types.AssetID, addr types.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	holdings, ok := l.balances[asset]
	if !ok {
		holdings = make(map[types.Address]*big.Int)
		l.balances[asset] = holdings
	}
	current, ok := holdings[addr]
	if !ok {
		current = big.NewInt(0)
	}
	holdings[addr] = new(big.Int).Add(current, amount)
}

func (l *Ledger) debit(asset types.AssetID, addr types.Address, amount *big.Int) error {
	holdings, ok := l.balances[asset]
	if !ok {
		return ErrInsufficientBalance
	}
	current, ok := holdings[addr]
	if !ok || current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	holdings[addr] = new(big.Int).Sub(current, amount)
	return nil
}
