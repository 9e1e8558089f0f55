package lending

import (
	"encoding/hex"
	"math/big"

	"nftlend/core/types"
)

// RecordID addresses one stored lending record. IDs are derived
// deterministically from fixed seed strings plus the identifiers that anchor
// the record, so independent nodes agree on every key.
type RecordID [32]byte

// Hex returns the lowercase hex encoding of the record id.
func (id RecordID) Hex() string { return hex.EncodeToString(id[:]) }

// LoanStatus tracks a loan through its lifecycle. The numeric codes are part
// of the persisted record layout and must not be reordered.
type LoanStatus uint8

const (
	// StatusStarted is the initial stage after a grant.
	StatusStarted LoanStatus = iota
	// StatusTokensWithdrawn marks that the borrower took the loan funds.
	StatusTokensWithdrawn
	// StatusRepaid marks full repayment and collateral return.
	StatusRepaid
	// StatusDefaulted marks a missed payment deadline.
	StatusDefaulted
	// StatusSeize marks that the lender took the collateral.
	StatusSeize
	// StatusCompleted marks that the lender withdrew their proceeds.
	StatusCompleted
	// StatusSell marks the collateral as listed for third-party purchase.
	StatusSell
	// StatusSold marks the collateral as purchased by a third party.
	StatusSold
)

// Valid reports whether the status is one of the defined lifecycle codes.
func (s LoanStatus) Valid() bool { return s <= StatusSold }

func (s LoanStatus) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusTokensWithdrawn:
		return "tokens_withdrawn"
	case StatusRepaid:
		return "repaid"
	case StatusDefaulted:
		return "defaulted"
	case StatusSeize:
		return "seize"
	case StatusCompleted:
		return "completed"
	case StatusSell:
		return "sell"
	case StatusSold:
		return "sold"
	default:
		return "unknown"
	}
}

// LoanRequest records a borrower's open ask. The record survives until it is
// either cancelled or consumed by a grant; once Loan is set the request is
// immutable except through the loan it spawned.
type LoanRequest struct {
	ID                 RecordID      `json:"id"`
	Borrower           types.Address `json:"borrower"`
	CollateralWorth    *big.Int      `json:"collateralWorth"`
	CollateralAsset    types.AssetID `json:"collateralAsset"`
	RequestedAmount    *big.Int      `json:"requestedAmount"`
	RequestedAsset     types.AssetID `json:"requestedAsset"`
	Duration           uint64        `json:"duration"`
	Loan               *RecordID     `json:"loan,omitempty"`
	BorrowerClaimAsset types.AssetID `json:"borrowerClaimAsset"`
}

// Clone returns a deep copy of the request.
func (r *LoanRequest) Clone() *LoanRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.CollateralWorth = cloneBigInt(r.CollateralWorth)
	out.RequestedAmount = cloneBigInt(r.RequestedAmount)
	if r.Loan != nil {
		loan := *r.Loan
		out.Loan = &loan
	}
	return &out
}

// GrantLoan records the lender side of a match. Created exactly once per
// request at grant time.
type GrantLoan struct {
	ID               RecordID      `json:"id"`
	Lender           types.Address `json:"lender"`
	CollateralWorth  *big.Int      `json:"collateralWorth"`
	GrantedAmount    *big.Int      `json:"grantedAmount"`
	RequestedAsset   types.AssetID `json:"requestedAsset"`
	Request          RecordID      `json:"request"`
	Duration         uint64        `json:"duration"`
	Loan             RecordID      `json:"loan"`
	LenderClaimAsset types.AssetID `json:"lenderClaimAsset"`
}

// Clone returns a deep copy of the grant.
func (g *GrantLoan) Clone() *GrantLoan {
	if g == nil {
		return nil
	}
	out := *g
	out.CollateralWorth = cloneBigInt(g.CollateralWorth)
	out.GrantedAmount = cloneBigInt(g.GrantedAmount)
	return &out
}

// Loan is the live state machine record. The fee, interest and loan-to-value
// snapshots are copied from the platform parameters at grant time so later
// governance changes never touch an active loan.
type Loan struct {
	ID                 RecordID      `json:"id"`
	Fee                *RecordID     `json:"fee,omitempty"`
	Borrower           types.Address `json:"borrower"`
	Lender             types.Address `json:"lender"`
	CollateralAsset    types.AssetID `json:"collateralAsset"`
	BorrowerClaimAsset types.AssetID `json:"borrowerClaimAsset"`
	LenderClaimAsset   types.AssetID `json:"lenderClaimAsset"`
	RequestedAsset     types.AssetID `json:"requestedAsset"`
	LoanToValue        uint32        `json:"loanToValue"`
	FeePercentage      uint32        `json:"feePercentage"`
	InterestRate       uint32        `json:"interestRate"`
	CollateralWorth    *big.Int      `json:"collateralWorth"`
	RequestedAmount    *big.Int      `json:"requestedAmount"`
	OutstandingDebt    *big.Int      `json:"outstandingDebt"`
	PaidAmount         *big.Int      `json:"paidAmount"`
	AmountSold         *big.Int      `json:"amountSold"`
	Status             LoanStatus    `json:"status"`
	Duration           uint64        `json:"duration"`
	StartTime          uint64        `json:"startTime"`
	LastUpdatedTime    uint64        `json:"lastUpdatedTime"`
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	out := *l
	if l.Fee != nil {
		fee := *l.Fee
		out.Fee = &fee
	}
	out.CollateralWorth = cloneBigInt(l.CollateralWorth)
	out.RequestedAmount = cloneBigInt(l.RequestedAmount)
	out.OutstandingDebt = cloneBigInt(l.OutstandingDebt)
	out.PaidAmount = cloneBigInt(l.PaidAmount)
	out.AmountSold = cloneBigInt(l.AmountSold)
	return &out
}

// LoanFee books the platform fee owed to the governance owners for one loan.
// Claimants starts as a copy of the owner set at grant time and shrinks as
// individual owners withdraw their share.
type LoanFee struct {
	ID        RecordID        `json:"id"`
	Amount    *big.Int        `json:"amount"`
	Asset     types.AssetID   `json:"asset"`
	Loan      RecordID        `json:"loan"`
	Claimants []types.Address `json:"claimants"`
}

// Clone returns a deep copy of the fee record.
func (f *LoanFee) Clone() *LoanFee {
	if f == nil {
		return nil
	}
	out := *f
	out.Amount = cloneBigInt(f.Amount)
	out.Claimants = append([]types.Address(nil), f.Claimants...)
	return &out
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
