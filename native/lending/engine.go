package lending

import (
	"errors"
	"math/big"
	"time"

	"nftlend/core/events"
	"nftlend/core/types"
	"nftlend/native/custody"
	"nftlend/native/decimal"
	"nftlend/native/params"
)

var (
	errNilState           = errors.New("lending engine: state not configured")
	errNilCustody         = errors.New("lending engine: custody adapter not configured")
	errNilParams          = errors.New("lending engine: parameter store not configured")
	errNilOwners          = errors.New("lending engine: owner source not configured")
	errInvalidAmount      = errors.New("lending engine: amount must be positive")
	errInvalidDuration    = errors.New("lending engine: duration must be positive")
	errMaxBorrowExceeded  = errors.New("lending engine: requested amount exceeds max borrow")
	errRequestExists      = errors.New("lending engine: loan request already exists")
	errRequestNotFound    = errors.New("lending engine: loan request not found")
	errRequestConsumed    = errors.New("lending engine: loan request already granted")
	errLoanNotFound       = errors.New("lending engine: loan not found")
	errFeeNotFound        = errors.New("lending engine: loan fee not found")
	errNotBorrower        = errors.New("lending engine: caller is not the borrower")
	errNotLender          = errors.New("lending engine: caller is not the lender")
	errUnableToCancel     = errors.New("lending engine: request already linked to a loan")
	errZeroFee            = errors.New("lending engine: computed platform fee is zero")
	errFeesListFull       = errors.New("lending engine: uncollected fee list is full")
	errInvalidLoanState   = errors.New("lending engine: invalid loan state")
	errLoanEnded          = errors.New("lending engine: loan duration has elapsed")
	errLoanNotRepayable   = errors.New("lending engine: loan not in repayable state")
	errCantRefreshLoan    = errors.New("lending engine: loan not refreshable")
	errFeeAlreadyClaimed  = errors.New("lending engine: fee share already withdrawn")
	errFeeCollected       = errors.New("lending engine: fee already fully collected")
	errNotOwner           = errors.New("lending engine: caller is not a governance owner")
	errClockWentBackwards = errors.New("lending engine: ledger time before last update")
)

// maxUncollectedFees bounds the global uncollected fee list.
const maxUncollectedFees = 100

type engineState interface {
	LoanRequestGet(id RecordID) (*LoanRequest, bool, error)
	LoanRequestPut(req *LoanRequest) error
	LoanRequestDelete(id RecordID) error
	GrantGet(id RecordID) (*GrantLoan, bool, error)
	GrantPut(grant *GrantLoan) error
	LoanGet(id RecordID) (*Loan, bool, error)
	LoanPut(loan *Loan) error
	FeeGet(id RecordID) (*LoanFee, bool, error)
	FeePut(fee *LoanFee) error
	FeeDelete(id RecordID) error
	UncollectedFees() ([]RecordID, error)
	SetUncollectedFees(ids []RecordID) error
}

// ownerSource exposes the current governance owner set. Fee claimant sets are
// seeded from it at grant time and fee withdrawals are gated on membership.
type ownerSource interface {
	Owners() ([]types.Address, error)
}

// Engine drives the loan lifecycle state machine. All monetary movement goes
// through the custody adapter, which the host treats as part of the same
// atomic unit as the record updates.
type Engine struct {
	state     engineState
	custody   custody.Adapter
	params    *params.Store
	owners    ownerSource
	authority types.Address
	emitter   events.Emitter
	nowFn     func() uint64
}

// NewEngine constructs a lending engine acting under the given protocol
// authority with a no-op emitter. Callers wire the collaborators via the
// setters before use.
func NewEngine(authority types.Address) *Engine {
	return &Engine{
		authority: authority,
		emitter:   events.NoopEmitter{},
		nowFn:     func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetCustody wires the asset custody adapter.
func (e *Engine) SetCustody(adapter custody.Adapter) {
	if e == nil {
		return
	}
	e.custody = adapter
}

// SetParams wires the platform parameter store.
func (e *Engine) SetParams(store *params.Store) {
	if e == nil {
		return
	}
	e.params = store
}

// SetOwnerSource wires the governance owner set provider.
func (e *Engine) SetOwnerSource(src ownerSource) {
	if e == nil {
		return
	}
	e.owners = src
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the ledger time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(lendingEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.custody == nil:
		return errNilCustody
	case e.params == nil:
		return errNilParams
	}
	return nil
}

func one() *big.Int { return big.NewInt(1) }

// RequestLoan escrows the borrower's collateral, mints the borrower claim
// asset and records the open request. The uncompounded interest-inclusive
// amount must fit under the loan-to-value ceiling.
func (e *Engine) RequestLoan(borrower types.Address, collateralAsset, requestedAsset, borrowerClaim types.AssetID, collateralWorth, requestedAmount *big.Int, duration uint64) (*LoanRequest, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if collateralWorth == nil || collateralWorth.Sign() <= 0 || requestedAmount == nil || requestedAmount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if duration == 0 {
		return nil, errInvalidDuration
	}

	platform, err := e.params.Platform()
	if err != nil {
		return nil, err
	}
	repayable := uncompoundedInterest(requestedAmount, platform.InterestRate)
	maxBorrow := maxAmountAllowed(collateralWorth, platform.LoanToValue)
	if repayable.Cmp(maxBorrow) > 0 {
		return nil, errMaxBorrowExceeded
	}

	id := RequestID(borrowerClaim)
	if _, ok, err := e.state.LoanRequestGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, errRequestExists
	}

	if _, err := e.custody.Escrow(collateralAsset, one(), borrower); err != nil {
		return nil, err
	}
	if err := e.custody.SetMintAuthority(borrowerClaim, e.authority); err != nil {
		return nil, err
	}
	if err := e.custody.Mint(borrowerClaim, one(), borrower, e.authority); err != nil {
		return nil, err
	}

	req := &LoanRequest{
		ID:                 id,
		Borrower:           borrower,
		CollateralWorth:    new(big.Int).Set(collateralWorth),
		CollateralAsset:    collateralAsset,
		RequestedAmount:    new(big.Int).Set(requestedAmount),
		RequestedAsset:     requestedAsset,
		Duration:           duration,
		BorrowerClaimAsset: borrowerClaim,
	}
	if err := e.state.LoanRequestPut(req); err != nil {
		return nil, err
	}
	e.emit(NewRequestMadeEvent(req))
	return req.Clone(), nil
}

// CancelLoanRequest burns the borrower claim asset, returns the escrowed
// collateral and removes the request. Only possible while no loan has been
// granted against it.
func (e *Engine) CancelLoanRequest(borrower types.Address, id RecordID) error {
	if err := e.ready(); err != nil {
		return err
	}
	req, ok, err := e.state.LoanRequestGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return errRequestNotFound
	}
	if req.Borrower != borrower {
		return errNotBorrower
	}
	if req.Loan != nil {
		return errUnableToCancel
	}

	if err := e.custody.Burn(req.BorrowerClaimAsset, one(), borrower, e.authority); err != nil {
		return err
	}
	if err := e.custody.Release(req.CollateralAsset, one(), borrower); err != nil {
		return err
	}
	if err := e.state.LoanRequestDelete(id); err != nil {
		return err
	}
	e.emit(NewRequestCancelledEvent(req))
	return nil
}

// Grant matches a lender against an open request. It escrows the full
// requested amount from the lender, books the platform fee against the
// governance owners, mints the lender claim asset and instantiates the loan
// with parameter snapshots taken now.
func (e *Engine) Grant(lender types.Address, requestID RecordID, lenderClaim types.AssetID) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.owners == nil {
		return nil, errNilOwners
	}
	req, ok, err := e.state.LoanRequestGet(requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errRequestNotFound
	}
	if req.Loan != nil {
		return nil, errRequestConsumed
	}

	platform, err := e.params.Platform()
	if err != nil {
		return nil, err
	}
	fee := calculateFees(req.RequestedAmount, platform.FeePercentage).Round()
	if fee.Sign() <= 0 {
		return nil, errZeroFee
	}

	feeIDs, err := e.state.UncollectedFees()
	if err != nil {
		return nil, err
	}
	if len(feeIDs) >= maxUncollectedFees {
		return nil, errFeesListFull
	}
	owners, err := e.owners.Owners()
	if err != nil {
		return nil, err
	}

	if _, err := e.custody.Escrow(req.RequestedAsset, req.RequestedAmount, lender); err != nil {
		return nil, err
	}
	if err := e.custody.SetMintAuthority(lenderClaim, e.authority); err != nil {
		return nil, err
	}
	if err := e.custody.Mint(lenderClaim, one(), lender, e.authority); err != nil {
		return nil, err
	}

	now := e.now()
	grantID := GrantID(lenderClaim)
	loanID := LoanID(req.ID, grantID)
	feeID := FeeID(loanID)

	loan := &Loan{
		ID:                 loanID,
		Fee:                &feeID,
		Borrower:           req.Borrower,
		Lender:             lender,
		CollateralAsset:    req.CollateralAsset,
		BorrowerClaimAsset: req.BorrowerClaimAsset,
		LenderClaimAsset:   lenderClaim,
		RequestedAsset:     req.RequestedAsset,
		LoanToValue:        platform.LoanToValue,
		FeePercentage:      platform.FeePercentage,
		InterestRate:       platform.InterestRate,
		CollateralWorth:    new(big.Int).Set(req.CollateralWorth),
		RequestedAmount:    new(big.Int).Set(req.RequestedAmount),
		OutstandingDebt:    new(big.Int).Set(req.RequestedAmount),
		PaidAmount:         big.NewInt(0),
		AmountSold:         big.NewInt(0),
		Status:             StatusStarted,
		Duration:           req.Duration,
		StartTime:          now,
		LastUpdatedTime:    now,
	}
	grant := &GrantLoan{
		ID:               grantID,
		Lender:           lender,
		CollateralWorth:  new(big.Int).Set(req.CollateralWorth),
		GrantedAmount:    new(big.Int).Set(req.RequestedAmount),
		RequestedAsset:   req.RequestedAsset,
		Request:          req.ID,
		Duration:         req.Duration,
		Loan:             loanID,
		LenderClaimAsset: lenderClaim,
	}
	loanFee := &LoanFee{
		ID:        feeID,
		Amount:    fee,
		Asset:     req.RequestedAsset,
		Loan:      loanID,
		Claimants: append([]types.Address(nil), owners...),
	}
	req.Loan = &loanID

	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	if err := e.state.GrantPut(grant); err != nil {
		return nil, err
	}
	if err := e.state.FeePut(loanFee); err != nil {
		return nil, err
	}
	if err := e.state.LoanRequestPut(req); err != nil {
		return nil, err
	}
	if err := e.state.SetUncollectedFees(append(feeIDs, feeID)); err != nil {
		return nil, err
	}
	e.emit(NewLoanGrantedEvent(loan, grant))
	return loan.Clone(), nil
}

// BorrowerWithdraw pays the borrower the amount owed for the loan's current
// status: the granted principal minus fee while the loan has just started, or
// the repaid balance after a terminal settlement on the lender side.
func (e *Engine) BorrowerWithdraw(borrower types.Address, loanID RecordID) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	if loan.Borrower != borrower {
		return nil, errNotBorrower
	}

	var amount *big.Int
	switch loan.Status {
	case StatusStarted:
		fee := calculateFees(loan.RequestedAmount, loan.FeePercentage).Round()
		amount = new(big.Int).Sub(loan.RequestedAmount, fee)
	case StatusSeize, StatusSold, StatusCompleted:
		amount = new(big.Int).Set(loan.PaidAmount)
	default:
		return nil, errInvalidLoanState
	}

	if amount.Sign() > 0 {
		if err := e.custody.Release(loan.RequestedAsset, amount, borrower); err != nil {
			return nil, err
		}
	}
	loan.Status = StatusTokensWithdrawn
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	return amount, nil
}

// Repay accrues interest since the last update, then applies up to amount
// against the outstanding debt. Full repayment burns the borrower claim
// asset, returns the collateral and closes the loan as repaid.
func (e *Engine) Repay(borrower types.Address, loanID RecordID, amount *big.Int) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	if loan.Borrower != borrower {
		return nil, errNotBorrower
	}
	if loan.Status != StatusTokensWithdrawn {
		return nil, errLoanNotRepayable
	}

	now := e.now()
	if now >= loan.StartTime+loan.Duration {
		return nil, errLoanEnded
	}
	if err := e.accrue(loan, now); err != nil {
		return nil, err
	}

	pay := new(big.Int).Set(amount)
	if loan.OutstandingDebt.Cmp(pay) < 0 {
		pay.Set(loan.OutstandingDebt)
	}
	if pay.Sign() > 0 {
		if _, err := e.custody.Escrow(loan.RequestedAsset, pay, borrower); err != nil {
			return nil, err
		}
	}
	loan.OutstandingDebt = new(big.Int).Sub(loan.OutstandingDebt, pay)
	loan.PaidAmount = new(big.Int).Add(loan.PaidAmount, pay)
	loan.LastUpdatedTime = now

	if loan.OutstandingDebt.Sign() == 0 {
		if err := e.custody.Burn(loan.BorrowerClaimAsset, one(), borrower, e.authority); err != nil {
			return nil, err
		}
		if err := e.custody.Release(loan.CollateralAsset, one(), borrower); err != nil {
			return nil, err
		}
		loan.Status = StatusRepaid
	}
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// Refresh accrues interest on a live loan and flips it to defaulted once the
// duration has elapsed. Callable by anyone; bots invoke it periodically so
// debt tracks elapsed time even when the borrower stays silent.
func (e *Engine) Refresh(loanID RecordID) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	if loan.Status != StatusTokensWithdrawn {
		return nil, errCantRefreshLoan
	}

	now := e.now()
	if err := e.accrue(loan, now); err != nil {
		return nil, err
	}
	if now >= loan.StartTime+loan.Duration {
		loan.Status = StatusDefaulted
	}
	loan.LastUpdatedTime = now
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// accrue recomputes interest from the original principal over the ticks since
// the last update and adds the rounded delta to the outstanding debt. The
// principal base is a deliberate approximation of compounding on accrued
// debt; the refresh actor keeps the drift bounded.
func (e *Engine) accrue(loan *Loan, now uint64) error {
	if now < loan.LastUpdatedTime {
		return errClockWentBackwards
	}
	elapsed := now - loan.LastUpdatedTime
	if elapsed == 0 {
		return nil
	}
	compounded, err := compoundInterest(loan.RequestedAmount, loan.InterestRate, elapsed)
	if err != nil {
		return err
	}
	newInterest, err := compounded.Sub(decimal.FromBig(loan.RequestedAmount))
	if err != nil {
		return err
	}
	loan.OutstandingDebt = new(big.Int).Add(loan.OutstandingDebt, newInterest.Round())
	return nil
}

// SeizeCollateral hands the defaulted loan's collateral to the lender and
// burns the lender claim asset.
func (e *Engine) SeizeCollateral(lender types.Address, loanID RecordID) error {
	if err := e.ready(); err != nil {
		return err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return err
	}
	if !ok {
		return errLoanNotFound
	}
	if loan.Lender != lender {
		return errNotLender
	}
	if loan.Status != StatusDefaulted {
		return errInvalidLoanState
	}

	if err := e.custody.Release(loan.CollateralAsset, one(), lender); err != nil {
		return err
	}
	if err := e.custody.Burn(loan.LenderClaimAsset, one(), lender, e.authority); err != nil {
		return err
	}
	loan.Status = StatusSeize
	return e.state.LoanPut(loan)
}

// ListCollateralForSale opens a defaulted loan's collateral to third-party
// purchase instead of seizing it.
func (e *Engine) ListCollateralForSale(lender types.Address, loanID RecordID) error {
	if err := e.ready(); err != nil {
		return err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return err
	}
	if !ok {
		return errLoanNotFound
	}
	if loan.Lender != lender {
		return errNotLender
	}
	if loan.Status != StatusDefaulted {
		return errInvalidLoanState
	}
	loan.Status = StatusSell
	return e.state.LoanPut(loan)
}

// BuyCollateral lets any buyer purchase listed collateral at its recorded
// worth. The payment lands in the loan escrow for the lender to withdraw.
func (e *Engine) BuyCollateral(buyer types.Address, loanID RecordID) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	if loan.Status != StatusSell {
		return nil, errInvalidLoanState
	}

	price := new(big.Int).Set(loan.CollateralWorth)
	if _, err := e.custody.Escrow(loan.RequestedAsset, price, buyer); err != nil {
		return nil, err
	}
	if err := e.custody.Release(loan.CollateralAsset, one(), buyer); err != nil {
		return nil, err
	}
	loan.AmountSold = new(big.Int).Set(price)
	loan.Status = StatusSold
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	return price, nil
}

// LenderWithdraw pays the lender their proceeds once the loan settled: the
// repaid balance after full repayment, or the sale price after a third-party
// purchase. The lender claim asset is burnt and the loan closes as completed.
func (e *Engine) LenderWithdraw(lender types.Address, loanID RecordID) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, ok, err := e.state.LoanGet(loanID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	if loan.Lender != lender {
		return nil, errNotLender
	}

	var amount *big.Int
	switch loan.Status {
	case StatusRepaid:
		amount = new(big.Int).Set(loan.PaidAmount)
	case StatusSold:
		amount = new(big.Int).Set(loan.CollateralWorth)
	default:
		return nil, errInvalidLoanState
	}

	if amount.Sign() > 0 {
		if err := e.custody.Release(loan.RequestedAsset, amount, lender); err != nil {
			return nil, err
		}
	}
	if err := e.custody.Burn(loan.LenderClaimAsset, one(), lender, e.authority); err != nil {
		return nil, err
	}
	loan.Status = StatusCompleted
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	return amount, nil
}

// WithdrawFee pays the claimant their even share of a booked platform fee.
// The share is amount divided by the current owner count, floored, so the
// payouts can never exceed the booked amount. When the last claimant
// collects, the fee leaves the global uncollected list and the record is
// removed.
func (e *Engine) WithdrawFee(claimant types.Address, feeID RecordID) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.owners == nil {
		return nil, errNilOwners
	}
	feeIDs, err := e.state.UncollectedFees()
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, id := range feeIDs {
		if id == feeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errFeeCollected
	}

	fee, ok, err := e.state.FeeGet(feeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errFeeNotFound
	}

	owners, err := e.owners.Owners()
	if err != nil {
		return nil, err
	}
	if !containsAddress(owners, claimant) {
		return nil, errNotOwner
	}
	claimIdx := -1
	for i, addr := range fee.Claimants {
		if addr == claimant {
			claimIdx = i
			break
		}
	}
	if claimIdx < 0 {
		return nil, errFeeAlreadyClaimed
	}

	share, err := decimal.FromBig(fee.Amount).DivUint(uint64(len(owners)))
	if err != nil {
		return nil, err
	}
	payout := share.Floor()
	if payout.Sign() > 0 {
		if err := e.custody.Release(fee.Asset, payout, claimant); err != nil {
			return nil, err
		}
	}

	if len(fee.Claimants) == 1 {
		feeIDs = append(feeIDs[:idx], feeIDs[idx+1:]...)
		if err := e.state.SetUncollectedFees(feeIDs); err != nil {
			return nil, err
		}
		if err := e.state.FeeDelete(feeID); err != nil {
			return nil, err
		}
	} else {
		fee.Claimants = append(fee.Claimants[:claimIdx], fee.Claimants[claimIdx+1:]...)
		if err := e.state.FeePut(fee); err != nil {
			return nil, err
		}
	}
	return payout, nil
}

// Loan returns a copy of the stored loan record.
func (e *Engine) Loan(id RecordID) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, ok, err := e.state.LoanGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	return loan.Clone(), nil
}

// Request returns a copy of the stored loan request record.
func (e *Engine) Request(id RecordID) (*LoanRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	req, ok, err := e.state.LoanRequestGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errRequestNotFound
	}
	return req.Clone(), nil
}

// FeeRecord returns a copy of the stored fee record.
func (e *Engine) FeeRecord(id RecordID) (*LoanFee, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	fee, ok, err := e.state.FeeGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errFeeNotFound
	}
	return fee.Clone(), nil
}

func containsAddress(list []types.Address, addr types.Address) bool {
	for _, item := range list {
		if item == addr {
			return true
		}
	}
	return false
}
