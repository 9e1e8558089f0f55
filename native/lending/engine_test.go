package lending

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"nftlend/core/types"
	"nftlend/native/custody"
	"nftlend/native/params"
)

type mockState struct {
	requests    map[RecordID]*LoanRequest
	grants      map[RecordID]*GrantLoan
	loans       map[RecordID]*Loan
	fees        map[RecordID]*LoanFee
	uncollected []RecordID
	params      map[string][]byte
}

func newMockState() *mockState {
	return &mockState{
		requests: make(map[RecordID]*LoanRequest),
		grants:   make(map[RecordID]*GrantLoan),
		loans:    make(map[RecordID]*Loan),
		fees:     make(map[RecordID]*LoanFee),
		params:   make(map[string][]byte),
	}
}

func (m *mockState) LoanRequestGet(id RecordID) (*LoanRequest, bool, error) {
	req, ok := m.requests[id]
	return req.Clone(), ok, nil
}

func (m *mockState) LoanRequestPut(req *LoanRequest) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *mockState) LoanRequestDelete(id RecordID) error {
	delete(m.requests, id)
	return nil
}

func (m *mockState) GrantGet(id RecordID) (*GrantLoan, bool, error) {
	grant, ok := m.grants[id]
	return grant.Clone(), ok, nil
}

func (m *mockState) GrantPut(grant *GrantLoan) error {
	if grant == nil {
		return fmt.Errorf("nil grant")
	}
	m.grants[grant.ID] = grant.Clone()
	return nil
}

func (m *mockState) LoanGet(id RecordID) (*Loan, bool, error) {
	loan, ok := m.loans[id]
	return loan.Clone(), ok, nil
}

func (m *mockState) LoanPut(loan *Loan) error {
	if loan == nil {
		return fmt.Errorf("nil loan")
	}
	m.loans[loan.ID] = loan.Clone()
	return nil
}

func (m *mockState) FeeGet(id RecordID) (*LoanFee, bool, error) {
	fee, ok := m.fees[id]
	return fee.Clone(), ok, nil
}

func (m *mockState) FeePut(fee *LoanFee) error {
	if fee == nil {
		return fmt.Errorf("nil fee")
	}
	m.fees[fee.ID] = fee.Clone()
	return nil
}

func (m *mockState) FeeDelete(id RecordID) error {
	delete(m.fees, id)
	return nil
}

func (m *mockState) UncollectedFees() ([]RecordID, error) {
	return append([]RecordID(nil), m.uncollected...), nil
}

func (m *mockState) SetUncollectedFees(ids []RecordID) error {
	m.uncollected = append([]RecordID(nil), ids...)
	return nil
}

func (m *mockState) ParamStoreSet(name string, value []byte) error {
	m.params[name] = append([]byte(nil), value...)
	return nil
}

func (m *mockState) ParamStoreGet(name string) ([]byte, bool, error) {
	value, ok := m.params[name]
	return value, ok, nil
}

type staticOwners []types.Address

func (s staticOwners) Owners() ([]types.Address, error) {
	return append([]types.Address(nil), s...), nil
}

func testAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, len(addr)))
	return addr
}

func testAsset(fill byte) types.AssetID {
	var asset types.AssetID
	copy(asset[:], bytes.Repeat([]byte{fill}, len(asset)))
	return asset
}

var (
	authority       = testAddress(0xAA)
	vault           = testAddress(0xBB)
	borrower        = testAddress(0x01)
	lender          = testAddress(0x02)
	buyer           = testAddress(0x03)
	ownerA          = testAddress(0xA1)
	ownerB          = testAddress(0xA2)
	collateralAsset = testAsset(0x10)
	borrowerClaim   = testAsset(0x20)
	lenderClaim     = testAsset(0x30)
)

type testEnv struct {
	engine *Engine
	state  *mockState
	ledger *custody.Ledger
	now    uint64
}

func newTestEnv(t *testing.T, platform params.PlatformParams) *testEnv {
	t.Helper()
	state := newMockState()
	store := params.NewStore(state)
	if err := store.SetPlatform(platform); err != nil {
		t.Fatalf("set platform params: %v", err)
	}

	ledger := custody.NewLedger(vault)
	ledger.RegisterAsset(types.NativeAsset, authority)
	ledger.RegisterAsset(collateralAsset, borrower)
	ledger.RegisterAsset(borrowerClaim, borrower)
	ledger.RegisterAsset(lenderClaim, lender)
	ledger.Credit(collateralAsset, borrower, big.NewInt(1))
	ledger.Credit(types.NativeAsset, lender, big.NewInt(100_000))
	ledger.Credit(types.NativeAsset, borrower, big.NewInt(100_000))
	ledger.Credit(types.NativeAsset, buyer, big.NewInt(100_000))

	env := &testEnv{engine: NewEngine(authority), state: state, ledger: ledger, now: 1_000}
	env.engine.SetState(state)
	env.engine.SetCustody(ledger)
	env.engine.SetParams(store)
	env.engine.SetOwnerSource(staticOwners{ownerA, ownerB})
	env.engine.SetNowFunc(func() uint64 { return env.now })
	return env
}

func (env *testEnv) request(t *testing.T, worth, amount int64, duration uint64) *LoanRequest {
	t.Helper()
	req, err := env.engine.RequestLoan(borrower, collateralAsset, types.NativeAsset, borrowerClaim, big.NewInt(worth), big.NewInt(amount), duration)
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}
	return req
}

func (env *testEnv) grant(t *testing.T, requestID RecordID) *Loan {
	t.Helper()
	loan, err := env.engine.Grant(lender, requestID, lenderClaim)
	if err != nil {
		t.Fatalf("grant loan: %v", err)
	}
	return loan
}

func defaultPlatform() params.PlatformParams {
	return params.PlatformParams{FeePercentage: 1_000, InterestRate: 0, LoanToValue: 50_000}
}

func TestRequestLoanMaxBorrow(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())

	_, err := env.engine.RequestLoan(borrower, collateralAsset, types.NativeAsset, borrowerClaim, big.NewInt(10_000), big.NewInt(6_000), 100)
	if !errors.Is(err, errMaxBorrowExceeded) {
		t.Fatalf("expected max borrow exceeded, got %v", err)
	}

	req := env.request(t, 10_000, 4_000, 100)
	if req.Loan != nil {
		t.Fatalf("fresh request must not be linked to a loan")
	}
	// Collateral moved into the vault, claim asset minted to the borrower.
	if got := env.ledger.VaultBalance(collateralAsset); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected collateral in vault, got %s", got)
	}
	if got := env.ledger.Balance(borrowerClaim, borrower); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected borrower claim minted, got %s", got)
	}
}

func TestRequestLoanInterestCountsAgainstCeiling(t *testing.T) {
	platform := defaultPlatform()
	platform.InterestRate = 5_000 // 5%
	env := newTestEnv(t, platform)

	// 5000 * 1.05 = 5250 > 5000 ceiling.
	_, err := env.engine.RequestLoan(borrower, collateralAsset, types.NativeAsset, borrowerClaim, big.NewInt(10_000), big.NewInt(5_000), 100)
	if !errors.Is(err, errMaxBorrowExceeded) {
		t.Fatalf("expected max borrow exceeded, got %v", err)
	}
	// 4000 * 1.05 = 4200 fits.
	env.request(t, 10_000, 4_000, 100)
}

func TestCancelLoanRequest(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)

	if err := env.engine.CancelLoanRequest(lender, req.ID); !errors.Is(err, errNotBorrower) {
		t.Fatalf("expected not borrower, got %v", err)
	}
	if err := env.engine.CancelLoanRequest(borrower, req.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := env.ledger.Balance(collateralAsset, borrower); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected collateral returned, got %s", got)
	}
	if got := env.ledger.Balance(borrowerClaim, borrower); got.Sign() != 0 {
		t.Fatalf("expected borrower claim burnt, got %s", got)
	}
	if err := env.engine.CancelLoanRequest(borrower, req.ID); !errors.Is(err, errRequestNotFound) {
		t.Fatalf("expected request gone, got %v", err)
	}
}

func TestCancelGrantedRequestFails(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)
	env.grant(t, req.ID)

	if err := env.engine.CancelLoanRequest(borrower, req.ID); !errors.Is(err, errUnableToCancel) {
		t.Fatalf("expected unable to cancel, got %v", err)
	}
}

func TestGrantLoan(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)
	loan := env.grant(t, req.ID)

	if loan.Status != StatusStarted {
		t.Fatalf("expected started, got %s", loan.Status)
	}
	if loan.OutstandingDebt.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected debt 1000, got %s", loan.OutstandingDebt)
	}
	if loan.FeePercentage != 1_000 || loan.LoanToValue != 50_000 {
		t.Fatalf("parameter snapshots not taken: %+v", loan)
	}
	if loan.StartTime != env.now || loan.LastUpdatedTime != env.now {
		t.Fatalf("expected grant time %d, got %d/%d", env.now, loan.StartTime, loan.LastUpdatedTime)
	}

	// Second grant against the same request must fail.
	if _, err := env.engine.Grant(lender, req.ID, lenderClaim); !errors.Is(err, errRequestConsumed) {
		t.Fatalf("expected request consumed, got %v", err)
	}

	// The fee record carries the full owner set.
	if loan.Fee == nil {
		t.Fatalf("loan missing fee reference")
	}
	fee, ok := env.state.fees[*loan.Fee]
	if !ok {
		t.Fatalf("fee record not stored")
	}
	if fee.Amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected fee 10, got %s", fee.Amount)
	}
	if len(fee.Claimants) != 2 {
		t.Fatalf("expected 2 claimants, got %d", len(fee.Claimants))
	}
	if len(env.state.uncollected) != 1 || env.state.uncollected[0] != *loan.Fee {
		t.Fatalf("fee not listed as uncollected")
	}
}

func TestGrantZeroFeeRejected(t *testing.T) {
	platform := defaultPlatform()
	platform.FeePercentage = 0
	env := newTestEnv(t, platform)
	req := env.request(t, 10_000, 1_000, 100)

	if _, err := env.engine.Grant(lender, req.ID, lenderClaim); !errors.Is(err, errZeroFee) {
		t.Fatalf("expected zero fee, got %v", err)
	}
}

func TestGrantFeesListFull(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)

	full := make([]RecordID, maxUncollectedFees)
	for i := range full {
		full[i][0] = byte(i)
		full[i][1] = byte(i >> 8)
	}
	if err := env.state.SetUncollectedFees(full); err != nil {
		t.Fatalf("seed fee list: %v", err)
	}
	if _, err := env.engine.Grant(lender, req.ID, lenderClaim); !errors.Is(err, errFeesListFull) {
		t.Fatalf("expected fees list full, got %v", err)
	}
}

func TestBorrowerWithdrawAfterGrant(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)
	loan := env.grant(t, req.ID)

	before := env.ledger.Balance(types.NativeAsset, borrower)
	amount, err := env.engine.BorrowerWithdraw(borrower, loan.ID)
	if err != nil {
		t.Fatalf("borrower withdraw: %v", err)
	}
	// 1% fee on 1000 leaves 990 for the borrower.
	if amount.Cmp(big.NewInt(990)) != 0 {
		t.Fatalf("expected 990, got %s", amount)
	}
	after := env.ledger.Balance(types.NativeAsset, borrower)
	if new(big.Int).Sub(after, before).Cmp(big.NewInt(990)) != 0 {
		t.Fatalf("borrower balance did not increase by 990")
	}

	stored := env.state.loans[loan.ID]
	if stored.Status != StatusTokensWithdrawn {
		t.Fatalf("expected tokens withdrawn, got %s", stored.Status)
	}
	// A second withdrawal is blocked by the status change.
	if _, err := env.engine.BorrowerWithdraw(borrower, loan.ID); !errors.Is(err, errInvalidLoanState) {
		t.Fatalf("expected invalid loan state, got %v", err)
	}
}

func TestRepayLifecycle(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 1_000)
	loan := env.grant(t, req.ID)
	if _, err := env.engine.BorrowerWithdraw(borrower, loan.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	env.now += 10
	updated, err := env.engine.Repay(borrower, loan.ID, big.NewInt(400))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if updated.OutstandingDebt.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected debt 600, got %s", updated.OutstandingDebt)
	}
	if updated.PaidAmount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected paid 400, got %s", updated.PaidAmount)
	}

	// Paying more than the debt only consumes the outstanding balance.
	env.now += 10
	updated, err = env.engine.Repay(borrower, loan.ID, big.NewInt(700))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if updated.OutstandingDebt.Sign() != 0 {
		t.Fatalf("expected zero debt, got %s", updated.OutstandingDebt)
	}
	if updated.PaidAmount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected paid 1000, got %s", updated.PaidAmount)
	}
	if updated.Status != StatusRepaid {
		t.Fatalf("expected repaid, got %s", updated.Status)
	}
	// Collateral returned, borrower claim burnt.
	if got := env.ledger.Balance(collateralAsset, borrower); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected collateral back, got %s", got)
	}
	if got := env.ledger.Balance(borrowerClaim, borrower); got.Sign() != 0 {
		t.Fatalf("expected borrower claim burnt, got %s", got)
	}

	// Lender collects the repaid balance.
	lenderBefore := env.ledger.Balance(types.NativeAsset, lender)
	amount, err := env.engine.LenderWithdraw(lender, loan.ID)
	if err != nil {
		t.Fatalf("lender withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected 1000, got %s", amount)
	}
	lenderAfter := env.ledger.Balance(types.NativeAsset, lender)
	if new(big.Int).Sub(lenderAfter, lenderBefore).Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("lender balance did not increase by 1000")
	}
	if env.state.loans[loan.ID].Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", env.state.loans[loan.ID].Status)
	}
}

func TestRepayAfterDeadlineFails(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)
	loan := env.grant(t, req.ID)
	if _, err := env.engine.BorrowerWithdraw(borrower, loan.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	env.now = loan.StartTime + loan.Duration
	if _, err := env.engine.Repay(borrower, loan.ID, big.NewInt(100)); !errors.Is(err, errLoanEnded) {
		t.Fatalf("expected loan ended, got %v", err)
	}
}

func TestRepayRequiresWithdrawnStatus(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)
	loan := env.grant(t, req.ID)

	if _, err := env.engine.Repay(borrower, loan.ID, big.NewInt(100)); !errors.Is(err, errLoanNotRepayable) {
		t.Fatalf("expected not repayable, got %v", err)
	}
}

func TestRefreshAccruesInterest(t *testing.T) {
	platform := defaultPlatform()
	platform.InterestRate = 10_000 // 10%
	platform.LoanToValue = 95_000
	env := newTestEnv(t, platform)
	req := env.request(t, 10_000, 1_000, 3*ticksPerYear)
	loan := env.grant(t, req.ID)
	if _, err := env.engine.BorrowerWithdraw(borrower, loan.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	env.now += ticksPerYear
	updated, err := env.engine.Refresh(loan.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	// Compounded 10% over a year beats simple interest.
	if updated.OutstandingDebt.Cmp(big.NewInt(1_100)) < 0 {
		t.Fatalf("expected debt >= 1100, got %s", updated.OutstandingDebt)
	}
	if updated.LastUpdatedTime != env.now {
		t.Fatalf("expected last update %d, got %d", env.now, updated.LastUpdatedTime)
	}

	// Refreshing again in the same instant accrues nothing further.
	again, err := env.engine.Refresh(loan.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if again.OutstandingDebt.Cmp(updated.OutstandingDebt) != 0 {
		t.Fatalf("same-instant refresh changed debt: %s vs %s", again.OutstandingDebt, updated.OutstandingDebt)
	}
}

func TestRefreshDefaultsAtDeadline(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)
	loan := env.grant(t, req.ID)
	if _, err := env.engine.BorrowerWithdraw(borrower, loan.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	env.now = loan.StartTime + loan.Duration
	updated, err := env.engine.Refresh(loan.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if updated.Status != StatusDefaulted {
		t.Fatalf("expected defaulted, got %s", updated.Status)
	}
	// A defaulted loan cannot be refreshed again.
	if _, err := env.engine.Refresh(loan.ID); !errors.Is(err, errCantRefreshLoan) {
		t.Fatalf("expected cant refresh, got %v", err)
	}
}

func defaultedLoan(t *testing.T, env *testEnv) *Loan {
	t.Helper()
	req := env.request(t, 10_000, 1_000, 100)
	loan := env.grant(t, req.ID)
	if _, err := env.engine.BorrowerWithdraw(borrower, loan.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	env.now = loan.StartTime + loan.Duration + 1
	updated, err := env.engine.Refresh(loan.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if updated.Status != StatusDefaulted {
		t.Fatalf("expected defaulted, got %s", updated.Status)
	}
	return updated
}

func TestSeizeCollateral(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	loan := defaultedLoan(t, env)

	if err := env.engine.SeizeCollateral(borrower, loan.ID); !errors.Is(err, errNotLender) {
		t.Fatalf("expected not lender, got %v", err)
	}
	if err := env.engine.SeizeCollateral(lender, loan.ID); err != nil {
		t.Fatalf("seize: %v", err)
	}
	if got := env.ledger.Balance(collateralAsset, lender); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected collateral with lender, got %s", got)
	}
	if got := env.ledger.Balance(lenderClaim, lender); got.Sign() != 0 {
		t.Fatalf("expected lender claim burnt, got %s", got)
	}
	if env.state.loans[loan.ID].Status != StatusSeize {
		t.Fatalf("expected seize, got %s", env.state.loans[loan.ID].Status)
	}
	// Seizing twice fails on the status guard.
	if err := env.engine.SeizeCollateral(lender, loan.ID); !errors.Is(err, errInvalidLoanState) {
		t.Fatalf("expected invalid loan state, got %v", err)
	}
}

func TestSellAndBuyCollateral(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	loan := defaultedLoan(t, env)

	if err := env.engine.ListCollateralForSale(lender, loan.ID); err != nil {
		t.Fatalf("list for sale: %v", err)
	}
	if env.state.loans[loan.ID].Status != StatusSell {
		t.Fatalf("expected sell, got %s", env.state.loans[loan.ID].Status)
	}

	price, err := env.engine.BuyCollateral(buyer, loan.ID)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if price.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected price 10000, got %s", price)
	}
	if got := env.ledger.Balance(collateralAsset, buyer); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected collateral with buyer, got %s", got)
	}
	stored := env.state.loans[loan.ID]
	if stored.Status != StatusSold {
		t.Fatalf("expected sold, got %s", stored.Status)
	}
	if stored.AmountSold.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected amount sold 10000, got %s", stored.AmountSold)
	}

	// The lender collects the sale price.
	amount, err := env.engine.LenderWithdraw(lender, loan.ID)
	if err != nil {
		t.Fatalf("lender withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected 10000, got %s", amount)
	}
	if env.state.loans[loan.ID].Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", env.state.loans[loan.ID].Status)
	}
}

func TestDebtNeverNegative(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 1_000)
	loan := env.grant(t, req.ID)
	if _, err := env.engine.BorrowerWithdraw(borrower, loan.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	for _, amount := range []int64{300, 900, 500} {
		env.now++
		updated, err := env.engine.Repay(borrower, loan.ID, big.NewInt(amount))
		if err != nil {
			if errors.Is(err, errLoanNotRepayable) {
				// Loan fully repaid on an earlier iteration.
				break
			}
			t.Fatalf("repay %d: %v", amount, err)
		}
		if updated.OutstandingDebt.Sign() < 0 {
			t.Fatalf("outstanding debt went negative: %s", updated.OutstandingDebt)
		}
	}
}

func TestWithdrawFee(t *testing.T) {
	env := newTestEnv(t, defaultPlatform())
	req := env.request(t, 10_000, 1_000, 100)
	loan := env.grant(t, req.ID)
	feeID := *loan.Fee

	// Outsiders cannot claim.
	if _, err := env.engine.WithdrawFee(buyer, feeID); !errors.Is(err, errNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}

	// First owner takes an even share: floor(10 / 2) = 5.
	share, err := env.engine.WithdrawFee(ownerA, feeID)
	if err != nil {
		t.Fatalf("withdraw fee: %v", err)
	}
	if share.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected share 5, got %s", share)
	}
	if got := env.ledger.Balance(types.NativeAsset, ownerA); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected owner balance 5, got %s", got)
	}
	// Re-claiming fails, the fee is still listed for the other owner.
	if _, err := env.engine.WithdrawFee(ownerA, feeID); !errors.Is(err, errFeeAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}
	if len(env.state.uncollected) != 1 {
		t.Fatalf("fee should remain uncollected for remaining claimant")
	}

	// Final claimant collects and the fee entry is pruned entirely.
	if _, err := env.engine.WithdrawFee(ownerB, feeID); err != nil {
		t.Fatalf("withdraw fee: %v", err)
	}
	if len(env.state.uncollected) != 0 {
		t.Fatalf("fee should be removed from the uncollected list")
	}
	if _, ok := env.state.fees[feeID]; ok {
		t.Fatalf("fee record should be deleted")
	}
	if _, err := env.engine.WithdrawFee(ownerB, feeID); !errors.Is(err, errFeeCollected) {
		t.Fatalf("expected fee collected, got %v", err)
	}
}

func TestEngineRequiresWiring(t *testing.T) {
	engine := NewEngine(authority)
	if _, err := engine.RequestLoan(borrower, collateralAsset, types.NativeAsset, borrowerClaim, big.NewInt(1), big.NewInt(1), 1); !errors.Is(err, errNilState) {
		t.Fatalf("expected nil state, got %v", err)
	}
	engine.SetState(newMockState())
	if _, err := engine.RequestLoan(borrower, collateralAsset, types.NativeAsset, borrowerClaim, big.NewInt(1), big.NewInt(1), 1); !errors.Is(err, errNilCustody) {
		t.Fatalf("expected nil custody, got %v", err)
	}
}
