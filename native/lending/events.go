package lending

import (
	"math/big"
	"strconv"

	"nftlend/core/types"
)

const (
	// EventTypeLoanRequestMade is emitted when a borrower opens a request.
	EventTypeLoanRequestMade = "lending.request_made"
	// EventTypeLoanRequestCancelled is emitted when a request is withdrawn.
	EventTypeLoanRequestCancelled = "lending.request_cancelled"
	// EventTypeLoanGranted is emitted when a lender funds a request.
	EventTypeLoanGranted = "lending.granted"
)

type lendingEvent struct {
	evt *types.Event
}

func (e lendingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lendingEvent) Event() *types.Event { return e.evt }

// NewRequestMadeEvent returns the canonical event payload for a freshly
// created loan request.
func NewRequestMadeEvent(req *LoanRequest) *types.Event {
	if req == nil {
		return &types.Event{Type: EventTypeLoanRequestMade, Attributes: map[string]string{}}
	}
	return &types.Event{
		Type: EventTypeLoanRequestMade,
		Attributes: map[string]string{
			"request":            req.ID.Hex(),
			"borrower":           req.Borrower.Hex(),
			"collateralWorth":    bigIntString(req.CollateralWorth),
			"collateralAsset":    req.CollateralAsset.Hex(),
			"requestedAmount":    bigIntString(req.RequestedAmount),
			"requestedAsset":     req.RequestedAsset.Hex(),
			"duration":           uintString(req.Duration),
			"borrowerClaimAsset": req.BorrowerClaimAsset.Hex(),
		},
	}
}

// NewRequestCancelledEvent returns the canonical event payload for a cancelled
// loan request.
func NewRequestCancelledEvent(req *LoanRequest) *types.Event {
	attrs := map[string]string{}
	if req != nil {
		attrs["request"] = req.ID.Hex()
		attrs["borrower"] = req.Borrower.Hex()
	}
	return &types.Event{Type: EventTypeLoanRequestCancelled, Attributes: attrs}
}

// NewLoanGrantedEvent returns the canonical event payload emitted when a loan
// is instantiated from a request.
func NewLoanGrantedEvent(loan *Loan, grant *GrantLoan) *types.Event {
	attrs := map[string]string{}
	if loan != nil {
		attrs["loan"] = loan.ID.Hex()
		attrs["borrower"] = loan.Borrower.Hex()
		attrs["lender"] = loan.Lender.Hex()
		attrs["collateralAsset"] = loan.CollateralAsset.Hex()
		attrs["requestedAmount"] = bigIntString(loan.RequestedAmount)
		attrs["requestedAsset"] = loan.RequestedAsset.Hex()
		attrs["duration"] = uintString(loan.Duration)
	}
	if grant != nil {
		attrs["request"] = grant.Request.Hex()
		attrs["lenderClaimAsset"] = grant.LenderClaimAsset.Hex()
	}
	return &types.Event{Type: EventTypeLoanGranted, Attributes: attrs}
}

func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
