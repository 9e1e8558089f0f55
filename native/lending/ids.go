package lending

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftlend/core/types"
)

// Record keys are derived from fixed seed strings plus the identifiers that
// anchor each record. Callers must present matching identifiers to address a
// record, which rules out key collisions between record kinds.
const (
	seedLoanRequest = "loan_request"
	seedGrantLoan   = "grant_loan"
	seedLoan        = "loan"
	seedLoanFee     = "loan_fee"
)

// RequestID derives the loan request key from the borrower claim asset.
func RequestID(borrowerClaim types.AssetID) RecordID {
	return RecordID(ethcrypto.Keccak256Hash([]byte(seedLoanRequest), borrowerClaim[:]))
}

// GrantID derives the grant key from the lender claim asset.
func GrantID(lenderClaim types.AssetID) RecordID {
	return RecordID(ethcrypto.Keccak256Hash([]byte(seedGrantLoan), lenderClaim[:]))
}

// LoanID derives the loan key from the request and grant it joins.
func LoanID(request, grant RecordID) RecordID {
	return RecordID(ethcrypto.Keccak256Hash([]byte(seedLoan), request[:], grant[:]))
}

// FeeID derives the fee key from the loan it belongs to.
func FeeID(loan RecordID) RecordID {
	return RecordID(ethcrypto.Keccak256Hash([]byte(seedLoanFee), loan[:]))
}
