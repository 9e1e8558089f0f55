package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"nftlend/native/lending"
	"nftlend/native/multisig"
	"nftlend/storage"
)

var errNilRecord = errors.New("state: nil record")

// Key prefixes namespace the record kinds inside the shared key-value store.
const (
	prefixLoanRequest = "lending/request/"
	prefixGrant       = "lending/grant/"
	prefixLoan        = "lending/loan/"
	prefixLoanFee     = "lending/fee/"
	keyUncollected    = "lending/uncollected_fees"
	keyMultisig       = "multisig/root"
	prefixTransaction = "multisig/tx/"
	prefixParams      = "params/"
)

// Manager persists the protocol records as JSON values in a key-value store.
// It implements the narrow state interfaces of the lending engine, the
// multisig engine and the parameter store.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) putJSON(key []byte, v interface{}) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, ok, err := m.db.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func recordKey(prefix string, id [32]byte) []byte {
	return append([]byte(prefix), id[:]...)
}

// --- lending engine state ---

func (m *Manager) LoanRequestGet(id lending.RecordID) (*lending.LoanRequest, bool, error) {
	var req lending.LoanRequest
	ok, err := m.getJSON(recordKey(prefixLoanRequest, id), &req)
	if err != nil || !ok {
		return nil, false, err
	}
	return &req, true, nil
}

func (m *Manager) LoanRequestPut(req *lending.LoanRequest) error {
	if req == nil {
		return errNilRecord
	}
	return m.putJSON(recordKey(prefixLoanRequest, req.ID), req)
}

func (m *Manager) LoanRequestDelete(id lending.RecordID) error {
	return m.db.Delete(recordKey(prefixLoanRequest, id))
}

func (m *Manager) GrantGet(id lending.RecordID) (*lending.GrantLoan, bool, error) {
	var grant lending.GrantLoan
	ok, err := m.getJSON(recordKey(prefixGrant, id), &grant)
	if err != nil || !ok {
		return nil, false, err
	}
	return &grant, true, nil
}

func (m *Manager) GrantPut(grant *lending.GrantLoan) error {
	if grant == nil {
		return errNilRecord
	}
	return m.putJSON(recordKey(prefixGrant, grant.ID), grant)
}

func (m *Manager) LoanGet(id lending.RecordID) (*lending.Loan, bool, error) {
	var loan lending.Loan
	ok, err := m.getJSON(recordKey(prefixLoan, id), &loan)
	if err != nil || !ok {
		return nil, false, err
	}
	return &loan, true, nil
}

func (m *Manager) LoanPut(loan *lending.Loan) error {
	if loan == nil {
		return errNilRecord
	}
	return m.putJSON(recordKey(prefixLoan, loan.ID), loan)
}

func (m *Manager) FeeGet(id lending.RecordID) (*lending.LoanFee, bool, error) {
	var fee lending.LoanFee
	ok, err := m.getJSON(recordKey(prefixLoanFee, id), &fee)
	if err != nil || !ok {
		return nil, false, err
	}
	return &fee, true, nil
}

func (m *Manager) FeePut(fee *lending.LoanFee) error {
	if fee == nil {
		return errNilRecord
	}
	return m.putJSON(recordKey(prefixLoanFee, fee.ID), fee)
}

func (m *Manager) FeeDelete(id lending.RecordID) error {
	return m.db.Delete(recordKey(prefixLoanFee, id))
}

func (m *Manager) UncollectedFees() ([]lending.RecordID, error) {
	var ids []lending.RecordID
	if _, err := m.getJSON([]byte(keyUncollected), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) SetUncollectedFees(ids []lending.RecordID) error {
	if ids == nil {
		ids = []lending.RecordID{}
	}
	return m.putJSON([]byte(keyUncollected), ids)
}

// --- multisig engine state ---

func (m *Manager) MultisigGet() (*multisig.Multisig, bool, error) {
	var ms multisig.Multisig
	ok, err := m.getJSON([]byte(keyMultisig), &ms)
	if err != nil || !ok {
		return nil, false, err
	}
	return &ms, true, nil
}

func (m *Manager) MultisigPut(ms *multisig.Multisig) error {
	if ms == nil {
		return errNilRecord
	}
	return m.putJSON([]byte(keyMultisig), ms)
}

func (m *Manager) TransactionGet(id multisig.TxID) (*multisig.Transaction, bool, error) {
	var tx multisig.Transaction
	ok, err := m.getJSON(recordKey(prefixTransaction, id), &tx)
	if err != nil || !ok {
		return nil, false, err
	}
	return &tx, true, nil
}

func (m *Manager) TransactionPut(tx *multisig.Transaction) error {
	if tx == nil {
		return errNilRecord
	}
	return m.putJSON(recordKey(prefixTransaction, tx.ID), tx)
}

// --- parameter store state ---

func (m *Manager) ParamStoreSet(name string, value []byte) error {
	return m.db.Put([]byte(prefixParams+name), value)
}

func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	return m.db.Get([]byte(prefixParams + name))
}
