package models

import "time"

// Account is a bank account whose outgoing payment orders need signer approval.
type Account struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	BankCode      string    `json:"bankCode" db:"bank_code"`
	IBAN          string    `json:"iban" db:"iban"`
	Currency      string    `json:"currency" db:"currency"`
	MinSignatures int       `json:"minSignatures" db:"min_signatures"`
	Enabled       bool      `json:"enabled" db:"enabled"`
	Version       int       `json:"version" db:"version"` // for optimistic locking
	Signers       []Signer  `json:"signers,omitempty"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// EnabledSigners counts the signers that currently count toward quorum.
func (a *Account) EnabledSigners() int {
	n := 0
	for _, s := range a.Signers {
		if s.Status == SignerEnabled {
			n++
		}
	}
	return n
}

// IsSignerEnabled reports whether the signer with signerID may still decide.
func (a *Account) IsSignerEnabled(signerID string) bool {
	for _, s := range a.Signers {
		if s.ID == signerID {
			return s.Status == SignerEnabled
		}
	}
	return false
}

// SignerByUser returns the signer bound to userID, if any.
func (a *Account) SignerByUser(userID string) (*Signer, bool) {
	for i := range a.Signers {
		if a.Signers[i].UserID == userID {
			return &a.Signers[i], true
		}
	}
	return nil, false
}

// Signer is an identity allowed to approve orders of exactly one account.
type Signer struct {
	ID        string       `json:"id" db:"id"`
	AccountID string       `json:"accountId" db:"account_id"`
	UserID    string       `json:"userId" db:"user_id"`
	Name      string       `json:"name" db:"name"`
	Phone     string       `json:"phone" db:"phone"`
	Status    SignerStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" db:"updated_at"`
}

// AccountGroup is a named set of accounts used to organise the cartable.
type AccountGroup struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	AccountIDs  []string  `json:"accountIds"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
