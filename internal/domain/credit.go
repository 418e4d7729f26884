package domain

import "time"

// SignupBonusCredits is granted when an account is provisioned.
const SignupBonusCredits = 20

// CreditAccount owns a user's prepaid balance. The balance never goes
// negative; every change pairs with exactly one CreditTransaction row.
type CreditAccount struct {
	UserID         string
	Balance        int64
	TotalPurchased int64
	TotalSpent     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TransactionType enumerates ledger entry categories.
type TransactionType string

const (
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeSpend    TransactionType = "spend"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypeBonus    TransactionType = "bonus"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeSpend, TransactionTypeRefund, TransactionTypeBonus:
		return true
	}
	return false
}

// CreditTransaction is an immutable ledger entry. Amount is signed:
// negative for spend, positive for purchase, bonus and refund.
type CreditTransaction struct {
	ID          string
	UserID      string
	Amount      int64
	Type        TransactionType
	Description string
	JobID       string
	CreatedAt   time.Time
}
