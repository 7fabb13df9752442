package domain

import "time"

// ItemType classifies a ledger item as money in or money out.
type ItemType string

const (
	ItemTypeIncome  ItemType = "INCOME"
	ItemTypeExpense ItemType = "EXPENSE"
)

// Valid reports whether t is one of the two known item types.
func (t ItemType) Valid() bool {
	return t == ItemTypeIncome || t == ItemTypeExpense
}

// Item is a single dated income or expense entry owned by one user.
// Every read and mutation is constrained by (ID, UserID).
type Item struct {
	ID        int64
	UserID    int64
	Event     string
	Amount    int64
	Type      ItemType
	Date      time.Time
	Memo      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemFilter is the predicate handed to the item repository.
// UserID is always set; a zero Type means no type constraint.
// Start is inclusive and EndExclusive is exclusive; callers that want an
// inclusive calendar end date pass the start of the following day.
type ItemFilter struct {
	UserID       int64
	Type         ItemType
	Start        *time.Time
	EndExclusive *time.Time
}

// Summary aggregates a filtered item list.
type Summary struct {
	TotalIncome  int64
	TotalExpense int64
	Balance      int64
}
