package library

// Book is one title in the catalog, keyed by its ISBN (an opaque,
// case-sensitive string; no checksum validation). Available never exceeds
// TotalStock and neither goes negative.
type Book struct {
	ISBN       string `json:"isbn"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Year       int    `json:"year"`
	TotalStock int    `json:"total_stock"`
	Available  int    `json:"available"`
	Price      int64  `json:"price"` // replacement price in currency units, 0 = unknown
	Notes      string `json:"notes"`
}

// Borrower is a registered library member. NIM is the student number, a
// secondary unique key; it is empty for non-student borrowers.
type Borrower struct {
	ID    string `json:"id"`
	NIM   string `json:"nim"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Loan links one book copy to one borrower for a bounded period.
//
// State machine: OPEN (neither flag set) moves to RETURNED (Returned set,
// ReturnDate recorded) or LOST (both flags set, the copy leaves the
// catalog). Both states are terminal; a returned loan cannot later be
// marked lost.
type Loan struct {
	ID         string `json:"loan_id"`
	ISBN       string `json:"isbn"`
	BorrowerID string `json:"borrower_id"`
	BorrowDate Date   `json:"date_borrow"`
	DueDate    Date   `json:"date_due"`
	ReturnDate Date   `json:"date_returned"`
	Returned   bool   `json:"is_returned"`
	Lost       bool   `json:"is_lost"`
	// AmountPaid holds the fine or replacement cost computed on
	// return/loss; RecordPayment may overwrite it with the amount the
	// borrower actually paid.
	AmountPaid int64 `json:"amount_paid"`
}

// Open reports whether the loan is still outstanding.
func (l Loan) Open() bool {
	return !l.Returned && !l.Lost
}

// Settings are the mutable policy scalars, persisted alongside the
// ledgers.
type Settings struct {
	FinePerDay          int64 `json:"fine_per_day"`
	ReplacementCostDays int64 `json:"replacement_cost_days"`
}
