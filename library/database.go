package library

import (
	"fmt"
	"strings"
)

// Catalog ceiling defaults: how many distinct titles the catalog may
// hold. The runtime limit is adjustable up to the hard limit.
const (
	DefaultMaxBookTypes   = 1024
	MaxBookTypesHardLimit = 65536
)

// Policy defaults (currency units).
const (
	DefaultFinePerDay          = 1000
	DefaultReplacementCostDays = 30
)

// PaymentPolicy controls what RecordPayment accepts.
type PaymentPolicy int

const (
	// PaymentAny records whatever amount the caller reports. Default.
	PaymentAny PaymentPolicy = iota
	// PaymentExact rejects amounts that differ from the computed
	// fine/replacement cost.
	PaymentExact
	// PaymentNone rejects RecordPayment entirely.
	PaymentNone
)

// Database is the in-memory core: three ordered ledgers plus the policy
// settings. It is single-threaded by contract: every operation runs to
// completion before the next begins. It never persists itself; the
// caller saves a Snapshot after each mutation.
type Database struct {
	books     []Book
	borrowers []Borrower
	loans     []Loan

	settings     Settings
	maxBookTypes int
	payPolicy    PaymentPolicy

	idgen IDGenerator
}

// NewDatabase returns an empty database with default policy settings and
// a UUID-backed ID generator.
func NewDatabase() *Database {
	return &Database{
		settings: Settings{
			FinePerDay:          DefaultFinePerDay,
			ReplacementCostDays: DefaultReplacementCostDays,
		},
		maxBookTypes: DefaultMaxBookTypes,
		idgen:        UUIDGenerator{},
	}
}

// SetIDGenerator swaps the ID source. Tests use a SeqGenerator for
// deterministic loan and borrower IDs.
func (d *Database) SetIDGenerator(g IDGenerator) {
	if g != nil {
		d.idgen = g
	}
}

// SetPaymentPolicy selects the RecordPayment validation mode.
func (d *Database) SetPaymentPolicy(p PaymentPolicy) { d.payPolicy = p }

// ---------------------------------------------------------------------------
// Snapshot restore/dump
// ---------------------------------------------------------------------------

// Restore replaces the database contents with the snapshot. Settings
// are taken verbatim, so a stored zero rate (fines disabled) stays
// zero; the stores substitute the defaults when no settings record has
// been saved yet. A nil snapshot resets to empty with default settings.
func (d *Database) Restore(snap *Snapshot) {
	d.books = nil
	d.borrowers = nil
	d.loans = nil
	d.settings = Settings{
		FinePerDay:          DefaultFinePerDay,
		ReplacementCostDays: DefaultReplacementCostDays,
	}
	if snap == nil {
		return
	}
	d.books = append(d.books, snap.Books...)
	d.borrowers = append(d.borrowers, snap.Borrowers...)
	d.loans = append(d.loans, snap.Loans...)
	d.settings = snap.Settings
}

// Snapshot copies the current state for persistence.
func (d *Database) Snapshot() *Snapshot {
	snap := &Snapshot{Settings: d.settings}
	snap.Books = append(snap.Books, d.books...)
	snap.Borrowers = append(snap.Borrowers, d.borrowers...)
	snap.Loans = append(snap.Loans, d.loans...)
	return snap
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// Settings returns a copy of the current policy settings.
func (d *Database) Settings() Settings { return d.settings }

// SetFinePerDay updates the per-day overdue fine.
func (d *Database) SetFinePerDay(v int64) error {
	if v < 0 {
		return fmt.Errorf("fine per day %d: %w", v, ErrInvalidArgument)
	}
	d.settings.FinePerDay = v
	return nil
}

// SetReplacementCostDays updates the day multiplier used when a lost
// book's price is unknown.
func (d *Database) SetReplacementCostDays(v int64) error {
	if v < 0 {
		return fmt.Errorf("replacement cost days %d: %w", v, ErrInvalidArgument)
	}
	d.settings.ReplacementCostDays = v
	return nil
}

// SetMaxBookTypes adjusts the catalog's distinct-title ceiling. Zero
// resets to the default; values above the hard limit are rejected.
func (d *Database) SetMaxBookTypes(max int) error {
	if max == 0 {
		d.maxBookTypes = DefaultMaxBookTypes
		return nil
	}
	if max < 0 || max > MaxBookTypesHardLimit {
		return fmt.Errorf("max book types %d: %w", max, ErrInvalidArgument)
	}
	d.maxBookTypes = max
	return nil
}

// MaxBookTypes returns the current ceiling.
func (d *Database) MaxBookTypes() int { return d.maxBookTypes }

// ---------------------------------------------------------------------------
// Inventory ledger
// ---------------------------------------------------------------------------

func (d *Database) bookIndex(isbn string) int {
	for i := range d.books {
		if d.books[i].ISBN == isbn {
			return i
		}
	}
	return -1
}

// AddBook appends a new title. The caller supplies the stock counts and
// is trusted to set Available consistently; only ISBN uniqueness and the
// catalog ceiling are enforced here.
func (d *Database) AddBook(b Book) error {
	if b.ISBN == "" {
		return fmt.Errorf("add book: empty isbn: %w", ErrInvalidArgument)
	}
	if d.bookIndex(b.ISBN) >= 0 {
		return fmt.Errorf("book %q: %w", b.ISBN, ErrAlreadyExists)
	}
	if len(d.books) >= d.maxBookTypes {
		return fmt.Errorf("catalog at %d titles: %w", d.maxBookTypes, ErrCapacityExceeded)
	}
	d.books = append(d.books, b)
	return nil
}

// RemoveBook deletes a title. It is rejected while any loan against the
// ISBN is still open. Remaining entries keep their relative order.
func (d *Database) RemoveBook(isbn string) error {
	i := d.bookIndex(isbn)
	if i < 0 {
		return fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	for j := range d.loans {
		if d.loans[j].ISBN == isbn && !d.loans[j].Returned {
			return fmt.Errorf("book %q has open loan %s: %w", isbn, d.loans[j].ID, ErrInvalidState)
		}
	}
	d.books = append(d.books[:i], d.books[i+1:]...)
	return nil
}

// FindBookByISBN returns a copy of the book with the exact ISBN.
func (d *Database) FindBookByISBN(isbn string) (Book, error) {
	i := d.bookIndex(isbn)
	if i < 0 {
		return Book{}, fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	return d.books[i], nil
}

// SearchBooksByTitle returns books whose title contains the query,
// case-insensitively, in ledger order. limit caps the result count;
// limit <= 0 means no cap.
func (d *Database) SearchBooksByTitle(query string, limit int) []Book {
	q := strings.ToLower(query)
	var out []Book
	for i := range d.books {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(d.books[i].Title), q) {
			out = append(out, d.books[i])
		}
	}
	return out
}

// AdjustStock adds delta copies of a title: both total and available move
// together. This models acquiring or discarding physical copies, not
// borrow/return.
func (d *Database) AdjustStock(isbn string, delta int) error {
	i := d.bookIndex(isbn)
	if i < 0 {
		return fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	b := &d.books[i]
	if b.TotalStock+delta < 0 || b.Available+delta < 0 {
		return fmt.Errorf("book %q stock %d/%d delta %d: %w", isbn, b.Available, b.TotalStock, delta, ErrNoStock)
	}
	b.TotalStock += delta
	b.Available += delta
	return nil
}

// SetBookPrice records the replacement price of a title (0 = unknown).
func (d *Database) SetBookPrice(isbn string, price int64) error {
	if price < 0 {
		return fmt.Errorf("price %d: %w", price, ErrInvalidArgument)
	}
	i := d.bookIndex(isbn)
	if i < 0 {
		return fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	d.books[i].Price = price
	return nil
}

// SetBookNotes replaces a title's free-text notes.
func (d *Database) SetBookNotes(isbn, notes string) error {
	i := d.bookIndex(isbn)
	if i < 0 {
		return fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	d.books[i].Notes = notes
	return nil
}

// Books returns a copy of the catalog in ledger order.
func (d *Database) Books() []Book {
	return append([]Book(nil), d.books...)
}

// ---------------------------------------------------------------------------
// Borrower registry
// ---------------------------------------------------------------------------

func (d *Database) borrowerIndex(id string) int {
	for i := range d.borrowers {
		if d.borrowers[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Database) borrowerIndexByNIM(nim string) int {
	if nim == "" {
		return -1
	}
	for i := range d.borrowers {
		if d.borrowers[i].NIM == nim {
			return i
		}
	}
	return -1
}

// AddBorrower registers a borrower. Both the ID and a non-empty NIM must
// be unused.
func (d *Database) AddBorrower(b Borrower) error {
	if b.ID == "" {
		return fmt.Errorf("add borrower: empty id: %w", ErrInvalidArgument)
	}
	if d.borrowerIndex(b.ID) >= 0 {
		return fmt.Errorf("borrower %q: %w", b.ID, ErrAlreadyExists)
	}
	if d.borrowerIndexByNIM(b.NIM) >= 0 {
		return fmt.Errorf("nim %q: %w", b.NIM, ErrAlreadyExists)
	}
	d.borrowers = append(d.borrowers, b)
	return nil
}

// UpdateBorrower replaces the record with the same ID. A changed NIM must
// not collide with another borrower's.
func (d *Database) UpdateBorrower(b Borrower) error {
	i := d.borrowerIndex(b.ID)
	if i < 0 {
		return fmt.Errorf("borrower %q: %w", b.ID, ErrNotFound)
	}
	if j := d.borrowerIndexByNIM(b.NIM); j >= 0 && j != i {
		return fmt.Errorf("nim %q: %w", b.NIM, ErrAlreadyExists)
	}
	d.borrowers[i] = b
	return nil
}

// FindBorrowerByID returns a copy of the borrower with the exact ID.
func (d *Database) FindBorrowerByID(id string) (Borrower, error) {
	i := d.borrowerIndex(id)
	if i < 0 {
		return Borrower{}, fmt.Errorf("borrower %q: %w", id, ErrNotFound)
	}
	return d.borrowers[i], nil
}

// FindBorrowerByNIM returns a copy of the borrower with the exact student
// number.
func (d *Database) FindBorrowerByNIM(nim string) (Borrower, error) {
	i := d.borrowerIndexByNIM(nim)
	if i < 0 {
		return Borrower{}, fmt.Errorf("nim %q: %w", nim, ErrNotFound)
	}
	return d.borrowers[i], nil
}

// GetOrCreateBorrowerByNIM looks a borrower up by student number. When
// absent and createIfMissing is set, a blank-name record with a fresh ID
// is registered and returned for the caller to complete via
// UpdateBorrower. Calling twice with the same NIM yields the same record.
func (d *Database) GetOrCreateBorrowerByNIM(nim string, createIfMissing bool) (Borrower, error) {
	if nim == "" {
		return Borrower{}, fmt.Errorf("empty nim: %w", ErrInvalidArgument)
	}
	if i := d.borrowerIndexByNIM(nim); i >= 0 {
		return d.borrowers[i], nil
	}
	if !createIfMissing {
		return Borrower{}, fmt.Errorf("nim %q: %w", nim, ErrNotFound)
	}
	b := Borrower{ID: d.idgen.NextID("B"), NIM: nim}
	d.borrowers = append(d.borrowers, b)
	return b, nil
}

// Borrowers returns a copy of the registry in ledger order.
func (d *Database) Borrowers() []Borrower {
	return append([]Borrower(nil), d.borrowers...)
}

// ValidNIM reports whether a student number is well-formed: alphanumeric,
// length 4 to 32.
func ValidNIM(nim string) bool {
	if len(nim) < 4 || len(nim) > 32 {
		return false
	}
	for _, r := range nim {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Loan ledger
// ---------------------------------------------------------------------------

func (d *Database) loanIndex(id string) int {
	for i := range d.loans {
		if d.loans[i].ID == id {
			return i
		}
	}
	return -1
}

// Checkout lends one copy of the title to the borrower and returns the
// new loan ID. If the borrower is not registered yet it is added to the
// registry as a side effect (a transient record without an ID gets one
// generated).
func (d *Database) Checkout(isbn string, borrower Borrower, borrowDate, dueDate Date) (string, error) {
	if isbn == "" {
		return "", fmt.Errorf("checkout: empty isbn: %w", ErrInvalidArgument)
	}
	bi := d.bookIndex(isbn)
	if bi < 0 {
		return "", fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	if d.books[bi].Available <= 0 {
		return "", fmt.Errorf("book %q: %w", isbn, ErrNoStock)
	}
	if borrower.ID == "" {
		borrower.ID = d.idgen.NextID("B")
	}
	if d.borrowerIndex(borrower.ID) < 0 {
		if err := d.AddBorrower(borrower); err != nil {
			return "", err
		}
	}
	loan := Loan{
		ID:         d.idgen.NextID("L"),
		ISBN:       isbn,
		BorrowerID: borrower.ID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
	}
	d.loans = append(d.loans, loan)
	d.books[bi].Available--
	return loan.ID, nil
}

// Return closes an open loan, computes the overdue fine, stores it on the
// loan, and puts the copy back in circulation. Returns the fine.
func (d *Database) Return(loanID string, returnDate Date) (int64, error) {
	li := d.loanIndex(loanID)
	if li < 0 {
		return 0, fmt.Errorf("loan %q: %w", loanID, ErrNotFound)
	}
	loan := &d.loans[li]
	if loan.Returned || loan.Lost {
		return 0, fmt.Errorf("loan %q already closed: %w", loanID, ErrInvalidState)
	}
	loan.Returned = true
	loan.ReturnDate = returnDate
	fine := d.Fine(loan.DueDate, returnDate)
	loan.AmountPaid = fine
	if bi := d.bookIndex(loan.ISBN); bi >= 0 {
		b := &d.books[bi]
		if b.Available < b.TotalStock {
			b.Available++
		}
	}
	return fine, nil
}

// MarkLost declares an open loan's copy lost as of now: the loan closes,
// the copy leaves the catalog permanently, and the replacement cost is
// computed and stored on the loan. A loan that was already returned (or
// lost) cannot be marked lost.
func (d *Database) MarkLost(loanID string, now Date) (int64, error) {
	li := d.loanIndex(loanID)
	if li < 0 {
		return 0, fmt.Errorf("loan %q: %w", loanID, ErrNotFound)
	}
	loan := &d.loans[li]
	if loan.Returned || loan.Lost {
		return 0, fmt.Errorf("loan %q already closed: %w", loanID, ErrInvalidState)
	}
	loan.Returned = true
	loan.ReturnDate = now
	loan.Lost = true
	var cost int64
	if bi := d.bookIndex(loan.ISBN); bi >= 0 {
		b := &d.books[bi]
		cost = d.ReplacementCost(*b)
		// The copy comes off the loan first, then leaves the catalog, so
		// the other copies' availability is untouched.
		if b.Available < b.TotalStock {
			b.Available++
		}
		if b.TotalStock > 0 {
			b.TotalStock--
		}
		if b.Available > 0 {
			b.Available--
		}
		if b.Available > b.TotalStock {
			b.Available = b.TotalStock
		}
	} else {
		cost = d.settings.FinePerDay * d.settings.ReplacementCostDays
	}
	loan.AmountPaid = cost
	return cost, nil
}

// MarkOverdueLost sweeps the open loans and marks lost every one whose
// due date lies more than graceDays behind now. It is an explicit opt-in
// operation; nothing triggers it automatically. Returns the IDs of the
// loans affected.
func (d *Database) MarkOverdueLost(now Date, graceDays int) ([]string, error) {
	if graceDays < 0 {
		return nil, fmt.Errorf("grace days %d: %w", graceDays, ErrInvalidArgument)
	}
	var ids []string
	for i := range d.loans {
		if !d.loans[i].Open() {
			continue
		}
		if DaysBetween(d.loans[i].DueDate, now) > graceDays {
			ids = append(ids, d.loans[i].ID)
		}
	}
	for _, id := range ids {
		if _, err := d.MarkLost(id, now); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// RecordPayment overwrites the loan's recorded amount with what the
// borrower actually paid, subject to the configured PaymentPolicy.
func (d *Database) RecordPayment(loanID string, amount int64) error {
	if d.payPolicy == PaymentNone {
		return fmt.Errorf("payments disabled: %w", ErrInvalidState)
	}
	if amount < 0 {
		return fmt.Errorf("payment %d: %w", amount, ErrInvalidArgument)
	}
	li := d.loanIndex(loanID)
	if li < 0 {
		return fmt.Errorf("loan %q: %w", loanID, ErrNotFound)
	}
	if d.payPolicy == PaymentExact && amount != d.loans[li].AmountPaid {
		return fmt.Errorf("payment %d != due %d: %w", amount, d.loans[li].AmountPaid, ErrInvalidArgument)
	}
	d.loans[li].AmountPaid = amount
	return nil
}

// FindLoan returns a copy of the loan with the exact ID.
func (d *Database) FindLoan(loanID string) (Loan, error) {
	li := d.loanIndex(loanID)
	if li < 0 {
		return Loan{}, fmt.Errorf("loan %q: %w", loanID, ErrNotFound)
	}
	return d.loans[li], nil
}

// FindLoansByBorrower returns loans whose borrower ID matches the query
// exactly, or whose borrower's name or NIM contains it
// case-insensitively. limit caps the result count; limit <= 0 means no
// cap.
func (d *Database) FindLoansByBorrower(query string, limit int) []Loan {
	q := strings.ToLower(query)
	var out []Loan
	for i := range d.loans {
		if limit > 0 && len(out) >= limit {
			break
		}
		loan := d.loans[i]
		if loan.BorrowerID == query {
			out = append(out, loan)
			continue
		}
		bi := d.borrowerIndex(loan.BorrowerID)
		if bi < 0 {
			continue
		}
		br := d.borrowers[bi]
		if strings.Contains(strings.ToLower(br.Name), q) ||
			strings.Contains(strings.ToLower(br.NIM), q) {
			out = append(out, loan)
		}
	}
	return out
}

// Loans returns a copy of the loan ledger in insertion order.
func (d *Database) Loans() []Loan {
	return append([]Loan(nil), d.loans...)
}
