package library

import "fmt"

// LibraryManager is a thin façade over the in-memory Database and a
// Store, keeping CLI code simple. The core never persists itself, so the
// manager saves a snapshot after every mutating call. When the mutation
// succeeded but the save failed, the in-memory change stands and the
// ErrIO is returned alongside any result; callers should warn the user
// that the change is not on disk yet.
type LibraryManager struct {
	db    *Database
	store Store
}

// NewLibraryManager loads the stored snapshot into a fresh database.
func NewLibraryManager(store Store) (*LibraryManager, error) {
	if store == nil {
		return nil, fmt.Errorf("nil store: %w", ErrInvalidArgument)
	}
	snap, err := store.Load()
	if err != nil {
		return nil, err
	}
	db := NewDatabase()
	db.Restore(snap)
	return &LibraryManager{db: db, store: store}, nil
}

// Database exposes the core for read-only queries and test setup.
func (lm *LibraryManager) Database() *Database { return lm.db }

func (lm *LibraryManager) persist() error {
	return lm.store.Save(lm.db.Snapshot())
}

// ------------------ Book helpers ------------------

func (lm *LibraryManager) AddBook(b Book) error {
	if err := lm.db.AddBook(b); err != nil {
		return err
	}
	return lm.persist()
}

func (lm *LibraryManager) RemoveBook(isbn string) error {
	if err := lm.db.RemoveBook(isbn); err != nil {
		return err
	}
	return lm.persist()
}

func (lm *LibraryManager) AdjustStock(isbn string, delta int) error {
	if err := lm.db.AdjustStock(isbn, delta); err != nil {
		return err
	}
	return lm.persist()
}

func (lm *LibraryManager) SetBookPrice(isbn string, price int64) error {
	if err := lm.db.SetBookPrice(isbn, price); err != nil {
		return err
	}
	return lm.persist()
}

func (lm *LibraryManager) SetBookNotes(isbn, notes string) error {
	if err := lm.db.SetBookNotes(isbn, notes); err != nil {
		return err
	}
	return lm.persist()
}

func (lm *LibraryManager) GetBook(isbn string) (Book, error) { return lm.db.FindBookByISBN(isbn) }
func (lm *LibraryManager) GetAllBooks() []Book               { return lm.db.Books() }

func (lm *LibraryManager) SearchBooks(query string, limit int) []Book {
	return lm.db.SearchBooksByTitle(query, limit)
}

// ------------------ Borrower helpers ------------------

func (lm *LibraryManager) AddBorrower(b Borrower) error {
	if err := lm.db.AddBorrower(b); err != nil {
		return err
	}
	return lm.persist()
}

func (lm *LibraryManager) UpdateBorrower(b Borrower) error {
	if err := lm.db.UpdateBorrower(b); err != nil {
		return err
	}
	return lm.persist()
}

// GetOrCreateBorrowerByNIM resolves a borrower by student number,
// registering a blank record when asked to. Creation is persisted.
func (lm *LibraryManager) GetOrCreateBorrowerByNIM(nim string, createIfMissing bool) (Borrower, error) {
	before := len(lm.db.borrowers)
	b, err := lm.db.GetOrCreateBorrowerByNIM(nim, createIfMissing)
	if err != nil {
		return Borrower{}, err
	}
	if len(lm.db.borrowers) != before {
		return b, lm.persist()
	}
	return b, nil
}

func (lm *LibraryManager) GetBorrower(id string) (Borrower, error) {
	return lm.db.FindBorrowerByID(id)
}

func (lm *LibraryManager) GetBorrowerByNIM(nim string) (Borrower, error) {
	return lm.db.FindBorrowerByNIM(nim)
}

func (lm *LibraryManager) GetAllBorrowers() []Borrower { return lm.db.Borrowers() }

// ------------------ Circulation ------------------

// Checkout lends a copy and yields the new loan ID. Note the documented
// side effect: an unregistered borrower is added to the registry.
func (lm *LibraryManager) Checkout(isbn string, borrower Borrower, borrowDate, dueDate Date) (string, error) {
	id, err := lm.db.Checkout(isbn, borrower, borrowDate, dueDate)
	if err != nil {
		return "", err
	}
	return id, lm.persist()
}

// Return closes a loan and yields the fine owed.
func (lm *LibraryManager) Return(loanID string, returnDate Date) (int64, error) {
	fine, err := lm.db.Return(loanID, returnDate)
	if err != nil {
		return 0, err
	}
	return fine, lm.persist()
}

// MarkLost closes a loan as lost and yields the replacement cost.
func (lm *LibraryManager) MarkLost(loanID string, now Date) (int64, error) {
	cost, err := lm.db.MarkLost(loanID, now)
	if err != nil {
		return 0, err
	}
	return cost, lm.persist()
}

// MarkOverdueLost runs the opt-in overdue sweep and yields the affected
// loan IDs.
func (lm *LibraryManager) MarkOverdueLost(now Date, graceDays int) ([]string, error) {
	ids, err := lm.db.MarkOverdueLost(now, graceDays)
	if err != nil {
		return ids, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	return ids, lm.persist()
}

func (lm *LibraryManager) RecordPayment(loanID string, amount int64) error {
	if err := lm.db.RecordPayment(loanID, amount); err != nil {
		return err
	}
	return lm.persist()
}

func (lm *LibraryManager) GetLoan(loanID string) (Loan, error) { return lm.db.FindLoan(loanID) }
func (lm *LibraryManager) GetAllLoans() []Loan                 { return lm.db.Loans() }

func (lm *LibraryManager) FindLoansByBorrower(query string, limit int) []Loan {
	return lm.db.FindLoansByBorrower(query, limit)
}

// ------------------ Policy ------------------

func (lm *LibraryManager) Settings() Settings { return lm.db.Settings() }

func (lm *LibraryManager) SetFinePerDay(v int64) error {
	if err := lm.db.SetFinePerDay(v); err != nil {
		return err
	}
	return lm.persist()
}

func (lm *LibraryManager) SetReplacementCostDays(v int64) error {
	if err := lm.db.SetReplacementCostDays(v); err != nil {
		return err
	}
	return lm.persist()
}

// ------------------ Import / export ------------------

// ExportTo writes the current snapshot through another store, e.g. a
// CSVStore pointed at an export path.
func (lm *LibraryManager) ExportTo(dst Store) error {
	if dst == nil {
		return fmt.Errorf("nil store: %w", ErrInvalidArgument)
	}
	return dst.Save(lm.db.Snapshot())
}

// ImportFrom replaces the in-memory state with another store's snapshot
// and persists it to the manager's own store.
func (lm *LibraryManager) ImportFrom(src Store) error {
	if src == nil {
		return fmt.Errorf("nil store: %w", ErrInvalidArgument)
	}
	snap, err := src.Load()
	if err != nil {
		return err
	}
	lm.db.Restore(snap)
	return lm.persist()
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for list output.
func PrettyBook(b Book) string {
	return fmt.Sprintf("%-20s %-30s %-20s %4d  %d/%d", b.ISBN, b.Title, b.Author, b.Year, b.Available, b.TotalStock)
}
