package library

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Snapshot is the full persistent state: the three ledgers in insertion
// order plus the policy scalars.
type Snapshot struct {
	Books     []Book
	Borrowers []Borrower
	Loans     []Loan
	Settings  Settings
}

// Store is the persistence collaborator. Load returns empty collections
// and the default policy settings (not an error) when no data has been
// saved yet; once a settings record exists it is returned verbatim,
// zero rates included. Save durably replaces the previous snapshot.
// Failures surface as ErrIO and are never retried here.
type Store interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
}

// ---------------------------------------------------------------------------
// CSV store
// ---------------------------------------------------------------------------

// CSVStore persists each ledger to its own flat CSV file next to a base
// path: <base>_books.csv, <base>_borrowers.csv, <base>_loans.csv and
// <base>_settings.csv. Each save writes a temp file and renames it over
// the previous one, so a crash mid-save leaves the old snapshot intact.
type CSVStore struct {
	base string
}

// NewCSVStore prepares a store rooted at the base path, creating the
// parent directory when needed.
func NewCSVStore(base string) (*CSVStore, error) {
	if base == "" {
		return nil, fmt.Errorf("empty store path: %w", ErrInvalidArgument)
	}
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w: %w", ErrIO, err)
		}
	}
	return &CSVStore{base: base}, nil
}

func (s *CSVStore) booksPath() string     { return s.base + "_books.csv" }
func (s *CSVStore) borrowersPath() string { return s.base + "_borrowers.csv" }
func (s *CSVStore) loansPath() string     { return s.base + "_loans.csv" }
func (s *CSVStore) settingsPath() string  { return s.base + "_settings.csv" }

// Load reads all four files. Missing ledger files count as empty
// collections; a missing settings file yields the default policy.
func (s *CSVStore) Load() (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := readCSVFile(s.booksPath())
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if len(r) < 8 {
			continue
		}
		snap.Books = append(snap.Books, Book{
			ISBN:       r[0],
			Title:      r[1],
			Author:     r[2],
			Year:       atoiOr(r[3], 0),
			TotalStock: atoiOr(r[4], 0),
			Available:  atoiOr(r[5], 0),
			Price:      atoi64Or(r[6], 0),
			Notes:      r[7],
		})
	}

	rows, err = readCSVFile(s.borrowersPath())
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if len(r) < 5 {
			continue
		}
		snap.Borrowers = append(snap.Borrowers, Borrower{
			ID: r[0], NIM: r[1], Name: r[2], Phone: r[3], Email: r[4],
		})
	}

	rows, err = readCSVFile(s.loansPath())
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if len(r) < 9 {
			continue
		}
		borrow, err := ParseDate(r[3])
		if err != nil {
			continue
		}
		due, err := ParseDate(r[4])
		if err != nil {
			continue
		}
		returned, err := ParseDate(r[5])
		if err != nil {
			continue
		}
		snap.Loans = append(snap.Loans, Loan{
			ID:         r[0],
			ISBN:       r[1],
			BorrowerID: r[2],
			BorrowDate: borrow,
			DueDate:    due,
			ReturnDate: returned,
			Returned:   r[6] == "1",
			Lost:       r[7] == "1",
			AmountPaid: atoi64Or(r[8], 0),
		})
	}

	rows, err = readCSVFile(s.settingsPath())
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) >= 2 {
		snap.Settings.FinePerDay = atoi64Or(rows[0][0], 0)
		snap.Settings.ReplacementCostDays = atoi64Or(rows[0][1], 0)
	} else {
		// No settings record yet. Only here do the defaults apply; a
		// stored zero is a real value (fines disabled) and loads as-is.
		snap.Settings = Settings{
			FinePerDay:          DefaultFinePerDay,
			ReplacementCostDays: DefaultReplacementCostDays,
		}
	}

	return snap, nil
}

// Save writes all four files, each atomically.
func (s *CSVStore) Save(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot: %w", ErrInvalidArgument)
	}

	books := [][]string{{"isbn", "title", "author", "year", "total_stock", "available", "price", "notes"}}
	for _, b := range snap.Books {
		books = append(books, []string{
			b.ISBN, b.Title, b.Author,
			strconv.Itoa(b.Year), strconv.Itoa(b.TotalStock), strconv.Itoa(b.Available),
			strconv.FormatInt(b.Price, 10), b.Notes,
		})
	}
	if err := writeCSVAtomic(s.booksPath(), books); err != nil {
		return err
	}

	borrowers := [][]string{{"id", "nim", "name", "phone", "email"}}
	for _, b := range snap.Borrowers {
		borrowers = append(borrowers, []string{b.ID, b.NIM, b.Name, b.Phone, b.Email})
	}
	if err := writeCSVAtomic(s.borrowersPath(), borrowers); err != nil {
		return err
	}

	loans := [][]string{{"loan_id", "isbn", "borrower_id", "date_borrow", "date_due", "date_returned", "is_returned", "is_lost", "amount_paid"}}
	for _, l := range snap.Loans {
		loans = append(loans, []string{
			l.ID, l.ISBN, l.BorrowerID,
			l.BorrowDate.String(), l.DueDate.String(), l.ReturnDate.String(),
			boolField(l.Returned), boolField(l.Lost),
			strconv.FormatInt(l.AmountPaid, 10),
		})
	}
	if err := writeCSVAtomic(s.loansPath(), loans); err != nil {
		return err
	}

	settings := [][]string{
		{"fine_per_day", "replacement_cost_days"},
		{strconv.FormatInt(snap.Settings.FinePerDay, 10), strconv.FormatInt(snap.Settings.ReplacementCostDays, 10)},
	}
	return writeCSVAtomic(s.settingsPath(), settings)
}

// ---------------------------------------------------------------------------
// CSV helpers
// ---------------------------------------------------------------------------

// readCSVFile returns the data rows of a CSV file, header stripped. A
// missing file yields no rows and no error.
func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w: %w", path, ErrIO, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w: %w", path, ErrIO, err)
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// writeCSVAtomic writes rows to path via a temp file and rename.
func writeCSVAtomic(path string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w: %w", tmp, ErrIO, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w: %w", tmp, ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w: %w", tmp, ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w: %w", tmp, ErrIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w: %w", path, ErrIO, err)
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atoi64Or(s string, def int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}
