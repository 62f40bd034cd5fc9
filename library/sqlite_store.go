package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the alternate Store backend: the same opaque
// snapshot-in, snapshot-out contract as CSVStore, kept in a single
// SQLite file. Each save replaces the whole snapshot in one transaction,
// which gives the same "old state or new state, never half" guarantee as
// the CSV temp-and-rename.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchemaVersion = 1

// NewSQLiteStore opens (or creates) the SQLite database at dbPath and
// applies schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w: %w", ErrIO, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w: %w", ErrIO, err)
	}
	if err := applySQLiteMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func applySQLiteMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w: %w", ErrIO, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta: %w: %w", ErrIO, err)
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= sqliteSchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w: %w", ErrIO, err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            isbn TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            year INTEGER NOT NULL DEFAULT 0,
            total_stock INTEGER NOT NULL DEFAULT 0,
            available INTEGER NOT NULL DEFAULT 0,
            price INTEGER NOT NULL DEFAULT 0,
            notes TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS borrowers (
            id TEXT PRIMARY KEY,
            nim TEXT NOT NULL DEFAULT '',
            name TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            loan_id TEXT PRIMARY KEY,
            isbn TEXT NOT NULL,
            borrower_id TEXT NOT NULL,
            date_borrow TEXT NOT NULL DEFAULT '',
            date_due TEXT NOT NULL DEFAULT '',
            date_returned TEXT NOT NULL DEFAULT '',
            is_returned INTEGER NOT NULL DEFAULT 0,
            is_lost INTEGER NOT NULL DEFAULT 0,
            amount_paid INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS settings (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            fine_per_day INTEGER NOT NULL,
            replacement_cost_days INTEGER NOT NULL
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, sqliteSchemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w: %w", ErrIO, err)
		}
	}
	return tx.Commit()
}

// Load reads the whole snapshot in rowid (insertion) order.
func (s *SQLiteStore) Load() (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := s.db.Query(`SELECT isbn,title,author,year,total_stock,available,price,notes FROM books ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load books: %w: %w", ErrIO, err)
	}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.Year, &b.TotalStock, &b.Available, &b.Price, &b.Notes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan book: %w: %w", ErrIO, err)
		}
		snap.Books = append(snap.Books, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load books: %w: %w", ErrIO, err)
	}

	rows, err = s.db.Query(`SELECT id,nim,name,phone,email FROM borrowers ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load borrowers: %w: %w", ErrIO, err)
	}
	for rows.Next() {
		var b Borrower
		if err := rows.Scan(&b.ID, &b.NIM, &b.Name, &b.Phone, &b.Email); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan borrower: %w: %w", ErrIO, err)
		}
		snap.Borrowers = append(snap.Borrowers, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load borrowers: %w: %w", ErrIO, err)
	}

	rows, err = s.db.Query(`SELECT loan_id,isbn,borrower_id,date_borrow,date_due,date_returned,is_returned,is_lost,amount_paid FROM loans ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load loans: %w: %w", ErrIO, err)
	}
	for rows.Next() {
		var l Loan
		var borrow, due, returned string
		if err := rows.Scan(&l.ID, &l.ISBN, &l.BorrowerID, &borrow, &due, &returned, &l.Returned, &l.Lost, &l.AmountPaid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan loan: %w: %w", ErrIO, err)
		}
		if l.BorrowDate, err = ParseDate(borrow); err != nil {
			continue
		}
		if l.DueDate, err = ParseDate(due); err != nil {
			continue
		}
		if l.ReturnDate, err = ParseDate(returned); err != nil {
			continue
		}
		snap.Loans = append(snap.Loans, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load loans: %w: %w", ErrIO, err)
	}

	err = s.db.QueryRow(`SELECT fine_per_day, replacement_cost_days FROM settings WHERE id=1`).
		Scan(&snap.Settings.FinePerDay, &snap.Settings.ReplacementCostDays)
	if err == sql.ErrNoRows {
		// No settings row yet; a stored zero rate loads as-is.
		snap.Settings = Settings{
			FinePerDay:          DefaultFinePerDay,
			ReplacementCostDays: DefaultReplacementCostDays,
		}
	} else if err != nil {
		return nil, fmt.Errorf("load settings: %w: %w", ErrIO, err)
	}

	return snap, nil
}

// Save replaces the stored snapshot in one transaction.
func (s *SQLiteStore) Save(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot: %w", ErrInvalidArgument)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w: %w", ErrIO, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"books", "borrowers", "loans"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w: %w", table, ErrIO, err)
		}
	}

	for _, b := range snap.Books {
		if _, err := tx.Exec(`INSERT INTO books(isbn,title,author,year,total_stock,available,price,notes) VALUES(?,?,?,?,?,?,?,?)`,
			b.ISBN, b.Title, b.Author, b.Year, b.TotalStock, b.Available, b.Price, b.Notes); err != nil {
			return fmt.Errorf("insert book: %w: %w", ErrIO, err)
		}
	}
	for _, b := range snap.Borrowers {
		if _, err := tx.Exec(`INSERT INTO borrowers(id,nim,name,phone,email) VALUES(?,?,?,?,?)`,
			b.ID, b.NIM, b.Name, b.Phone, b.Email); err != nil {
			return fmt.Errorf("insert borrower: %w: %w", ErrIO, err)
		}
	}
	for _, l := range snap.Loans {
		if _, err := tx.Exec(`INSERT INTO loans(loan_id,isbn,borrower_id,date_borrow,date_due,date_returned,is_returned,is_lost,amount_paid) VALUES(?,?,?,?,?,?,?,?,?)`,
			l.ID, l.ISBN, l.BorrowerID, l.BorrowDate.String(), l.DueDate.String(), l.ReturnDate.String(), l.Returned, l.Lost, l.AmountPaid); err != nil {
			return fmt.Errorf("insert loan: %w: %w", ErrIO, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO settings(id,fine_per_day,replacement_cost_days) VALUES(1,?,?)
        ON CONFLICT(id) DO UPDATE SET fine_per_day=excluded.fine_per_day, replacement_cost_days=excluded.replacement_cost_days`,
		snap.Settings.FinePerDay, snap.Settings.ReplacementCostDays); err != nil {
		return fmt.Errorf("save settings: %w: %w", ErrIO, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w: %w", ErrIO, err)
	}
	return nil
}
