package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"library-ledger/library"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	defaultDataDir  = "data"
	snapshotBase    = "library_db"
	sqliteFile      = "library.db"
	adminFile       = "library_db_admins.csv"
	defaultLoanDays = 7
	searchLimit     = 50
)

type config struct {
	dataDir string
	backend string // "csv" or "sqlite"
}

func loadConfig() config {
	if err := godotenv.Load(); err != nil {
		// No .env file is fine; environment variables still apply.
		if !os.IsNotExist(err) {
			log.Printf("load .env: %v", err)
		}
	}
	cfg := config{dataDir: defaultDataDir, backend: "csv"}
	if v := os.Getenv("LIBRARY_DATA_DIR"); v != "" {
		cfg.dataDir = v
	}
	if v := os.Getenv("LIBRARY_STORE"); v != "" {
		cfg.backend = strings.ToLower(v)
	}
	return cfg
}

// openStore builds the snapshot store the configuration asks for.
func openStore(cfg config) (library.Store, func(), error) {
	switch cfg.backend {
	case "sqlite":
		s, err := library.NewSQLiteStore(filepath.Join(cfg.dataDir, sqliteFile))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "csv", "":
		s, err := library.NewCSVStore(filepath.Join(cfg.dataDir, snapshotBase))
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.backend)
	}
}

func openManager(cfg config) (*library.LibraryManager, func(), error) {
	store, closer, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := library.NewLibraryManager(store)
	if err != nil {
		closer()
		return nil, nil, err
	}
	applyEnvPolicy(mgr)
	return mgr, closer, nil
}

// applyEnvPolicy lets the environment override the persisted policy
// scalars at startup.
func applyEnvPolicy(mgr *library.LibraryManager) {
	if v := os.Getenv("LIBRARY_FINE_PER_DAY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			if err := mgr.SetFinePerDay(n); err != nil {
				log.Printf("fine per day from env: %v", err)
			}
		}
	}
	if v := os.Getenv("LIBRARY_REPLACEMENT_COST_DAYS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			if err := mgr.SetReplacementCostDays(n); err != nil {
				log.Printf("replacement cost days from env: %v", err)
			}
		}
	}
	if v := os.Getenv("LIBRARY_MAX_BOOK_TYPES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if err := mgr.Database().SetMaxBookTypes(n); err != nil {
				log.Printf("max book types from env: %v", err)
			}
		}
	}
}

func openAdminStore(cfg config) (*library.AdminStore, error) {
	return library.NewAdminStore(filepath.Join(cfg.dataDir, adminFile), library.BcryptHasher{})
}

// readPassword reads a password with terminal echo off.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func main() {
	root := &cobra.Command{
		Use:          "library-ledger",
		Short:        "Flat-file library management: catalog, borrowers, loans and fines",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(loadConfig())
		},
	}

	adminCmd := &cobra.Command{Use: "admin", Short: "Manage admin credentials"}
	adminCmd.AddCommand(
		&cobra.Command{
			Use:   "create <username>",
			Short: "Add a new admin",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openAdminStore(loadConfig())
				if err != nil {
					return err
				}
				password, err := promptNewPassword()
				if err != nil {
					return err
				}
				if err := store.AddAdmin(args[0], password); err != nil {
					return err
				}
				fmt.Printf("Admin %q created.\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset <username>",
			Short: "Reset an admin's password",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openAdminStore(loadConfig())
				if err != nil {
					return err
				}
				password, err := promptNewPassword()
				if err != nil {
					return err
				}
				if err := store.ResetAdmin(args[0], password); err != nil {
					return err
				}
				fmt.Printf("Password for %q reset.\n", args[0])
				return nil
			},
		},
	)

	exportCmd := &cobra.Command{
		Use:   "export <base-path>",
		Short: "Export the snapshot as CSV files at the given base path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closer, err := openManager(loadConfig())
			if err != nil {
				return err
			}
			defer closer()
			dst, err := library.NewCSVStore(args[0])
			if err != nil {
				return err
			}
			if err := mgr.ExportTo(dst); err != nil {
				return err
			}
			fmt.Printf("Exported to %s_*.csv\n", args[0])
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <base-path>",
		Short: "Replace the snapshot with CSV files from the given base path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closer, err := openManager(loadConfig())
			if err != nil {
				return err
			}
			defer closer()
			src, err := library.NewCSVStore(args[0])
			if err != nil {
				return err
			}
			if err := mgr.ImportFrom(src); err != nil {
				return err
			}
			fmt.Printf("Imported %d books, %d borrowers, %d loans.\n",
				len(mgr.GetAllBooks()), len(mgr.GetAllBorrowers()), len(mgr.GetAllLoans()))
			return nil
		},
	}

	root.AddCommand(adminCmd, exportCmd, importCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func promptNewPassword() (string, error) {
	password, err := readPassword("New password: ")
	if err != nil {
		return "", err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

// ---------------------------------------------------------------------------
// Interactive menu
// ---------------------------------------------------------------------------

func runInteractive(cfg config) error {
	mgr, closer, err := openManager(cfg)
	if err != nil {
		return err
	}
	defer closer()

	admins, err := openAdminStore(cfg)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Welcome to the library.")
	for {
		fmt.Println("\n1. Admin")
		fmt.Println("2. Borrower")
		fmt.Println("0. Exit")
		switch promptLine(scanner, "Role: ") {
		case "1":
			if admin, ok := adminLogin(scanner, admins); ok {
				adminMenu(scanner, mgr, admin)
			}
		case "2":
			borrowerMenu(scanner, mgr)
		case "0", "":
			fmt.Println("Goodbye!")
			return nil
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func promptLine(sc *bufio.Scanner, prompt string) string {
	fmt.Print(prompt)
	if !sc.Scan() {
		return ""
	}
	return strings.TrimSpace(sc.Text())
}

func promptInt(sc *bufio.Scanner, prompt string) (int, bool) {
	n, err := strconv.Atoi(promptLine(sc, prompt))
	if err != nil {
		fmt.Println("Not a number.")
		return 0, false
	}
	return n, true
}

func adminLogin(sc *bufio.Scanner, admins *library.AdminStore) (library.Admin, bool) {
	username := promptLine(sc, "Username: ")
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read password: %v\n", err)
		return library.Admin{}, false
	}
	admin, err := admins.VerifyAdmin(username, password)
	if err != nil {
		fmt.Println("Login failed.")
		return library.Admin{}, false
	}
	fmt.Printf("Hello, %s.\n", admin.Username)
	return admin, true
}

func adminMenu(sc *bufio.Scanner, mgr *library.LibraryManager, admin library.Admin) {
	for {
		fmt.Println("\n==== ADMIN MENU ====")
		fmt.Println("1. List books")
		fmt.Println("2. Add book")
		fmt.Println("3. Remove book")
		fmt.Println("4. Adjust stock")
		fmt.Println("5. Set price")
		fmt.Println("6. Search by title")
		fmt.Println("7. Loans by borrower")
		fmt.Println("8. Mark loan lost")
		fmt.Println("9. Sweep overdue loans")
		fmt.Println("10. Policy settings")
		fmt.Println("0. Logout")
		switch promptLine(sc, "Choice: ") {
		case "1":
			handleListBooks(mgr)
		case "2":
			handleAddBook(sc, mgr)
		case "3":
			handleRemoveBook(sc, mgr)
		case "4":
			handleAdjustStock(sc, mgr)
		case "5":
			handleSetPrice(sc, mgr)
		case "6":
			handleSearch(sc, mgr)
		case "7":
			handleLoansByBorrower(sc, mgr)
		case "8":
			handleMarkLost(sc, mgr)
		case "9":
			handleOverdueSweep(sc, mgr)
		case "10":
			handleSettings(sc, mgr)
		case "0":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func borrowerMenu(sc *bufio.Scanner, mgr *library.LibraryManager) {
	nim := promptLine(sc, "Student number (NIM): ")
	if !library.ValidNIM(nim) {
		fmt.Println("Invalid NIM: must be 4-32 alphanumeric characters.")
		return
	}
	borrower, err := mgr.GetOrCreateBorrowerByNIM(nim, true)
	if err != nil {
		reportErr(err)
		return
	}
	if borrower.Name == "" {
		borrower.Name = promptLine(sc, "Your name: ")
		borrower.Phone = promptLine(sc, "Phone: ")
		borrower.Email = promptLine(sc, "Email: ")
		if err := mgr.UpdateBorrower(borrower); err != nil {
			reportErr(err)
			return
		}
	}
	fmt.Printf("Hello, %s.\n", borrower.Name)

	for {
		fmt.Println("\n---- BORROWER MENU ----")
		fmt.Println("1. List books")
		fmt.Println("2. Search by title")
		fmt.Println("3. Borrow a book")
		fmt.Println("4. Return a book")
		fmt.Println("5. My loans")
		fmt.Println("6. Report a lost book")
		fmt.Println("7. Record a payment")
		fmt.Println("0. Logout")
		switch promptLine(sc, "Choice: ") {
		case "1":
			handleListBooks(mgr)
		case "2":
			handleSearch(sc, mgr)
		case "3":
			handleCheckout(sc, mgr, borrower)
		case "4":
			handleReturn(sc, mgr)
		case "5":
			handleMyLoans(mgr, borrower)
		case "6":
			handleMarkLost(sc, mgr)
		case "7":
			handleRecordPayment(sc, mgr)
		case "0":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

// ------------------ Handlers ------------------

func handleListBooks(mgr *library.LibraryManager) {
	books := mgr.GetAllBooks()
	if len(books) == 0 {
		fmt.Println("Catalog is empty.")
		return
	}
	fmt.Printf("%-20s %-30s %-20s %4s  %s\n", "ISBN", "Title", "Author", "Year", "Avail/Total")
	for _, b := range books {
		fmt.Println(library.PrettyBook(b))
	}
}

func handleAddBook(sc *bufio.Scanner, mgr *library.LibraryManager) {
	b := library.Book{
		ISBN:   promptLine(sc, "ISBN: "),
		Title:  promptLine(sc, "Title: "),
		Author: promptLine(sc, "Author: "),
	}
	if year, ok := promptInt(sc, "Year: "); ok {
		b.Year = year
	}
	stock, ok := promptInt(sc, "Copies: ")
	if !ok || stock < 0 {
		fmt.Println("Invalid stock count.")
		return
	}
	b.TotalStock = stock
	b.Available = stock
	b.Notes = promptLine(sc, "Notes (optional): ")
	if err := mgr.AddBook(b); err != nil {
		reportErr(err)
		return
	}
	fmt.Printf("Added %q.\n", b.ISBN)
}

func handleRemoveBook(sc *bufio.Scanner, mgr *library.LibraryManager) {
	isbn := promptLine(sc, "ISBN: ")
	if err := mgr.RemoveBook(isbn); err != nil {
		reportErr(err)
		return
	}
	fmt.Printf("Removed %q.\n", isbn)
}

func handleAdjustStock(sc *bufio.Scanner, mgr *library.LibraryManager) {
	isbn := promptLine(sc, "ISBN: ")
	delta, ok := promptInt(sc, "Delta (+acquire / -discard): ")
	if !ok {
		return
	}
	if err := mgr.AdjustStock(isbn, delta); err != nil {
		reportErr(err)
		return
	}
	b, _ := mgr.GetBook(isbn)
	fmt.Printf("Stock for %q now %d/%d.\n", isbn, b.Available, b.TotalStock)
}

func handleSetPrice(sc *bufio.Scanner, mgr *library.LibraryManager) {
	isbn := promptLine(sc, "ISBN: ")
	price, err := strconv.ParseInt(promptLine(sc, "Price (0 = unknown): "), 10, 64)
	if err != nil {
		fmt.Println("Not a number.")
		return
	}
	if err := mgr.SetBookPrice(isbn, price); err != nil {
		reportErr(err)
		return
	}
	fmt.Println("Price updated.")
}

func handleSearch(sc *bufio.Scanner, mgr *library.LibraryManager) {
	query := promptLine(sc, "Title contains: ")
	books := mgr.SearchBooks(query, searchLimit)
	if len(books) == 0 {
		fmt.Println("No matches.")
		return
	}
	for _, b := range books {
		fmt.Println(library.PrettyBook(b))
	}
}

func handleLoansByBorrower(sc *bufio.Scanner, mgr *library.LibraryManager) {
	query := promptLine(sc, "Borrower id, name or NIM: ")
	loans := mgr.FindLoansByBorrower(query, searchLimit)
	if len(loans) == 0 {
		fmt.Println("No loans found.")
		return
	}
	printLoans(loans)
}

func handleCheckout(sc *bufio.Scanner, mgr *library.LibraryManager, borrower library.Borrower) {
	isbn := promptLine(sc, "ISBN: ")
	days, ok := promptInt(sc, fmt.Sprintf("Loan days (default %d): ", defaultLoanDays))
	if !ok || days <= 0 {
		days = defaultLoanDays
	}
	today := library.Today()
	loanID, err := mgr.Checkout(isbn, borrower, today, today.AddDays(days))
	if err != nil {
		reportErr(err)
		return
	}
	fmt.Printf("Loan %s created, due %s.\n", loanID, today.AddDays(days))
}

func handleReturn(sc *bufio.Scanner, mgr *library.LibraryManager) {
	loanID := promptLine(sc, "Loan ID: ")
	fine, err := mgr.Return(loanID, library.Today())
	if err != nil {
		reportErr(err)
		return
	}
	if fine > 0 {
		fmt.Printf("Returned. Overdue fine: %d\n", fine)
	} else {
		fmt.Println("Returned on time, no fine.")
	}
}

func handleMyLoans(mgr *library.LibraryManager, borrower library.Borrower) {
	loans := mgr.FindLoansByBorrower(borrower.ID, 0)
	if len(loans) == 0 {
		fmt.Println("No loans.")
		return
	}
	printLoans(loans)
}

func handleMarkLost(sc *bufio.Scanner, mgr *library.LibraryManager) {
	loanID := promptLine(sc, "Loan ID: ")
	cost, err := mgr.MarkLost(loanID, library.Today())
	if err != nil {
		reportErr(err)
		return
	}
	fmt.Printf("Marked lost. Replacement cost: %d\n", cost)
}

func handleOverdueSweep(sc *bufio.Scanner, mgr *library.LibraryManager) {
	grace, ok := promptInt(sc, "Grace days past due: ")
	if !ok {
		return
	}
	ids, err := mgr.MarkOverdueLost(library.Today(), grace)
	if err != nil {
		reportErr(err)
		return
	}
	fmt.Printf("Marked %d loan(s) lost.\n", len(ids))
	for _, id := range ids {
		fmt.Println("  " + id)
	}
}

func handleRecordPayment(sc *bufio.Scanner, mgr *library.LibraryManager) {
	loanID := promptLine(sc, "Loan ID: ")
	amount, err := strconv.ParseInt(promptLine(sc, "Amount paid: "), 10, 64)
	if err != nil {
		fmt.Println("Not a number.")
		return
	}
	if err := mgr.RecordPayment(loanID, amount); err != nil {
		reportErr(err)
		return
	}
	fmt.Println("Payment recorded.")
}

func handleSettings(sc *bufio.Scanner, mgr *library.LibraryManager) {
	s := mgr.Settings()
	fmt.Printf("Fine per day: %d, replacement cost days: %d\n", s.FinePerDay, s.ReplacementCostDays)
	if v := promptLine(sc, "New fine per day (blank = keep): "); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fmt.Println("Not a number.")
			return
		}
		if err := mgr.SetFinePerDay(n); err != nil {
			reportErr(err)
			return
		}
	}
	if v := promptLine(sc, "New replacement cost days (blank = keep): "); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fmt.Println("Not a number.")
			return
		}
		if err := mgr.SetReplacementCostDays(n); err != nil {
			reportErr(err)
			return
		}
	}
	fmt.Println("Settings saved.")
}

func printLoans(loans []library.Loan) {
	fmt.Printf("%-34s %-20s %-10s %-10s %-10s %-8s %s\n",
		"Loan", "ISBN", "Borrowed", "Due", "Returned", "Status", "Amount")
	for _, l := range loans {
		status := "open"
		switch {
		case l.Lost:
			status = "lost"
		case l.Returned:
			status = "returned"
		}
		fmt.Printf("%-34s %-20s %-10s %-10s %-10s %-8s %d\n",
			l.ID, l.ISBN, l.BorrowDate, l.DueDate, l.ReturnDate, status, l.AmountPaid)
	}
}

// reportErr prints business failures in user terms; a save failure is
// called out loudly because the mutation is only in memory until the
// next successful save.
func reportErr(err error) {
	if errors.Is(err, library.ErrIO) {
		fmt.Fprintf(os.Stderr, "WARNING: change not saved to disk: %v\n", err)
		return
	}
	fmt.Printf("Error: %v\n", err)
}
