// seed_catalog bulk-loads book records from a CSV file into the library
// snapshot. Input format (header required):
//
//	isbn,title,author,year,total_stock,price,notes
//
// Available stock starts equal to total_stock for every seeded title.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"library-ledger/library"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <books.csv>\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	input := os.Args[1]

	dataDir := os.Getenv("LIBRARY_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	store, err := library.NewCSVStore(filepath.Join(dataDir, "library_db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	mgr, err := library.NewLibraryManager(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load library: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", input, err)
		os.Exit(1)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	successCount := 0
	errorCount := 0
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", input, err)
			os.Exit(1)
		}
		if first {
			first = false
			continue
		}
		if len(rec) < 5 {
			fmt.Printf("Skipping short row: %v\n", rec)
			errorCount++
			continue
		}

		b := library.Book{
			ISBN:   strings.TrimSpace(rec[0]),
			Title:  strings.TrimSpace(rec[1]),
			Author: strings.TrimSpace(rec[2]),
		}
		b.Year, _ = strconv.Atoi(rec[3])
		b.TotalStock, _ = strconv.Atoi(rec[4])
		b.Available = b.TotalStock
		if len(rec) > 5 {
			b.Price, _ = strconv.ParseInt(rec[5], 10, 64)
		}
		if len(rec) > 6 {
			b.Notes = rec[6]
		}

		fmt.Printf("Seeding: %s by %s... ", b.Title, b.Author)
		if err := mgr.AddBook(b); err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Println("OK")
		successCount++
	}

	fmt.Printf("\nSeed complete!\n")
	fmt.Printf("Added: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Println("\nCatalog:")
		fmt.Printf("%-20s %-30s %-20s %4s  %s\n", "ISBN", "Title", "Author", "Year", "Avail/Total")
		for _, b := range mgr.GetAllBooks() {
			fmt.Println(library.PrettyBook(b))
		}
	}
}
