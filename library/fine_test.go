package library

import (
	"testing"

	"pgregory.net/rapid"
)

func TestCalculateFineExamples(t *testing.T) {
	due := Date{Year: 2024, Month: 5, Day: 8}
	cases := []struct {
		name string
		ret  Date
		rate int64
		want int64
	}{
		{"on time", due, 1000, 0},
		{"early", due.AddDays(-2), 1000, 0},
		{"three days late", due.AddDays(3), 1000, 3000},
		{"one day late", due.AddDays(1), 500, 500},
		{"zero rate", due.AddDays(10), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateFine(due, tc.ret, tc.rate); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculateFineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		due := Date{
			Year:  rapid.IntRange(2000, 2100).Draw(t, "year"),
			Month: rapid.IntRange(1, 12).Draw(t, "month"),
			Day:   rapid.IntRange(1, 28).Draw(t, "day"),
		}
		lateDays := rapid.IntRange(-400, 400).Draw(t, "lateDays")
		rate := rapid.Int64Range(0, 100000).Draw(t, "rate")

		fine := CalculateFine(due, due.AddDays(lateDays), rate)
		if fine < 0 {
			t.Fatalf("negative fine %d", fine)
		}
		if lateDays <= 0 && fine != 0 {
			t.Fatalf("fine %d for a return %d days before due", fine, -lateDays)
		}
		if lateDays > 0 && fine != int64(lateDays)*rate {
			t.Fatalf("fine %d, want %d * %d", fine, lateDays, rate)
		}

		// One more day late never lowers the fine.
		next := CalculateFine(due, due.AddDays(lateDays+1), rate)
		if next < fine {
			t.Fatalf("fine dropped from %d to %d with an extra late day", fine, next)
		}
	})
}

// TestCirculationStockInvariant drives a random sequence of checkouts,
// returns and losses and checks the stock bookkeeping after every step:
// 0 <= Available <= TotalStock, and Available always equals TotalStock
// minus the open loans against the title.
func TestCirculationStockInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		db := NewDatabase()
		db.SetIDGenerator(&SeqGenerator{})
		const isbn = "inv-1"
		initial := rapid.IntRange(1, 5).Draw(t, "initialStock")
		if err := db.AddBook(Book{ISBN: isbn, Title: "Invariant", TotalStock: initial, Available: initial}); err != nil {
			t.Fatalf("add book: %v", err)
		}
		day := Date{Year: 2024, Month: 1, Day: 1}

		var open []string
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			day = day.AddDays(1)
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				id, err := db.Checkout(isbn, Borrower{ID: "B1", Name: "Prop"}, day, day.AddDays(7))
				if err == nil {
					open = append(open, id)
				}
			case 1:
				if len(open) > 0 {
					if _, err := db.Return(open[0], day); err != nil {
						t.Fatalf("return: %v", err)
					}
					open = open[1:]
				}
			case 2:
				if len(open) > 0 {
					if _, err := db.MarkLost(open[0], day); err != nil {
						t.Fatalf("mark lost: %v", err)
					}
					open = open[1:]
				}
			}

			b, err := db.FindBookByISBN(isbn)
			if err != nil {
				t.Fatalf("find book: %v", err)
			}
			if b.Available < 0 || b.Available > b.TotalStock {
				t.Fatalf("stock out of range: %d/%d", b.Available, b.TotalStock)
			}
			if b.Available != b.TotalStock-len(open) {
				t.Fatalf("available %d, want total %d - open %d", b.Available, b.TotalStock, len(open))
			}
		}
	})
}

// TestClosedLoansStayClosed checks terminality: once a loan leaves the
// open state, every further transition attempt is rejected and the
// stored outcome does not change.
func TestClosedLoansStayClosed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		db := NewDatabase()
		db.SetIDGenerator(&SeqGenerator{})
		if err := db.AddBook(Book{ISBN: "t-1", Title: "Terminal", TotalStock: 1, Available: 1}); err != nil {
			t.Fatalf("add book: %v", err)
		}
		borrow := Date{Year: 2024, Month: 1, Day: 1}
		id, err := db.Checkout("t-1", Borrower{ID: "B1"}, borrow, borrow.AddDays(7))
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}

		closeDay := borrow.AddDays(rapid.IntRange(0, 20).Draw(t, "closeDay"))
		if rapid.Bool().Draw(t, "lose") {
			if _, err := db.MarkLost(id, closeDay); err != nil {
				t.Fatalf("mark lost: %v", err)
			}
		} else {
			if _, err := db.Return(id, closeDay); err != nil {
				t.Fatalf("return: %v", err)
			}
		}
		before, _ := db.FindLoan(id)

		for i := 0; i < rapid.IntRange(1, 5).Draw(t, "attempts"); i++ {
			if _, err := db.Return(id, closeDay.AddDays(i)); err == nil {
				t.Fatal("return of a closed loan succeeded")
			}
			if _, err := db.MarkLost(id, closeDay.AddDays(i)); err == nil {
				t.Fatal("mark lost of a closed loan succeeded")
			}
		}

		after, _ := db.FindLoan(id)
		if before != after {
			t.Fatalf("closed loan changed: %+v -> %+v", before, after)
		}
	})
}
