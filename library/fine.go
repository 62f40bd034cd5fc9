package library

// CalculateFine is the overdue fine policy: zero when the return is on
// time or early, otherwise days late times the per-day rate.
func CalculateFine(dueDate, returnDate Date, finePerDay int64) int64 {
	late := DaysBetween(dueDate, returnDate)
	if late <= 0 {
		return 0
	}
	return int64(late) * finePerDay
}

// Fine applies the database's configured per-day rate.
func (d *Database) Fine(dueDate, returnDate Date) int64 {
	return CalculateFine(dueDate, returnDate, d.settings.FinePerDay)
}

// ReplacementCost is what a borrower owes for a lost copy: the book's
// price when known, otherwise the day-based fallback
// finePerDay * replacementCostDays.
func (d *Database) ReplacementCost(b Book) int64 {
	if b.Price > 0 {
		return b.Price
	}
	return d.settings.FinePerDay * d.settings.ReplacementCostDays
}
