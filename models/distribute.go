package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OpenInvoice is an unsettled credit invoice as the distributor sees it.
type OpenInvoice struct {
	ID        int             `json:"id"`
	Number    string          `json:"invoice_number"`
	Date      time.Time       `json:"date"`
	Remaining decimal.Decimal `json:"remaining_amount"`
}

// Allocation is the share of a payment applied to one invoice.
type Allocation struct {
	InvoiceID     int             `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	Settled       bool            `json:"settled"`
}

// Distribute spreads amount over invoices, oldest first (date, then id), each
// invoice taking at most its remaining amount. It returns the allocations and
// whatever could not be placed. The input slice is not modified.
func Distribute(amount decimal.Decimal, invoices []OpenInvoice) ([]Allocation, decimal.Decimal) {
	if !amount.IsPositive() {
		return nil, decimal.Zero
	}
	ordered := make([]OpenInvoice, len(invoices))
	copy(ordered, invoices)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})

	left := amount
	var allocations []Allocation
	for _, inv := range ordered {
		if !left.IsPositive() {
			break
		}
		if !inv.Remaining.IsPositive() {
			continue
		}
		share := minDecimal(left, inv.Remaining)
		allocations = append(allocations, Allocation{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			Amount:        share,
			Settled:       share.Equal(inv.Remaining),
		})
		left = left.Sub(share)
	}
	return allocations, left
}

func allocatedTotal(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}
