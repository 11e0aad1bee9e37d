package models

import (
	"context"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"github.com/shopspring/decimal"
)

// PartyLedger is a read-only balance summary for one customer or supplier.
// Drift is stored debt minus the sum of open credit invoices; it is zero
// when counters and invoices agree.
type PartyLedger struct {
	PartyType        PartyType                    `json:"party_type"`
	PartyId          int                          `json:"party_id"`
	Name             string                       `json:"name"`
	Debt             map[Currency]decimal.Decimal `json:"debt"`
	Advance          map[Currency]decimal.Decimal `json:"advance,omitempty"`
	OpenInvoices     map[Currency][]OpenInvoice   `json:"open_invoices"`
	OpenTotal        map[Currency]decimal.Decimal `json:"open_total"`
	Drift            map[Currency]decimal.Decimal `json:"drift"`
	ApproxIqdDebt    decimal.Decimal              `json:"approx_iqd_debt"`
	ApproxIqdAdvance decimal.Decimal              `json:"approx_iqd_advance"`
}

func GetCustomerLedger(ctx context.Context, id int) (*PartyLedger, error) {
	customer, err := GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildPartyLedger(ctx, CustomerParty(id), customer.Name, customer.Ledger())
}

func GetSupplierLedger(ctx context.Context, id int) (*PartyLedger, error) {
	supplier, err := GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildPartyLedger(ctx, SupplierParty(id), supplier.Name, supplier.Ledger())
}

func buildPartyLedger(ctx context.Context, party PartyRef, name string, ledger Ledger) (*PartyLedger, error) {
	db := config.GetDB().WithContext(ctx)
	summary := &PartyLedger{
		PartyType:    party.Type,
		PartyId:      party.ID,
		Name:         name,
		Debt:         ledger.Debt,
		OpenInvoices: make(map[Currency][]OpenInvoice, len(Currencies)),
		OpenTotal:    make(map[Currency]decimal.Decimal, len(Currencies)),
		Drift:        make(map[Currency]decimal.Decimal, len(Currencies)),
	}
	if party.IsCustomer() {
		summary.Advance = ledger.Advance
	}
	for _, c := range Currencies {
		states, err := queryOpenInvoices(db, party, c)
		if err != nil {
			return nil, err
		}
		open := make([]OpenInvoice, len(states))
		total := decimal.Zero
		for i, s := range states {
			open[i] = s.openInvoice()
			total = total.Add(s.Remaining)
		}
		summary.OpenInvoices[c] = open
		summary.OpenTotal[c] = total
		summary.Drift[c] = ledger.DebtIn(c).Sub(total)
	}
	summary.ApproxIqdDebt = ApproxIqd(ledger.Debt)
	if party.IsCustomer() {
		summary.ApproxIqdAdvance = ApproxIqd(ledger.Advance)
	} else {
		summary.ApproxIqdAdvance = decimal.Zero
	}
	return summary, nil
}
