package models

import (
	"context"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reversal describes what ReversePayment undid.
type Reversal struct {
	PaymentID       int             `json:"payment_id"`
	Skipped         bool            `json:"skipped"`
	DebtRestored    decimal.Decimal `json:"debt_restored"`
	AdvanceRemoved  decimal.Decimal `json:"advance_removed"`
	AdvanceRestored decimal.Decimal `json:"advance_restored"`
	// invoices whose share was put back
	InvoicesRestored []Allocation `json:"invoices_restored"`
	// invoices that keep their share of a distributed payment
	InvoicesKept []Allocation `json:"invoices_kept"`
}

// ReversePayment undoes the balance effects of p inside tx and removes its
// allocation rows. The payment row itself is left to the caller.
//
// A targeted payment gives its debt reduction back to the invoice. For a
// distributed payment the invoice shares are put back only when
// EXACT_DISTRIBUTED_REVERSAL is on; otherwise the party's debt is restored
// while the invoices keep their shares, and a warning is logged.
func ReversePayment(ctx context.Context, tx *gorm.DB, p *Payment) (*Reversal, error) {
	r := &Reversal{PaymentID: p.ID, DebtRestored: decimal.Zero, AdvanceRemoved: decimal.Zero, AdvanceRestored: decimal.Zero}
	if !p.hasLedgerEffect() {
		r.Skipped = true
		return r, deleteAllocations(tx, p.ID)
	}
	party := p.party()
	balances := NewBalanceEngine(tx)

	debtReduction := p.DebtReduction
	// rows written before the split columns existed only carry amount
	if debtReduction.IsZero() && p.ExcessAmount.IsZero() && p.AdvanceUsed.IsZero() {
		debtReduction = p.Amount
	}
	if err := balances.IncreaseDebt(party, NewMoney(p.Currency, debtReduction)); err != nil {
		return nil, err
	}
	r.DebtRestored = debtReduction
	if party.IsCustomer() {
		if err := balances.DecreaseAdvance(party.ID, NewMoney(p.Currency, p.ExcessAmount)); err != nil {
			return nil, err
		}
		if err := balances.IncreaseAdvance(party.ID, NewMoney(p.Currency, p.AdvanceUsed)); err != nil {
			return nil, err
		}
		r.AdvanceRemoved = p.ExcessAmount
		r.AdvanceRestored = p.AdvanceUsed
	}

	if targetId := p.targetId(); targetId > 0 {
		target, err := lockInvoice(tx, party.Type, targetId)
		if err != nil {
			return nil, err
		}
		target.unsettle(debtReduction)
		if err := saveSettlement(tx, target); err != nil {
			return nil, err
		}
		r.InvoicesRestored = []Allocation{{InvoiceID: target.ID, InvoiceNumber: target.Number, Amount: debtReduction}}
		return r, deleteAllocations(tx, p.ID)
	}

	var rows []*PaymentAllocation
	if err := tx.Where("payment_id = ?", p.ID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	exact := config.ExactDistributedReversal()
	for _, row := range rows {
		invoiceId := row.SaleId
		if party.Type == PartyTypeSupplier {
			invoiceId = row.PurchaseId
		}
		if invoiceId == nil {
			continue
		}
		state, err := lockInvoice(tx, party.Type, *invoiceId)
		if err != nil {
			if KindOf(err) == ErrorKindNotFound {
				continue
			}
			return nil, err
		}
		share := Allocation{InvoiceID: state.ID, InvoiceNumber: state.Number, Amount: row.Amount}
		if !exact {
			r.InvoicesKept = append(r.InvoicesKept, share)
			continue
		}
		state.unsettle(row.Amount)
		if err := saveSettlement(tx, state); err != nil {
			return nil, err
		}
		r.InvoicesRestored = append(r.InvoicesRestored, share)
	}

	if len(r.InvoicesKept) > 0 {
		numbers := make([]string, len(r.InvoicesKept))
		for i, a := range r.InvoicesKept {
			numbers[i] = a.InvoiceNumber
		}
		config.GetLogger().WithFields(logrus.Fields{
			"module":         "ReversalEngine",
			"payment_id":     p.ID,
			"party":          party.String(),
			"debt_restored":  debtReduction.String(),
			"invoices_kept":  numbers,
			"exact_reversal": exact,
		}).Warn("distributed payment reversed on balances only; invoices keep their shares")
	}
	return r, deleteAllocations(tx, p.ID)
}

func deleteAllocations(tx *gorm.DB, paymentId int) error {
	return tx.Where("payment_id = ?", paymentId).Delete(&PaymentAllocation{}).Error
}
