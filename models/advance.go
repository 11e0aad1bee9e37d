package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewAdvanceApplication struct {
	CustomerId int          `json:"customer_id" validate:"required,gt=0"`
	Currency   Currency     `json:"currency" validate:"required,oneof=IQD USD"`
	Amount     utils.Amount `json:"amount"`
	ApplyAll   bool         `json:"apply_all"`
	Notes      string       `json:"notes"`
}

type NewAdvanceRefund struct {
	CustomerId    int          `json:"customer_id" validate:"required,gt=0"`
	Currency      Currency     `json:"currency" validate:"required,oneof=IQD USD"`
	Amount        utils.Amount `json:"amount"`
	PaymentMethod string       `json:"payment_method" validate:"max=50"`
	Notes         string       `json:"notes"`
}

func (input *NewAdvanceApplication) validate() error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.Amount.IsNegative() {
		return NewFieldError("amount", "must be at least 0")
	}
	if !input.ApplyAll && !input.Amount.IsPositive() {
		return NewFieldError("amount", "must be greater than 0 unless apply_all is set")
	}
	return nil
}

// ApplyAdvanceToDebt uses a customer's advance to pay down their debt in
// the same currency. The amount is min(requested or full debt, available
// advance, debt). It is spread over open invoices like any untargeted payment.
func ApplyAdvanceToDebt(ctx context.Context, input *NewAdvanceApplication) (*Payment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	party := CustomerParty(input.CustomerId)

	var paymentId int
	err := runLedgerTx(ctx, "ApplyAdvanceToDebt", []PartyRef{party}, func(tx *gorm.DB) error {
		balances := NewBalanceEngine(tx)
		ledger, err := balances.Ledger(party)
		if err != nil {
			return err
		}
		currency := input.Currency
		debt := ledger.DebtIn(currency)
		available := ledger.AdvanceIn(currency)
		if !input.ApplyAll && input.Amount.GreaterThan(available) {
			return NewBusinessError("advance amount %s exceeds the available advance %s",
				formatAmount(input.Amount.Decimal, currency), formatAmount(available, currency))
		}
		if !available.IsPositive() {
			return NewBusinessError("customer has no advance in %s", currency)
		}
		if !debt.IsPositive() {
			return NewBusinessError("customer has no debt in %s", currency)
		}
		requested := debt
		if !input.ApplyAll {
			requested = input.Amount.Decimal
		}
		amount := minDecimal(requested, available, debt)

		states, err := openInvoices(tx, party, currency)
		if err != nil {
			return err
		}
		open := make(map[int]*invoiceState, len(states))
		openList := make([]OpenInvoice, len(states))
		for i, s := range states {
			open[s.ID] = s
			openList[i] = s.openInvoice()
		}
		allocations, leftover := Distribute(amount, openList)
		plan := &paymentPlan{
			Tendered:      decimal.Zero,
			DebtReduction: amount,
			AdvanceUsed:   amount,
			Excess:        decimal.Zero,
			CashPayment:   decimal.Zero,
			Allocations:   allocations,
			Leftover:      leftover,
		}

		payment := Payment{
			PaymentType:     PartyTypeCustomer,
			CustomerId:      party.ptr(),
			Currency:        currency,
			Amount:          amount,
			DebtReduction:   amount,
			AdvanceUsed:     amount,
			ExcessAmount:    decimal.Zero,
			CashPayment:     decimal.Zero,
			PaymentMethod:   PaymentMethodAdvanceApplication,
			Status:          PaymentStatusCompleted,
			ReferenceNumber: newPaymentReference(),
			PaymentDate:     time.Now(),
			Notes:           paymentNotes(input.Notes, party, currency, plan, nil),
			CreatedBy:       userId,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		paymentId = payment.ID

		if err := balances.DecreaseAdvance(party.ID, NewMoney(currency, amount)); err != nil {
			return err
		}
		if err := balances.DecreaseDebt(party, NewMoney(currency, amount)); err != nil {
			return err
		}
		return applyAllocations(tx, PartyTypeCustomer, payment.ID, allocations, open)
	})
	if err != nil {
		return nil, err
	}
	return GetPayment(ctx, paymentId)
}

// RefundAdvance hands advance back to the customer as money. The refund is
// recorded as a refunded payment so it can be reversed by deleting it.
func RefundAdvance(ctx context.Context, input *NewAdvanceRefund) (*Payment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, NewFieldError("amount", "must be greater than 0")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	party := CustomerParty(input.CustomerId)

	var paymentId int
	err := runLedgerTx(ctx, "RefundAdvance", []PartyRef{party}, func(tx *gorm.DB) error {
		balances := NewBalanceEngine(tx)
		ledger, err := balances.Ledger(party)
		if err != nil {
			return err
		}
		currency := input.Currency
		available := ledger.AdvanceIn(currency)
		amount := input.Amount.Decimal
		if amount.GreaterThan(available) {
			return NewBusinessError("refund %s exceeds the available advance %s",
				formatAmount(amount, currency), formatAmount(available, currency))
		}

		notes := fmt.Sprintf("Refunded %s of advance", formatAmount(amount, currency))
		if strings.TrimSpace(input.Notes) != "" {
			notes = strings.TrimSpace(input.Notes) + " | " + notes
		}
		payment := Payment{
			PaymentType:     PartyTypeCustomer,
			CustomerId:      party.ptr(),
			Currency:        currency,
			Amount:          amount,
			DebtReduction:   decimal.Zero,
			AdvanceUsed:     amount,
			ExcessAmount:    decimal.Zero,
			CashPayment:     decimal.Zero,
			PaymentMethod:   utils.DereferencePtr(utils.NilIfEmpty(strings.TrimSpace(input.PaymentMethod)), PaymentMethodCash),
			Status:          PaymentStatusRefunded,
			ReferenceNumber: newPaymentReference(),
			PaymentDate:     time.Now(),
			Notes:           notes,
			CreatedBy:       userId,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		paymentId = payment.ID
		return balances.DecreaseAdvance(party.ID, NewMoney(currency, amount))
	})
	if err != nil {
		return nil, err
	}
	return GetPayment(ctx, paymentId)
}
