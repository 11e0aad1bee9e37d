package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Payment records money moving between the business and a party.
// Amount is what was tendered plus any advance drawn;
// DebtReduction = AdvanceUsed + CashPayment for distributed payments.
type Payment struct {
	ID              int                  `gorm:"primary_key" json:"id"`
	PaymentType     PartyType            `gorm:"size:10;not null" json:"payment_type"`
	CustomerId      *int                 `gorm:"index" json:"customer_id"`
	SupplierId      *int                 `gorm:"index" json:"supplier_id"`
	SaleId          *int                 `gorm:"index" json:"sale_id"`
	PurchaseId      *int                 `gorm:"index" json:"purchase_id"`
	Currency        Currency             `gorm:"size:3;not null" json:"currency"`
	Amount          decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	DebtReduction   decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"debt_reduction"`
	ExcessAmount    decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"excess_amount"`
	AdvanceUsed     decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"advance_used"`
	CashPayment     decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"cash_payment"`
	PaymentMethod   string               `gorm:"size:50;not null;default:'cash'" json:"payment_method"`
	Status          PaymentStatus        `gorm:"size:20;not null;default:'completed'" json:"status"`
	ReferenceNumber *string              `gorm:"size:64;uniqueIndex" json:"reference_number"`
	PaymentDate     time.Time            `gorm:"index;not null" json:"payment_date"`
	Notes           string               `gorm:"type:text" json:"notes"`
	CreatedBy       int                  `gorm:"default:0" json:"created_by"`
	Allocations     []*PaymentAllocation `gorm:"foreignKey:PaymentId" json:"allocations,omitempty"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaymentAllocation is one invoice's share of a distributed payment.
type PaymentAllocation struct {
	ID         int             `gorm:"primary_key" json:"id"`
	PaymentId  int             `gorm:"index;not null" json:"payment_id"`
	SaleId     *int            `gorm:"index" json:"sale_id"`
	PurchaseId *int            `gorm:"index" json:"purchase_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayment struct {
	PaymentType     PartyType     `json:"payment_type" validate:"required,oneof=customer supplier"`
	CustomerId      *int          `json:"customer_id"`
	SupplierId      *int          `json:"supplier_id"`
	SaleId          *int          `json:"sale_id"`
	PurchaseId      *int          `json:"purchase_id"`
	Currency        Currency      `json:"currency" validate:"required,oneof=IQD USD"`
	Amount          utils.Amount  `json:"amount"`
	UseAdvance      bool          `json:"use_advance"`
	AdvanceAmount   utils.Amount  `json:"advance_amount"`
	PaymentMethod   string        `json:"payment_method" validate:"max=50"`
	Status          PaymentStatus `json:"status" validate:"omitempty,oneof=completed pending cancelled"`
	ReferenceNumber *string       `json:"reference_number" validate:"omitempty,max=64"`
	PaymentDate     *time.Time    `json:"payment_date"`
	Notes           string        `json:"notes"`
}

func (p *Payment) party() PartyRef {
	if p.PaymentType == PartyTypeSupplier {
		return partyFromPtr(PartyTypeSupplier, p.SupplierId)
	}
	return partyFromPtr(PartyTypeCustomer, p.CustomerId)
}

// targetId is the invoice the payment was made against, 0 when distributed.
func (p *Payment) targetId() int {
	if p.PaymentType == PartyTypeSupplier {
		return utils.DereferencePtr(p.PurchaseId)
	}
	return utils.DereferencePtr(p.SaleId)
}

// hasLedgerEffect reports whether the payment moved balances when stored.
func (p *Payment) hasLedgerEffect() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusRefunded
}

func (p *Payment) isSystemPayment() bool {
	return p.PaymentMethod == PaymentMethodAdvanceApplication || p.Status == PaymentStatusRefunded
}

func (input *NewPayment) party() PartyRef {
	if input.PaymentType == PartyTypeSupplier {
		return partyFromPtr(PartyTypeSupplier, input.SupplierId)
	}
	return partyFromPtr(PartyTypeCustomer, input.CustomerId)
}

func (input *NewPayment) targetId() int {
	if input.PaymentType == PartyTypeSupplier {
		return utils.DereferencePtr(input.PurchaseId)
	}
	return utils.DereferencePtr(input.SaleId)
}

func (input *NewPayment) status() PaymentStatus {
	if input.Status == "" {
		return PaymentStatusCompleted
	}
	return input.Status
}

func (input *NewPayment) validate() error {
	if err := validateInput(input); err != nil {
		return err
	}
	fields := map[string]string{}
	party := input.party()
	if !party.IsSet() {
		fields[partyField(input.PaymentType)] = "is required"
	}
	if input.PaymentType == PartyTypeCustomer && utils.DereferencePtr(input.PurchaseId) > 0 {
		fields["purchase_id"] = "is not allowed on customer payments"
	}
	if input.PaymentType == PartyTypeSupplier && utils.DereferencePtr(input.SaleId) > 0 {
		fields["sale_id"] = "is not allowed on supplier payments"
	}
	if input.Amount.IsNegative() {
		fields["amount"] = "must be at least 0"
	} else if !input.Amount.IsPositive() && !input.UseAdvance {
		fields["amount"] = "must be greater than 0"
	}
	if input.UseAdvance {
		if input.PaymentType == PartyTypeSupplier {
			fields["use_advance"] = "suppliers do not hold advance"
		}
		if input.targetId() > 0 {
			fields["use_advance"] = "cannot be combined with a target invoice"
		}
	}
	if input.AdvanceAmount.IsNegative() {
		fields["advance_amount"] = "must be at least 0"
	}
	if len(fields) > 0 {
		return NewValidationError("invalid payment", fields)
	}
	return nil
}

// paymentPlan is the split of a payment before any row is touched.
type paymentPlan struct {
	Tendered      decimal.Decimal
	DebtReduction decimal.Decimal
	Excess        decimal.Decimal
	AdvanceUsed   decimal.Decimal
	CashPayment   decimal.Decimal
	Allocations   []Allocation
	Leftover      decimal.Decimal
}

func (p *paymentPlan) amount() decimal.Decimal {
	return p.Tendered.Add(p.AdvanceUsed)
}

// planTargeted splits a payment made against one invoice. Only customers
// may overpay; the excess becomes advance.
func planTargeted(kind PartyType, tendered decimal.Decimal, target *invoiceState) (*paymentPlan, error) {
	if !target.Remaining.IsPositive() {
		return nil, NewBusinessError("invoice %s is already settled", target.Number)
	}
	if target.Type != InvoiceTypeCredit {
		return nil, NewBusinessError("invoice %s is a cash invoice; its remaining %s is not owed as debt",
			target.Number, formatAmount(target.Remaining, target.Currency))
	}
	plan := &paymentPlan{Tendered: tendered, AdvanceUsed: decimal.Zero, Excess: decimal.Zero, Leftover: decimal.Zero}
	if tendered.GreaterThan(target.Remaining) {
		if kind == PartyTypeSupplier {
			return nil, NewBusinessError("payment %s exceeds the remaining %s on invoice %s",
				formatAmount(tendered, target.Currency), formatAmount(target.Remaining, target.Currency), target.Number)
		}
		plan.DebtReduction = target.Remaining
		plan.Excess = tendered.Sub(target.Remaining)
	} else {
		plan.DebtReduction = tendered
	}
	plan.CashPayment = plan.DebtReduction
	return plan, nil
}

// planDistributed splits an untargeted payment using the party's balances
// and spreads the debt reduction over its open invoices.
//
// With an advance draw: advance_used = min(requested, available, debt); the
// tendered cash covers what debt is left and any surplus is excess.
// Without: a customer's payment beyond debt is excess; a supplier's is rejected.
func planDistributed(kind PartyType, currency Currency, tendered decimal.Decimal, useAdvance bool, requested decimal.Decimal, ledger Ledger, open []OpenInvoice) (*paymentPlan, error) {
	debt := ledger.DebtIn(currency)
	available := ledger.AdvanceIn(currency)
	plan := &paymentPlan{Tendered: tendered, AdvanceUsed: decimal.Zero, Excess: decimal.Zero}

	if useAdvance && requested.GreaterThan(available) {
		return nil, NewBusinessError("advance amount %s exceeds the available advance %s",
			formatAmount(requested, currency), formatAmount(available, currency))
	}

	switch {
	case useAdvance && kind == PartyTypeCustomer && available.IsPositive():
		if !requested.IsPositive() {
			requested = available
		}
		outstanding := positiveOrZero(debt)
		plan.AdvanceUsed = minDecimal(requested, available, outstanding)
		gap := outstanding.Sub(plan.AdvanceUsed)
		plan.CashPayment = minDecimal(tendered, gap)
		plan.Excess = tendered.Sub(plan.CashPayment)
		plan.DebtReduction = plan.AdvanceUsed.Add(plan.CashPayment)
	case kind == PartyTypeCustomer:
		switch {
		case !debt.IsPositive():
			plan.DebtReduction = decimal.Zero
			plan.Excess = tendered
		case tendered.GreaterThan(debt):
			plan.DebtReduction = debt
			plan.Excess = tendered.Sub(debt)
		default:
			plan.DebtReduction = tendered
		}
		plan.CashPayment = plan.DebtReduction
	default:
		if tendered.GreaterThan(debt) {
			return nil, NewBusinessError("payment %s exceeds the supplier balance %s",
				formatAmount(tendered, currency), formatAmount(positiveOrZero(debt), currency))
		}
		plan.DebtReduction = tendered
		plan.CashPayment = tendered
	}

	if !plan.DebtReduction.IsPositive() && !plan.Excess.IsPositive() {
		return nil, NewBusinessError("nothing to apply: no outstanding debt or advance in %s", currency)
	}
	plan.Allocations, plan.Leftover = Distribute(plan.DebtReduction, open)
	return plan, nil
}

func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var paymentId int
	err := runLedgerTx(ctx, "CreatePayment", []PartyRef{input.party()}, func(tx *gorm.DB) error {
		payment := &Payment{CreatedBy: userId}
		if err := postPayment(ctx, tx, NewBalanceEngine(tx), payment, input); err != nil {
			return err
		}
		paymentId = payment.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetPayment(ctx, paymentId)
}

// UpdatePayment reverses the stored payment and re-applies it from input,
// keeping its id and reference. System payments (advance application,
// refunds) can only be deleted.
func UpdatePayment(ctx context.Context, id int, input *NewPayment) (*Payment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	existing, err := utils.FetchModel[Payment](ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "payment")
	}

	err = runLedgerTx(ctx, "UpdatePayment", []PartyRef{existing.party(), input.party()}, func(tx *gorm.DB) error {
		payment, err := utils.FetchModelForUpdate[Payment](tx, id)
		if err != nil {
			return notFoundAs(err, "payment")
		}
		if payment.isSystemPayment() {
			return NewBusinessError("payment #%d was created by the system and cannot be edited; delete it instead", payment.ID)
		}
		balances := NewBalanceEngine(tx)
		if err := lockParty(balances, payment.party()); err != nil {
			return err
		}
		if _, err := ReversePayment(ctx, tx, payment); err != nil {
			return err
		}
		if input.ReferenceNumber == nil {
			input.ReferenceNumber = payment.ReferenceNumber
		}
		payment.CustomerId, payment.SupplierId, payment.SaleId, payment.PurchaseId = nil, nil, nil, nil
		return postPayment(ctx, tx, balances, payment, input)
	})
	if err != nil {
		return nil, err
	}
	return GetPayment(ctx, id)
}

func DeletePayment(ctx context.Context, id int) (*Payment, *Reversal, error) {
	existing, err := GetPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var reversal *Reversal
	err = runLedgerTx(ctx, "DeletePayment", []PartyRef{existing.party()}, func(tx *gorm.DB) error {
		payment, err := utils.FetchModelForUpdate[Payment](tx, id)
		if err != nil {
			return notFoundAs(err, "payment")
		}
		if err := lockParty(NewBalanceEngine(tx), payment.party()); err != nil {
			return err
		}
		if reversal, err = ReversePayment(ctx, tx, payment); err != nil {
			return err
		}
		return tx.Delete(payment).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return existing, reversal, nil
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	payment, err := utils.FetchModel[Payment](ctx, id, "Allocations")
	if err != nil {
		return nil, notFoundAs(err, "payment")
	}
	return payment, nil
}

// postPayment plans input against current balances, applies the effects
// when the payment is completed, and saves payment (insert when new).
func postPayment(ctx context.Context, tx *gorm.DB, balances *BalanceEngine, payment *Payment, input *NewPayment) error {
	party := input.party()
	ledger, err := balances.Ledger(party)
	if err != nil {
		if KindOf(err) == ErrorKindNotFound {
			return NewFieldError(partyField(party.Type), string(party.Type)+" not found")
		}
		return err
	}

	var (
		plan   *paymentPlan
		target *invoiceState
		open   map[int]*invoiceState
	)
	tendered := input.Amount.Decimal
	if targetId := input.targetId(); targetId > 0 {
		if target, err = lockInvoice(tx, party.Type, targetId); err != nil {
			return err
		}
		if utils.DereferencePtr(target.PartyId) != party.ID {
			return NewFieldError(invoiceColumn(party.Type), "does not belong to this "+string(party.Type))
		}
		if target.Currency != input.Currency {
			return &CurrencyMismatchError{Expected: target.Currency, Got: input.Currency}
		}
		if plan, err = planTargeted(party.Type, tendered, target); err != nil {
			return err
		}
	} else {
		states, err := openInvoices(tx, party, input.Currency)
		if err != nil {
			return err
		}
		open = make(map[int]*invoiceState, len(states))
		openList := make([]OpenInvoice, len(states))
		for i, s := range states {
			open[s.ID] = s
			openList[i] = s.openInvoice()
		}
		plan, err = planDistributed(party.Type, input.Currency, tendered, input.UseAdvance, input.AdvanceAmount.Decimal, ledger, openList)
		if err != nil {
			return err
		}
	}

	payment.PaymentType = party.Type
	if party.Type == PartyTypeSupplier {
		payment.SupplierId = party.ptr()
		payment.PurchaseId = input.PurchaseId
	} else {
		payment.CustomerId = party.ptr()
		payment.SaleId = input.SaleId
	}
	if target == nil {
		payment.SaleId, payment.PurchaseId = nil, nil
	}
	payment.Currency = input.Currency
	payment.Amount = plan.amount()
	payment.DebtReduction = plan.DebtReduction
	payment.ExcessAmount = plan.Excess
	payment.AdvanceUsed = plan.AdvanceUsed
	payment.CashPayment = plan.CashPayment
	payment.PaymentMethod = utils.DereferencePtr(utils.NilIfEmpty(strings.TrimSpace(input.PaymentMethod)), PaymentMethodCash)
	payment.Status = input.status()
	payment.ReferenceNumber = input.ReferenceNumber
	if payment.ReferenceNumber == nil {
		payment.ReferenceNumber = newPaymentReference()
	}
	payment.PaymentDate = invoiceDate(input.PaymentDate)
	payment.Notes = paymentNotes(input.Notes, party, input.Currency, plan, target)

	if payment.ID == 0 {
		err = tx.Create(payment).Error
	} else {
		err = tx.Omit("Allocations").Save(payment).Error
	}
	if err != nil {
		return err
	}
	if !payment.hasLedgerEffect() {
		return nil
	}

	currency := input.Currency
	if err := balances.DecreaseDebt(party, NewMoney(currency, plan.DebtReduction)); err != nil {
		return err
	}
	if party.IsCustomer() {
		if err := balances.DecreaseAdvance(party.ID, NewMoney(currency, plan.AdvanceUsed)); err != nil {
			return err
		}
		if err := balances.IncreaseAdvance(party.ID, NewMoney(currency, plan.Excess)); err != nil {
			return err
		}
	}
	if target != nil {
		target.settle(plan.DebtReduction)
		return saveSettlement(tx, target)
	}
	if plan.Leftover.IsPositive() {
		config.GetLogger().WithFields(logrus.Fields{
			"module":   "PaymentDistributor",
			"party":    party.String(),
			"currency": currency,
			"leftover": plan.Leftover.String(),
		}).Warn("debt reduction exceeds open invoices; balance and invoices have drifted")
	}
	return applyAllocations(tx, party.Type, payment.ID, plan.Allocations, open)
}

// applyAllocations settles each invoice's share and records it.
func applyAllocations(tx *gorm.DB, kind PartyType, paymentId int, allocations []Allocation, open map[int]*invoiceState) error {
	for _, a := range allocations {
		state := open[a.InvoiceID]
		state.settle(a.Amount)
		if err := saveSettlement(tx, state); err != nil {
			return err
		}
		row := PaymentAllocation{PaymentId: paymentId, Amount: a.Amount}
		invoiceId := a.InvoiceID
		if kind == PartyTypeSupplier {
			row.PurchaseId = &invoiceId
		} else {
			row.SaleId = &invoiceId
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func newPaymentReference() *string {
	ref := "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return &ref
}

func paymentNotes(userNotes string, party PartyRef, currency Currency, plan *paymentPlan, target *invoiceState) string {
	verb := "Received"
	if party.Type == PartyTypeSupplier {
		verb = "Paid"
	}
	var parts []string
	if plan.Tendered.IsPositive() {
		parts = append(parts, fmt.Sprintf("%s %s", verb, formatAmount(plan.Tendered, currency)))
	}
	if plan.AdvanceUsed.IsPositive() {
		parts = append(parts, "advance used "+formatAmount(plan.AdvanceUsed, currency))
	}
	if target != nil {
		parts = append(parts, fmt.Sprintf("applied %s to %s", formatAmount(plan.DebtReduction, currency), target.Number))
	} else if len(plan.Allocations) > 0 {
		shares := make([]string, len(plan.Allocations))
		for i, a := range plan.Allocations {
			shares[i] = fmt.Sprintf("%s %s", a.InvoiceNumber, a.Amount.StringFixed(2))
		}
		parts = append(parts, "distributed to "+strings.Join(shares, ", "))
	}
	if plan.Leftover.IsPositive() {
		parts = append(parts, formatAmount(plan.Leftover, currency)+" not matched to open invoices")
	}
	if plan.Excess.IsPositive() {
		parts = append(parts, formatAmount(plan.Excess, currency)+" added to advance")
	}
	notes := strings.Join(parts, "; ")
	if strings.TrimSpace(userNotes) != "" {
		notes = strings.TrimSpace(userNotes) + " | " + notes
	}
	return notes
}
