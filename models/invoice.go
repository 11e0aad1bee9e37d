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

// Sales and purchases share the same ledger mechanics; the code below is
// parameterized by kind: PartyTypeCustomer for sales, PartyTypeSupplier for
// purchases.

type NewInvoiceItem struct {
	ProductId     int          `json:"product_id" validate:"required,gt=0"`
	ProductUnitId *int         `json:"product_unit_id"`
	Quantity      utils.Amount `json:"quantity"`
	UnitPrice     utils.Amount `json:"unit_price"`
	Note          string       `json:"note" validate:"max=255"`
}

// invoiceTerms is the input common to NewSale and NewPurchase.
type invoiceTerms struct {
	Kind          PartyType
	Party         PartyRef
	Type          InvoiceType
	Currency      Currency
	Paid          decimal.Decimal
	PaymentMethod *string
	Items         []NewInvoiceItem
}

type invoiceFigures struct {
	Type          InvoiceType
	Status        InvoiceStatus
	PaymentMethod *string
	Total         decimal.Decimal
	Paid          decimal.Decimal
	Remaining     decimal.Decimal
	Excess        decimal.Decimal
	Tendered      decimal.Decimal
	LineTotals    []decimal.Decimal
}

func partyField(kind PartyType) string {
	if kind == PartyTypeSupplier {
		return "supplier_id"
	}
	return "customer_id"
}

// computeInvoice validates terms and derives totals. It touches no storage.
//
// Rules:
//   - cash needs a payment method and 0 < paid <= total; only a cash sale
//     to a known customer may be overpaid, the excess becoming advance
//   - credit needs paid <= total; a credit invoice paid in full is settled
//     immediately and recorded as cash
//   - only credit invoices with a party post their remaining as debt
func computeInvoice(terms invoiceTerms) (*invoiceFigures, error) {
	fields := map[string]string{}
	if len(terms.Items) == 0 {
		fields["items"] = "must have at least 1 entries"
	}
	if !terms.Currency.IsValid() {
		fields["currency"] = "must be one of: IQD USD"
	}
	if !terms.Type.IsValid() {
		fields[typeField(terms.Kind)] = "must be one of: cash credit"
	}
	if terms.Paid.IsNegative() {
		fields["paid_amount"] = "must be at least 0"
	}

	f := &invoiceFigures{Total: decimal.Zero, LineTotals: make([]decimal.Decimal, len(terms.Items))}
	for i, item := range terms.Items {
		if !item.Quantity.IsPositive() {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
		}
		if item.UnitPrice.IsNegative() {
			fields[fmt.Sprintf("items[%d].unit_price", i)] = "must be at least 0"
		}
		line := item.Quantity.Mul(item.UnitPrice.Decimal)
		f.LineTotals[i] = line
		f.Total = f.Total.Add(line)
	}
	if len(fields) > 0 {
		return nil, NewValidationError("invalid invoice", fields)
	}

	paid := terms.Paid
	method := terms.PaymentMethod
	if method != nil && strings.TrimSpace(*method) == "" {
		method = nil
	}
	switch terms.Type {
	case InvoiceTypeCash:
		if method == nil {
			return nil, NewFieldError("payment_method", "is required for cash invoices")
		}
		if !paid.IsPositive() {
			return nil, NewFieldError("paid_amount", "must be greater than 0 for cash invoices")
		}
		if paid.GreaterThan(f.Total) && !(terms.Kind == PartyTypeCustomer && terms.Party.IsSet()) {
			return nil, NewFieldError("paid_amount", "cannot exceed the total "+formatAmount(f.Total, terms.Currency))
		}
	case InvoiceTypeCredit:
		if paid.GreaterThan(f.Total) {
			return nil, NewFieldError("paid_amount", "cannot exceed the total "+formatAmount(f.Total, terms.Currency))
		}
		method = nil
	}

	f.Tendered = paid
	f.Paid = minDecimal(paid, f.Total)
	f.Remaining = f.Total.Sub(f.Paid)
	f.Excess = positiveOrZero(paid.Sub(f.Total))
	f.Type = terms.Type
	f.PaymentMethod = method
	f.Status = InvoiceStatusPending
	if f.Remaining.IsZero() {
		f.Type = InvoiceTypeCash
		f.Status = InvoiceStatusCompleted
	}
	return f, nil
}

// lockParty locks the party row; a missing party is reported against its id field.
func lockParty(balances *BalanceEngine, party PartyRef) error {
	if !party.IsSet() {
		return nil
	}
	if _, err := balances.Ledger(party); err != nil {
		if KindOf(err) == ErrorKindNotFound {
			return NewFieldError(partyField(party.Type), string(party.Type)+" not found")
		}
		return err
	}
	return nil
}

func typeField(kind PartyType) string {
	if kind == PartyTypeSupplier {
		return "purchase_type"
	}
	return "sale_type"
}

// invoiceState is the settlement view of a sale or purchase.
type invoiceState struct {
	Kind      PartyType
	ID        int
	Number    string
	PartyId   *int
	Type      InvoiceType
	Status    InvoiceStatus
	Currency  Currency
	Total     decimal.Decimal
	Paid      decimal.Decimal
	Remaining decimal.Decimal
	Date      time.Time
}

func (s *invoiceState) party() PartyRef {
	return partyFromPtr(s.Kind, s.PartyId)
}

func (s *invoiceState) openInvoice() OpenInvoice {
	return OpenInvoice{ID: s.ID, Number: s.Number, Date: s.Date, Remaining: s.Remaining}
}

// settle moves amount from remaining to paid; reaching zero flips to cash/completed.
func (s *invoiceState) settle(amount decimal.Decimal) {
	s.Paid = s.Paid.Add(amount)
	s.Remaining = s.Remaining.Sub(amount)
	if !s.Remaining.IsPositive() {
		s.Type = InvoiceTypeCash
		s.Status = InvoiceStatusCompleted
	}
}

// unsettle is the inverse of settle; any remaining flips back to credit/pending.
func (s *invoiceState) unsettle(amount decimal.Decimal) {
	s.Paid = s.Paid.Sub(amount)
	s.Remaining = s.Remaining.Add(amount)
	if s.Remaining.IsPositive() {
		s.Type = InvoiceTypeCredit
		s.Status = InvoiceStatusPending
	}
}

func lockInvoice(tx *gorm.DB, kind PartyType, id int) (*invoiceState, error) {
	if kind == PartyTypeSupplier {
		purchase, err := utils.FetchModelForUpdate[Purchase](tx, id)
		if err != nil {
			return nil, notFoundAs(err, "purchase")
		}
		return purchase.state(), nil
	}
	sale, err := utils.FetchModelForUpdate[Sale](tx, id)
	if err != nil {
		return nil, notFoundAs(err, "sale")
	}
	return sale.state(), nil
}

// openInvoices returns the party's unsettled credit invoices in one
// currency, oldest first, locked for update.
func openInvoices(tx *gorm.DB, party PartyRef, currency Currency) ([]*invoiceState, error) {
	return queryOpenInvoices(tx.Clauses(lockForUpdate), party, currency)
}

func queryOpenInvoices(locked *gorm.DB, party PartyRef, currency Currency) ([]*invoiceState, error) {
	var states []*invoiceState
	if party.Type == PartyTypeSupplier {
		var purchases []*Purchase
		if err := locked.Where("supplier_id = ? AND currency = ? AND purchase_type = ? AND remaining_amount > 0", party.ID, currency, InvoiceTypeCredit).
			Order("purchase_date ASC, id ASC").Find(&purchases).Error; err != nil {
			return nil, err
		}
		for _, p := range purchases {
			states = append(states, p.state())
		}
		return states, nil
	}
	var sales []*Sale
	if err := locked.Where("customer_id = ? AND currency = ? AND sale_type = ? AND remaining_amount > 0", party.ID, currency, InvoiceTypeCredit).
		Order("sale_date ASC, id ASC").Find(&sales).Error; err != nil {
		return nil, err
	}
	for _, s := range sales {
		states = append(states, s.state())
	}
	return states, nil
}

func saveSettlement(tx *gorm.DB, s *invoiceState) error {
	updates := map[string]interface{}{
		"paid_amount":      s.Paid,
		"remaining_amount": s.Remaining,
		"status":           s.Status,
		typeField(s.Kind):  s.Type,
	}
	if s.Kind == PartyTypeSupplier {
		return tx.Model(&Purchase{}).Where("id = ?", s.ID).Updates(updates).Error
	}
	return tx.Model(&Sale{}).Where("id = ?", s.ID).Updates(updates).Error
}

func invoiceColumn(kind PartyType) string {
	if kind == PartyTypeSupplier {
		return "purchase_id"
	}
	return "sale_id"
}

// postedLine is a persisted item as stock sees it.
type postedLine struct {
	ProductId    int
	BaseQuantity decimal.Decimal
}

// applyStock converts each item to base units and moves stock: sales take
// stock out (checking availability first), purchases put it in.
func applyStock(ctx context.Context, tx *gorm.DB, kind PartyType, items []NewInvoiceItem) ([]decimal.Decimal, error) {
	keeper := NewStockKeeper(tx)
	bases := make([]decimal.Decimal, len(items))
	for i, item := range items {
		base, err := keeper.ToBaseQuantity(ctx, item.ProductId, item.ProductUnitId, item.Quantity.Decimal)
		if err != nil {
			return nil, err
		}
		bases[i] = base
		if kind == PartyTypeCustomer {
			line := stockLine{ProductId: item.ProductId, ProductUnitId: item.ProductUnitId, Quantity: item.Quantity.Decimal}
			if err := checkSaleAvailability(ctx, keeper, tx, line); err != nil {
				return nil, err
			}
			if err := keeper.Decrement(ctx, item.ProductId, base); err != nil {
				return nil, err
			}
		} else {
			if err := keeper.Increment(ctx, item.ProductId, base); err != nil {
				return nil, err
			}
		}
	}
	return bases, nil
}

// restoreStock undoes applyStock for persisted lines and returns the base
// units moved back.
func restoreStock(ctx context.Context, tx *gorm.DB, kind PartyType, lines []postedLine) (decimal.Decimal, error) {
	keeper := NewStockKeeper(tx)
	total := decimal.Zero
	for _, line := range lines {
		var err error
		if kind == PartyTypeCustomer {
			err = keeper.Increment(ctx, line.ProductId, line.BaseQuantity)
		} else {
			err = keeper.Decrement(ctx, line.ProductId, line.BaseQuantity)
		}
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(line.BaseQuantity)
	}
	return total, nil
}

// postDebt adds the invoice's remaining amount to the party's debt (credit invoices only).
func postDebt(balances *BalanceEngine, party PartyRef, invoiceType InvoiceType, remaining Money) error {
	if !party.IsSet() || invoiceType != InvoiceTypeCredit || !remaining.IsPositive() {
		return nil
	}
	return balances.IncreaseDebt(party, remaining)
}

func unpostDebt(balances *BalanceEngine, party PartyRef, invoiceType InvoiceType, remaining Money) error {
	if !party.IsSet() || invoiceType != InvoiceTypeCredit || !remaining.IsPositive() {
		return nil
	}
	return balances.DecreaseDebt(party, remaining)
}

// recordInvoicePayment stores the money taken with a sale as a targeted
// payment. Debt is untouched: only the remaining amount was ever posted.
func recordInvoicePayment(tx *gorm.DB, balances *BalanceEngine, inv *invoiceState, f *invoiceFigures, createdBy int) error {
	party := inv.party()
	if !f.Tendered.IsPositive() || !party.IsSet() || party.Type != PartyTypeCustomer {
		return nil
	}
	method := utils.DereferencePtr(f.PaymentMethod, PaymentMethodCash)
	notes := fmt.Sprintf("Paid %s at checkout for %s", formatAmount(f.Tendered, inv.Currency), inv.Number)
	if f.Excess.IsPositive() {
		notes += fmt.Sprintf("; %s applied, %s added to advance", formatAmount(f.Paid, inv.Currency), formatAmount(f.Excess, inv.Currency))
	}
	payment := Payment{
		PaymentType:   PartyTypeCustomer,
		CustomerId:    party.ptr(),
		SaleId:        &inv.ID,
		Currency:      inv.Currency,
		Amount:        f.Tendered,
		DebtReduction: f.Paid,
		ExcessAmount:  f.Excess,
		AdvanceUsed:   decimal.Zero,
		CashPayment:   f.Paid,
		PaymentMethod: method,
		Status:        PaymentStatusCompleted,
		PaymentDate:   inv.Date,
		Notes:         notes,
		CreatedBy:     createdBy,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return err
	}
	if f.Excess.IsPositive() {
		return balances.IncreaseAdvance(party.ID, NewMoney(inv.Currency, f.Excess))
	}
	return nil
}

// unpostInvoicePayments reverses the advance side of every payment tied to
// the invoice and deletes them. Debt is restored separately through the
// invoice's remaining amount. Returns the net advance taken back.
func unpostInvoicePayments(tx *gorm.DB, balances *BalanceEngine, kind PartyType, invoiceId int) (decimal.Decimal, error) {
	var payments []*Payment
	if err := tx.Where(invoiceColumn(kind)+" = ?", invoiceId).Find(&payments).Error; err != nil {
		return decimal.Zero, err
	}
	returned := decimal.Zero
	for _, p := range payments {
		if p.PaymentType == PartyTypeCustomer && p.CustomerId != nil && p.hasLedgerEffect() {
			if err := balances.DecreaseAdvance(*p.CustomerId, NewMoney(p.Currency, p.ExcessAmount)); err != nil {
				return decimal.Zero, err
			}
			if err := balances.IncreaseAdvance(*p.CustomerId, NewMoney(p.Currency, p.AdvanceUsed)); err != nil {
				return decimal.Zero, err
			}
			returned = returned.Add(p.ExcessAmount).Sub(p.AdvanceUsed)
		}
		if err := tx.Where("payment_id = ?", p.ID).Delete(&PaymentAllocation{}).Error; err != nil {
			return decimal.Zero, err
		}
		if err := tx.Delete(p).Error; err != nil {
			return decimal.Zero, err
		}
	}
	return returned, nil
}

// ensureNoDistributedShares blocks replacing or deleting an invoice that
// holds part of an untargeted payment; that payment must be reversed first.
func ensureNoDistributedShares(tx *gorm.DB, kind PartyType, invoiceId int, number string) error {
	var paymentIds []int
	if err := tx.Model(&PaymentAllocation{}).Where(invoiceColumn(kind)+" = ?", invoiceId).
		Distinct().Pluck("payment_id", &paymentIds).Error; err != nil {
		return err
	}
	if len(paymentIds) > 0 {
		return NewBusinessError("invoice %s holds shares of distributed payments %s; reverse those payments first", number, joinInts(paymentIds))
	}
	return nil
}

// BulkDeleteSummary reports what a bulk delete undid.
type BulkDeleteSummary struct {
	Deleted         int                          `json:"deleted"`
	InvoiceNumbers  []string                     `json:"invoice_numbers"`
	StockRestored   decimal.Decimal              `json:"stock_restored"`
	DebtReduced     map[Currency]decimal.Decimal `json:"debt_reduced"`
	AdvanceReturned map[Currency]decimal.Decimal `json:"advance_returned"`
}

func newBulkDeleteSummary() *BulkDeleteSummary {
	l := NewLedger()
	return &BulkDeleteSummary{StockRestored: decimal.Zero, DebtReduced: l.Debt, AdvanceReturned: l.Advance}
}

func (s *BulkDeleteSummary) add(number string, d invoiceDeletion) {
	s.Deleted++
	s.InvoiceNumbers = append(s.InvoiceNumbers, number)
	s.StockRestored = s.StockRestored.Add(d.StockRestored)
	s.DebtReduced[d.Currency] = s.DebtReduced[d.Currency].Add(d.DebtReduced)
	s.AdvanceReturned[d.Currency] = s.AdvanceReturned[d.Currency].Add(d.AdvanceReturned)
}

func (s *BulkDeleteSummary) Message() string {
	parts := []string{fmt.Sprintf("%d invoices deleted", s.Deleted), "stock restored " + s.StockRestored.String()}
	for _, c := range Currencies {
		if s.DebtReduced[c].IsPositive() {
			parts = append(parts, "debt reduced "+formatAmount(s.DebtReduced[c], c))
		}
		if !s.AdvanceReturned[c].IsZero() {
			parts = append(parts, "advance returned "+formatAmount(s.AdvanceReturned[c], c))
		}
	}
	return strings.Join(parts, ", ")
}

// invoiceDeletion is the effect of deleting one invoice.
type invoiceDeletion struct {
	Currency        Currency
	StockRestored   decimal.Decimal
	DebtReduced     decimal.Decimal
	AdvanceReturned decimal.Decimal
}

// blockedByPayments lists invoice numbers (from numbers, keyed by id) that
// have any payment or distributed share.
func blockedByPayments(tx *gorm.DB, kind PartyType, numbers map[int]string) ([]string, error) {
	ids := make([]int, 0, len(numbers))
	for id := range numbers {
		ids = append(ids, id)
	}
	column := invoiceColumn(kind)
	var paid []int
	if err := tx.Model(&Payment{}).Where(column+" IN ?", ids).Distinct().Pluck(column, &paid).Error; err != nil {
		return nil, err
	}
	var shared []int
	if err := tx.Model(&PaymentAllocation{}).Where(column+" IN ?", ids).Distinct().Pluck(column, &shared).Error; err != nil {
		return nil, err
	}
	var blocked []string
	for _, id := range utils.UniqueSlice(append(paid, shared...)) {
		blocked = append(blocked, numbers[id])
	}
	sortStrings(blocked)
	return blocked, nil
}

func invoiceNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%d", prefix, seq)
}

func invoiceDate(d *time.Time) time.Time {
	if d == nil || d.IsZero() {
		return time.Now()
	}
	return *d
}
