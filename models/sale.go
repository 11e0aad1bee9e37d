package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Sale struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InvoiceNumber   string          `gorm:"size:30;uniqueIndex;not null" json:"invoice_number"`
	SequenceNo      int64           `gorm:"index;not null" json:"sequence_no"`
	CustomerId      *int            `gorm:"index" json:"customer_id"`
	SaleType        InvoiceType     `gorm:"size:10;not null" json:"sale_type"`
	Currency        Currency        `gorm:"size:3;not null" json:"currency"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"remaining_amount"`
	PaymentMethod   *string         `gorm:"size:50" json:"payment_method"`
	Status          InvoiceStatus   `gorm:"size:20;not null;default:'pending'" json:"status"`
	SaleDate        time.Time       `gorm:"index;not null" json:"sale_date"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedBy       int             `gorm:"default:0" json:"created_by"`
	Items           []*SaleItem     `gorm:"foreignKey:SaleId" json:"items,omitempty"`
	Payments        []*Payment      `gorm:"foreignKey:SaleId" json:"payments,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	SaleId        int             `gorm:"index;not null" json:"sale_id"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	ProductUnitId *int            `json:"product_unit_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
	BaseQuantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"base_quantity"`
	Note          string          `gorm:"size:255" json:"note"`
}

type NewSale struct {
	CustomerId    *int             `json:"customer_id"`
	SaleType      InvoiceType      `json:"sale_type" validate:"required,oneof=cash credit"`
	Currency      Currency         `json:"currency" validate:"required,oneof=IQD USD"`
	PaidAmount    utils.Amount     `json:"paid_amount"`
	PaymentMethod *string          `json:"payment_method" validate:"omitempty,max=50"`
	SaleDate      *time.Time       `json:"sale_date"`
	Notes         string           `json:"notes"`
	Items         []NewInvoiceItem `json:"items" validate:"required,min=1,dive"`
}

func (s *Sale) state() *invoiceState {
	return &invoiceState{
		Kind:      PartyTypeCustomer,
		ID:        s.ID,
		Number:    s.InvoiceNumber,
		PartyId:   s.CustomerId,
		Type:      s.SaleType,
		Status:    s.Status,
		Currency:  s.Currency,
		Total:     s.TotalAmount,
		Paid:      s.PaidAmount,
		Remaining: s.RemainingAmount,
		Date:      s.SaleDate,
	}
}

func (s *Sale) party() PartyRef {
	return partyFromPtr(PartyTypeCustomer, s.CustomerId)
}

func (input *NewSale) party() PartyRef {
	return partyFromPtr(PartyTypeCustomer, input.CustomerId)
}

func (input *NewSale) terms() invoiceTerms {
	return invoiceTerms{
		Kind:          PartyTypeCustomer,
		Party:         input.party(),
		Type:          input.SaleType,
		Currency:      input.Currency,
		Paid:          input.PaidAmount.Decimal,
		PaymentMethod: input.PaymentMethod,
		Items:         input.Items,
	}
}

func (input *NewSale) validate() (*invoiceFigures, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	return computeInvoice(input.terms())
}

func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	figures, err := input.validate()
	if err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var saleId int
	err = runLedgerTx(ctx, "CreateSale", []PartyRef{input.party()}, func(tx *gorm.DB) error {
		balances := NewBalanceEngine(tx)
		if err := lockParty(balances, input.party()); err != nil {
			return err
		}
		seqNo, err := utils.GetSequence[Sale](ctx, tx)
		if err != nil {
			return err
		}
		sale := Sale{
			InvoiceNumber: invoiceNumber("S", seqNo),
			SequenceNo:    seqNo,
			CreatedBy:     userId,
		}
		fillSale(&sale, input, figures)
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}
		saleId = sale.ID
		return postSale(ctx, tx, balances, &sale, input, figures, userId)
	})
	if err != nil {
		return nil, err
	}
	return GetSale(ctx, saleId)
}

// UpdateSale replaces the sale's items and terms. Every effect of the old
// version is reversed before the new version is posted. Currency is fixed
// at creation.
func UpdateSale(ctx context.Context, id int, input *NewSale) (*Sale, error) {
	figures, err := input.validate()
	if err != nil {
		return nil, err
	}
	existing, err := utils.FetchModel[Sale](ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "sale")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	err = runLedgerTx(ctx, "UpdateSale", []PartyRef{existing.party(), input.party()}, func(tx *gorm.DB) error {
		sale, err := utils.FetchModelForUpdate[Sale](tx, id)
		if err != nil {
			return notFoundAs(err, "sale")
		}
		if sale.Currency != input.Currency {
			return NewFieldError("currency", "cannot be changed after the invoice is created")
		}
		balances := NewBalanceEngine(tx)
		if err := lockParty(balances, sale.party()); err != nil {
			return err
		}
		if err := lockParty(balances, input.party()); err != nil {
			return err
		}
		if err := ensureNoDistributedShares(tx, PartyTypeCustomer, sale.ID, sale.InvoiceNumber); err != nil {
			return err
		}

		if _, err := unpostSale(ctx, tx, balances, sale); err != nil {
			return err
		}

		fillSale(sale, input, figures)
		if err := tx.Model(sale).Select("customer_id", "sale_type", "currency", "total_amount", "paid_amount",
			"remaining_amount", "payment_method", "status", "sale_date", "notes", "updated_at").Updates(sale).Error; err != nil {
			return err
		}
		return postSale(ctx, tx, balances, sale, input, figures, userId)
	})
	if err != nil {
		return nil, err
	}
	return GetSale(ctx, id)
}

func DeleteSale(ctx context.Context, id int) (*Sale, error) {
	existing, err := GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	err = runLedgerTx(ctx, "DeleteSale", []PartyRef{existing.party()}, func(tx *gorm.DB) error {
		sale, err := utils.FetchModelForUpdate[Sale](tx, id)
		if err != nil {
			return notFoundAs(err, "sale")
		}
		if err := ensureNoDistributedShares(tx, PartyTypeCustomer, sale.ID, sale.InvoiceNumber); err != nil {
			return err
		}
		_, err = deleteSaleTx(ctx, tx, NewBalanceEngine(tx), sale)
		return err
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// BulkDeleteSales deletes every listed sale or none. Any sale with a payment
// blocks the whole batch.
func BulkDeleteSales(ctx context.Context, ids []int) (*BulkDeleteSummary, error) {
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return nil, NewFieldError("ids", "is required")
	}
	var existing []*Sale
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&existing).Error; err != nil {
		return nil, err
	}
	parties := make([]PartyRef, 0, len(existing))
	for _, s := range existing {
		parties = append(parties, s.party())
	}

	summary := newBulkDeleteSummary()
	err := runLedgerTx(ctx, "BulkDeleteSales", parties, func(tx *gorm.DB) error {
		var sales []*Sale
		if err := tx.Clauses(lockForUpdate).Where("id IN ?", ids).Order("id ASC").Find(&sales).Error; err != nil {
			return err
		}
		if len(sales) != len(ids) {
			return NewNotFoundError("one or more sales")
		}
		numbers := make(map[int]string, len(sales))
		for _, s := range sales {
			numbers[s.ID] = s.InvoiceNumber
		}
		blocked, err := blockedByPayments(tx, PartyTypeCustomer, numbers)
		if err != nil {
			return err
		}
		if len(blocked) > 0 {
			return NewBusinessError("sales %s have payments; delete them individually", strings.Join(blocked, ", "))
		}

		balances := NewBalanceEngine(tx)
		for _, sale := range sales {
			deletion, err := deleteSaleTx(ctx, tx, balances, sale)
			if err != nil {
				return err
			}
			summary.add(sale.InvoiceNumber, deletion)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	sale, err := utils.FetchModel[Sale](ctx, id, "Items", "Payments")
	if err != nil {
		return nil, notFoundAs(err, "sale")
	}
	return sale, nil
}

func fillSale(sale *Sale, input *NewSale, f *invoiceFigures) {
	sale.CustomerId = input.party().ptr()
	sale.SaleType = f.Type
	sale.Currency = input.Currency
	sale.TotalAmount = f.Total
	sale.PaidAmount = f.Paid
	sale.RemainingAmount = f.Remaining
	sale.PaymentMethod = f.PaymentMethod
	sale.Status = f.Status
	if input.SaleDate != nil || sale.SaleDate.IsZero() {
		sale.SaleDate = invoiceDate(input.SaleDate)
	}
	sale.Notes = input.Notes
}

// postSale writes items, takes stock, adds debt and records the checkout payment.
func postSale(ctx context.Context, tx *gorm.DB, balances *BalanceEngine, sale *Sale, input *NewSale, f *invoiceFigures, userId int) error {
	bases, err := applyStock(ctx, tx, PartyTypeCustomer, input.Items)
	if err != nil {
		return err
	}
	items := make([]*SaleItem, len(input.Items))
	for i, item := range input.Items {
		items[i] = &SaleItem{
			SaleId:        sale.ID,
			ProductId:     item.ProductId,
			ProductUnitId: item.ProductUnitId,
			Quantity:      item.Quantity.Decimal,
			UnitPrice:     item.UnitPrice.Decimal,
			TotalPrice:    f.LineTotals[i],
			BaseQuantity:  bases[i],
			Note:          item.Note,
		}
	}
	if err := tx.Create(&items).Error; err != nil {
		return err
	}
	if err := postDebt(balances, sale.party(), sale.SaleType, NewMoney(sale.Currency, sale.RemainingAmount)); err != nil {
		return err
	}
	return recordInvoicePayment(tx, balances, sale.state(), f, userId)
}

// unpostSale reverses postSale for the stored version of sale: stock back,
// checkout/targeted payments' advance effects undone and removed, items
// removed, remaining debt taken off the party.
func unpostSale(ctx context.Context, tx *gorm.DB, balances *BalanceEngine, sale *Sale) (invoiceDeletion, error) {
	d := invoiceDeletion{Currency: sale.Currency}
	var items []*SaleItem
	if err := tx.Where("sale_id = ?", sale.ID).Find(&items).Error; err != nil {
		return d, err
	}
	lines := make([]postedLine, len(items))
	for i, item := range items {
		lines[i] = postedLine{ProductId: item.ProductId, BaseQuantity: item.BaseQuantity}
	}
	restored, err := restoreStock(ctx, tx, PartyTypeCustomer, lines)
	if err != nil {
		return d, err
	}
	d.StockRestored = restored

	returned, err := unpostInvoicePayments(tx, balances, PartyTypeCustomer, sale.ID)
	if err != nil {
		return d, err
	}
	d.AdvanceReturned = returned

	if err := tx.Where("sale_id = ?", sale.ID).Delete(&SaleItem{}).Error; err != nil {
		return d, err
	}

	remaining := NewMoney(sale.Currency, sale.RemainingAmount)
	if err := unpostDebt(balances, sale.party(), sale.SaleType, remaining); err != nil {
		return d, err
	}
	if sale.party().IsSet() && sale.SaleType == InvoiceTypeCredit {
		d.DebtReduced = positiveOrZero(sale.RemainingAmount)
	}
	return d, nil
}

func deleteSaleTx(ctx context.Context, tx *gorm.DB, balances *BalanceEngine, sale *Sale) (invoiceDeletion, error) {
	d, err := unpostSale(ctx, tx, balances, sale)
	if err != nil {
		return d, err
	}
	if err := tx.Delete(sale).Error; err != nil {
		return d, err
	}
	return d, nil
}
