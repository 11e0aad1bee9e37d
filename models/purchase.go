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

type Purchase struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InvoiceNumber   string          `gorm:"size:30;uniqueIndex;not null" json:"invoice_number"`
	SequenceNo      int64           `gorm:"index;not null" json:"sequence_no"`
	SupplierId      *int            `gorm:"index" json:"supplier_id"`
	PurchaseType    InvoiceType     `gorm:"size:10;not null" json:"purchase_type"`
	Currency        Currency        `gorm:"size:3;not null" json:"currency"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"remaining_amount"`
	PaymentMethod   *string         `gorm:"size:50" json:"payment_method"`
	Status          InvoiceStatus   `gorm:"size:20;not null;default:'pending'" json:"status"`
	PurchaseDate    time.Time       `gorm:"index;not null" json:"purchase_date"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedBy       int             `gorm:"default:0" json:"created_by"`
	Items           []*PurchaseItem `gorm:"foreignKey:PurchaseId" json:"items,omitempty"`
	Payments        []*Payment      `gorm:"foreignKey:PurchaseId" json:"payments,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	PurchaseId    int             `gorm:"index;not null" json:"purchase_id"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	ProductUnitId *int            `json:"product_unit_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
	BaseQuantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"base_quantity"`
	Note          string          `gorm:"size:255" json:"note"`
}

type NewPurchase struct {
	SupplierId    *int             `json:"supplier_id"`
	PurchaseType  InvoiceType      `json:"purchase_type" validate:"required,oneof=cash credit"`
	Currency      Currency         `json:"currency" validate:"required,oneof=IQD USD"`
	PaidAmount    utils.Amount     `json:"paid_amount"`
	PaymentMethod *string          `json:"payment_method" validate:"omitempty,max=50"`
	PurchaseDate  *time.Time       `json:"purchase_date"`
	Notes         string           `json:"notes"`
	Items         []NewInvoiceItem `json:"items" validate:"required,min=1,dive"`
}

func (p *Purchase) state() *invoiceState {
	return &invoiceState{
		Kind:      PartyTypeSupplier,
		ID:        p.ID,
		Number:    p.InvoiceNumber,
		PartyId:   p.SupplierId,
		Type:      p.PurchaseType,
		Status:    p.Status,
		Currency:  p.Currency,
		Total:     p.TotalAmount,
		Paid:      p.PaidAmount,
		Remaining: p.RemainingAmount,
		Date:      p.PurchaseDate,
	}
}

func (p *Purchase) party() PartyRef {
	return partyFromPtr(PartyTypeSupplier, p.SupplierId)
}

func (input *NewPurchase) party() PartyRef {
	return partyFromPtr(PartyTypeSupplier, input.SupplierId)
}

func (input *NewPurchase) validate() (*invoiceFigures, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	return computeInvoice(invoiceTerms{
		Kind:          PartyTypeSupplier,
		Party:         input.party(),
		Type:          input.PurchaseType,
		Currency:      input.Currency,
		Paid:          input.PaidAmount.Decimal,
		PaymentMethod: input.PaymentMethod,
		Items:         input.Items,
	})
}

// CreatePurchase stores the purchase, adds stock and posts the unpaid
// remainder to the supplier. Money handed over at purchase time is kept on
// the invoice only; no payment row is written.
func CreatePurchase(ctx context.Context, input *NewPurchase) (*Purchase, error) {
	figures, err := input.validate()
	if err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var purchaseId int
	err = runLedgerTx(ctx, "CreatePurchase", []PartyRef{input.party()}, func(tx *gorm.DB) error {
		balances := NewBalanceEngine(tx)
		if err := lockParty(balances, input.party()); err != nil {
			return err
		}
		seqNo, err := utils.GetSequence[Purchase](ctx, tx)
		if err != nil {
			return err
		}
		purchase := Purchase{
			InvoiceNumber: invoiceNumber("P", seqNo),
			SequenceNo:    seqNo,
			CreatedBy:     userId,
		}
		fillPurchase(&purchase, input, figures)
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}
		purchaseId = purchase.ID
		return postPurchase(ctx, tx, balances, &purchase, input, figures)
	})
	if err != nil {
		return nil, err
	}
	return GetPurchase(ctx, purchaseId)
}

func UpdatePurchase(ctx context.Context, id int, input *NewPurchase) (*Purchase, error) {
	figures, err := input.validate()
	if err != nil {
		return nil, err
	}
	existing, err := utils.FetchModel[Purchase](ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "purchase")
	}

	err = runLedgerTx(ctx, "UpdatePurchase", []PartyRef{existing.party(), input.party()}, func(tx *gorm.DB) error {
		purchase, err := utils.FetchModelForUpdate[Purchase](tx, id)
		if err != nil {
			return notFoundAs(err, "purchase")
		}
		if purchase.Currency != input.Currency {
			return NewFieldError("currency", "cannot be changed after the invoice is created")
		}
		balances := NewBalanceEngine(tx)
		if err := lockParty(balances, purchase.party()); err != nil {
			return err
		}
		if err := lockParty(balances, input.party()); err != nil {
			return err
		}
		if err := ensureNoDistributedShares(tx, PartyTypeSupplier, purchase.ID, purchase.InvoiceNumber); err != nil {
			return err
		}
		if _, err := unpostPurchase(ctx, tx, balances, purchase); err != nil {
			return err
		}

		fillPurchase(purchase, input, figures)
		if err := tx.Model(purchase).Select("supplier_id", "purchase_type", "currency", "total_amount", "paid_amount",
			"remaining_amount", "payment_method", "status", "purchase_date", "notes", "updated_at").Updates(purchase).Error; err != nil {
			return err
		}
		return postPurchase(ctx, tx, balances, purchase, input, figures)
	})
	if err != nil {
		return nil, err
	}
	return GetPurchase(ctx, id)
}

func DeletePurchase(ctx context.Context, id int) (*Purchase, error) {
	existing, err := GetPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	err = runLedgerTx(ctx, "DeletePurchase", []PartyRef{existing.party()}, func(tx *gorm.DB) error {
		purchase, err := utils.FetchModelForUpdate[Purchase](tx, id)
		if err != nil {
			return notFoundAs(err, "purchase")
		}
		if err := ensureNoDistributedShares(tx, PartyTypeSupplier, purchase.ID, purchase.InvoiceNumber); err != nil {
			return err
		}
		_, err = deletePurchaseTx(ctx, tx, NewBalanceEngine(tx), purchase)
		return err
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func BulkDeletePurchases(ctx context.Context, ids []int) (*BulkDeleteSummary, error) {
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return nil, NewFieldError("ids", "is required")
	}
	var existing []*Purchase
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&existing).Error; err != nil {
		return nil, err
	}
	parties := make([]PartyRef, 0, len(existing))
	for _, p := range existing {
		parties = append(parties, p.party())
	}

	summary := newBulkDeleteSummary()
	err := runLedgerTx(ctx, "BulkDeletePurchases", parties, func(tx *gorm.DB) error {
		var purchases []*Purchase
		if err := tx.Clauses(lockForUpdate).Where("id IN ?", ids).Order("id ASC").Find(&purchases).Error; err != nil {
			return err
		}
		if len(purchases) != len(ids) {
			return NewNotFoundError("one or more purchases")
		}
		numbers := make(map[int]string, len(purchases))
		for _, p := range purchases {
			numbers[p.ID] = p.InvoiceNumber
		}
		blocked, err := blockedByPayments(tx, PartyTypeSupplier, numbers)
		if err != nil {
			return err
		}
		if len(blocked) > 0 {
			return NewBusinessError("purchases %s have payments; delete them individually", strings.Join(blocked, ", "))
		}

		balances := NewBalanceEngine(tx)
		for _, purchase := range purchases {
			deletion, err := deletePurchaseTx(ctx, tx, balances, purchase)
			if err != nil {
				return err
			}
			summary.add(purchase.InvoiceNumber, deletion)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	purchase, err := utils.FetchModel[Purchase](ctx, id, "Items", "Payments")
	if err != nil {
		return nil, notFoundAs(err, "purchase")
	}
	return purchase, nil
}

func fillPurchase(purchase *Purchase, input *NewPurchase, f *invoiceFigures) {
	purchase.SupplierId = input.party().ptr()
	purchase.PurchaseType = f.Type
	purchase.Currency = input.Currency
	purchase.TotalAmount = f.Total
	purchase.PaidAmount = f.Paid
	purchase.RemainingAmount = f.Remaining
	purchase.PaymentMethod = f.PaymentMethod
	purchase.Status = f.Status
	if input.PurchaseDate != nil || purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = invoiceDate(input.PurchaseDate)
	}
	purchase.Notes = input.Notes
}

func postPurchase(ctx context.Context, tx *gorm.DB, balances *BalanceEngine, purchase *Purchase, input *NewPurchase, f *invoiceFigures) error {
	bases, err := applyStock(ctx, tx, PartyTypeSupplier, input.Items)
	if err != nil {
		return err
	}
	items := make([]*PurchaseItem, len(input.Items))
	for i, item := range input.Items {
		items[i] = &PurchaseItem{
			PurchaseId:    purchase.ID,
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
	return postDebt(balances, purchase.party(), purchase.PurchaseType, NewMoney(purchase.Currency, purchase.RemainingAmount))
}

func unpostPurchase(ctx context.Context, tx *gorm.DB, balances *BalanceEngine, purchase *Purchase) (invoiceDeletion, error) {
	d := invoiceDeletion{Currency: purchase.Currency}
	var items []*PurchaseItem
	if err := tx.Where("purchase_id = ?", purchase.ID).Find(&items).Error; err != nil {
		return d, err
	}
	lines := make([]postedLine, len(items))
	for i, item := range items {
		lines[i] = postedLine{ProductId: item.ProductId, BaseQuantity: item.BaseQuantity}
	}
	restored, err := restoreStock(ctx, tx, PartyTypeSupplier, lines)
	if err != nil {
		return d, err
	}
	d.StockRestored = restored

	if _, err := unpostInvoicePayments(tx, balances, PartyTypeSupplier, purchase.ID); err != nil {
		return d, err
	}
	if err := tx.Where("purchase_id = ?", purchase.ID).Delete(&PurchaseItem{}).Error; err != nil {
		return d, err
	}

	if err := unpostDebt(balances, purchase.party(), purchase.PurchaseType, NewMoney(purchase.Currency, purchase.RemainingAmount)); err != nil {
		return d, err
	}
	if purchase.party().IsSet() && purchase.PurchaseType == InvoiceTypeCredit {
		d.DebtReduced = positiveOrZero(purchase.RemainingAmount)
	}
	return d, nil
}

func deletePurchaseTx(ctx context.Context, tx *gorm.DB, balances *BalanceEngine, purchase *Purchase) (invoiceDeletion, error) {
	d, err := unpostPurchase(ctx, tx, balances, purchase)
	if err != nil {
		return d, err
	}
	if err := tx.Delete(purchase).Error; err != nil {
		return d, err
	}
	return d, nil
}
