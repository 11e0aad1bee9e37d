package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Supplier balances are debt owed by the business. Suppliers hold no advance.
type Supplier struct {
	ID         int             `gorm:"primary_key" json:"id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Phone      string          `gorm:"size:20" json:"phone"`
	Address    string          `gorm:"size:255" json:"address"`
	Notes      string          `gorm:"type:text" json:"notes"`
	BalanceIqd decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance_iqd"`
	BalanceUsd decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance_usd"`
	CreatedBy  int             `gorm:"default:0" json:"created_by"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"max=20"`
	Address string `json:"address" validate:"max=255"`
	Notes   string `json:"notes"`
}

func (s *Supplier) Ledger() Ledger {
	l := NewLedger()
	l.Debt[CurrencyIQD] = s.BalanceIqd
	l.Debt[CurrencyUSD] = s.BalanceUsd
	return l
}

func (input *NewSupplier) validate() error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return NewFieldError("phone", "is not a valid phone number")
		}
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	supplier := Supplier{
		Name:      input.Name,
		Phone:     input.Phone,
		Address:   input.Address,
		Notes:     input.Notes,
		CreatedBy: userId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		config.LogError(config.GetLogger(), "Supplier", "CreateSupplier", "create supplier", input, err)
		return nil, err
	}
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	db := config.GetDB()
	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "supplier")
	}
	if err := db.WithContext(ctx).Model(supplier).Updates(map[string]interface{}{
		"name":    input.Name,
		"phone":   input.Phone,
		"address": input.Address,
		"notes":   input.Notes,
	}).Error; err != nil {
		return nil, err
	}
	return supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "supplier")
	}
	return supplier, nil
}

func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	var supplier *Supplier
	err := runLedgerTx(ctx, "DeleteSupplier", []PartyRef{SupplierParty(id)}, func(tx *gorm.DB) error {
		var err error
		supplier, err = utils.FetchModelForUpdate[Supplier](tx, id)
		if err != nil {
			return notFoundAs(err, "supplier")
		}
		purchases, err := utils.ResourceCountWhereTx[Purchase](tx, "supplier_id = ?", id)
		if err != nil {
			return err
		}
		payments, err := utils.ResourceCountWhereTx[Payment](tx, "supplier_id = ?", id)
		if err != nil {
			return err
		}
		if purchases > 0 || payments > 0 {
			return NewBusinessError("supplier %s has %d purchases and %d payments and cannot be deleted", supplier.Name, purchases, payments)
		}
		return tx.Delete(supplier).Error
	})
	if err != nil {
		return nil, err
	}
	return supplier, nil
}
