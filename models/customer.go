package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer balances: Balance* is debt owed to the business,
// NegativeBalance* is advance (prepaid credit) held by the customer.
// Both are mutated only through BalanceEngine.
type Customer struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	Name               string          `gorm:"size:100;not null" json:"name"`
	Phone              string          `gorm:"size:20" json:"phone"`
	Address            string          `gorm:"size:255" json:"address"`
	Notes              string          `gorm:"type:text" json:"notes"`
	BalanceIqd         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance_iqd"`
	BalanceUsd         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance_usd"`
	NegativeBalanceIqd decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"negative_balance_iqd"`
	NegativeBalanceUsd decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"negative_balance_usd"`
	CreatedBy          int             `gorm:"default:0" json:"created_by"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"max=20"`
	Address string `json:"address" validate:"max=255"`
	Notes   string `json:"notes"`
}

func (c *Customer) Ledger() Ledger {
	l := NewLedger()
	l.Debt[CurrencyIQD] = c.BalanceIqd
	l.Debt[CurrencyUSD] = c.BalanceUsd
	l.Advance[CurrencyIQD] = c.NegativeBalanceIqd
	l.Advance[CurrencyUSD] = c.NegativeBalanceUsd
	return l
}

func (input *NewCustomer) validate() error {
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

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	customer := Customer{
		Name:      input.Name,
		Phone:     input.Phone,
		Address:   input.Address,
		Notes:     input.Notes,
		CreatedBy: userId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		config.LogError(config.GetLogger(), "Customer", "CreateCustomer", "create customer", input, err)
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer changes contact fields only; balances are never edited directly.
func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	db := config.GetDB()
	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "customer")
	}
	if err := db.WithContext(ctx).Model(customer).Updates(map[string]interface{}{
		"name":    input.Name,
		"phone":   input.Phone,
		"address": input.Address,
		"notes":   input.Notes,
	}).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "customer")
	}
	return customer, nil
}

// DeleteCustomer refuses when the customer owns any sale or payment.
func DeleteCustomer(ctx context.Context, id int) (*Customer, error) {
	var customer *Customer
	err := runLedgerTx(ctx, "DeleteCustomer", []PartyRef{CustomerParty(id)}, func(tx *gorm.DB) error {
		var err error
		customer, err = utils.FetchModelForUpdate[Customer](tx, id)
		if err != nil {
			return notFoundAs(err, "customer")
		}
		sales, err := utils.ResourceCountWhereTx[Sale](tx, "customer_id = ?", id)
		if err != nil {
			return err
		}
		payments, err := utils.ResourceCountWhereTx[Payment](tx, "customer_id = ?", id)
		if err != nil {
			return err
		}
		if sales > 0 || payments > 0 {
			return NewBusinessError("customer %s has %d sales and %d payments and cannot be deleted", customer.Name, sales, payments)
		}
		return tx.Delete(customer).Error
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}
