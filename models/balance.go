package models

import (
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BalanceEngine is the only code path that changes customer / supplier
// counters. It works inside the caller's transaction; every mutation is an
// atomic column increment so concurrent writers cannot lose updates.
//
// There is no floor: a mutation that takes a counter below zero is applied
// and logged as a warning.
type BalanceEngine struct {
	tx     *gorm.DB
	logger *logrus.Logger
}

func NewBalanceEngine(tx *gorm.DB) *BalanceEngine {
	return &BalanceEngine{tx: tx, logger: config.GetLogger()}
}

// Ledger reads the party row under FOR UPDATE.
func (e *BalanceEngine) Ledger(party PartyRef) (Ledger, error) {
	switch party.Type {
	case PartyTypeCustomer:
		customer, err := utils.FetchModelForUpdate[Customer](e.tx, party.ID)
		if err != nil {
			return Ledger{}, notFoundAs(err, "customer")
		}
		return customer.Ledger(), nil
	case PartyTypeSupplier:
		supplier, err := utils.FetchModelForUpdate[Supplier](e.tx, party.ID)
		if err != nil {
			return Ledger{}, notFoundAs(err, "supplier")
		}
		return supplier.Ledger(), nil
	}
	return Ledger{}, NewFieldError("payment_type", "must be customer or supplier")
}

func (e *BalanceEngine) IncreaseDebt(party PartyRef, m Money) error {
	return e.adjust(party, debtColumn(m.Currency), m.Currency, m.Amount)
}

func (e *BalanceEngine) DecreaseDebt(party PartyRef, m Money) error {
	return e.adjust(party, debtColumn(m.Currency), m.Currency, m.Amount.Neg())
}

func (e *BalanceEngine) IncreaseAdvance(customerId int, m Money) error {
	return e.adjust(CustomerParty(customerId), advanceColumn(m.Currency), m.Currency, m.Amount)
}

func (e *BalanceEngine) DecreaseAdvance(customerId int, m Money) error {
	return e.adjust(CustomerParty(customerId), advanceColumn(m.Currency), m.Currency, m.Amount.Neg())
}

func (e *BalanceEngine) adjust(party PartyRef, column string, currency Currency, delta decimal.Decimal) error {
	if delta.IsZero() || !party.IsSet() {
		return nil
	}
	if !currency.IsValid() {
		return NewFieldError("currency", "must be one of: IQD USD")
	}

	if delta.IsNegative() {
		var row struct {
			CurrentValue decimal.Decimal
		}
		if err := e.tx.Table(party.table()).Select(column+" AS current_value").Where("id = ?", party.ID).Scan(&row).Error; err != nil {
			return err
		}
		current := row.CurrentValue
		if current.Add(delta).IsNegative() {
			e.logger.WithFields(logrus.Fields{
				"module":  "BalanceEngine",
				"party":   party.String(),
				"column":  column,
				"current": current.String(),
				"delta":   delta.String(),
			}).Warn("balance counter going below zero")
		}
	}

	res := e.tx.Table(party.table()).Where("id = ?", party.ID).Updates(map[string]interface{}{
		column:       gorm.Expr(column+" + ?", delta),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NewNotFoundError(string(party.Type))
	}
	return nil
}
