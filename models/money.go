package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayIqdPerUsd is an approximate rate for showing combined totals.
// It is never used to move balances between currencies.
var DisplayIqdPerUsd = decimal.NewFromInt(1450)

type Money struct {
	Currency Currency        `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

func NewMoney(currency Currency, amount decimal.Decimal) Money {
	return Money{Currency: currency, Amount: amount}
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

func (m Money) Neg() Money {
	return Money{Currency: m.Currency, Amount: m.Amount.Neg()}
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// Ledger is a party's running balances. Debt is owed to the business by a
// customer (or by the business to a supplier); Advance is customer credit.
type Ledger struct {
	Debt    map[Currency]decimal.Decimal `json:"debt"`
	Advance map[Currency]decimal.Decimal `json:"advance"`
}

func NewLedger() Ledger {
	l := Ledger{
		Debt:    make(map[Currency]decimal.Decimal, len(Currencies)),
		Advance: make(map[Currency]decimal.Decimal, len(Currencies)),
	}
	for _, c := range Currencies {
		l.Debt[c] = decimal.Zero
		l.Advance[c] = decimal.Zero
	}
	return l
}

func (l Ledger) DebtIn(c Currency) decimal.Decimal {
	return l.Debt[c]
}

func (l Ledger) AdvanceIn(c Currency) decimal.Decimal {
	return l.Advance[c]
}

// ApproxIqd folds a per-currency map into IQD for display.
func ApproxIqd(values map[Currency]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for c, v := range values {
		if c == CurrencyUSD {
			total = total.Add(v.Mul(DisplayIqdPerUsd))
		} else {
			total = total.Add(v)
		}
	}
	return total
}

// column names on customers / suppliers
func debtColumn(c Currency) string {
	return "balance_" + strings.ToLower(string(c))
}

func advanceColumn(c Currency) string {
	return "negative_balance_" + strings.ToLower(string(c))
}

func minDecimal(values ...decimal.Decimal) decimal.Decimal {
	m := values[0]
	for _, v := range values[1:] {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}

func positiveOrZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func formatAmount(d decimal.Decimal, c Currency) string {
	return d.StringFixed(2) + " " + string(c)
}
