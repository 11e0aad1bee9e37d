package models_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupLedger gives each test a fresh in-memory database and an acting user.
func setupLedger(t *testing.T) context.Context {
	t.Helper()
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("EXACT_DISTRIBUTED_REVERSAL", "")

	db, err := config.ConnectSQLite("")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	config.SetDB(db)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	return utils.SetUserNameInContext(ctx, "Cashier")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amt(v int64) utils.Amount {
	return utils.AmountFromInt(v)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func ptr[T any](v T) *T {
	return &v
}

func seedProduct(t *testing.T, ctx context.Context, name string, qty int64) *models.Product {
	t.Helper()
	p, err := models.CreateProduct(ctx, &models.NewProduct{Name: name, Quantity: amt(qty)})
	require.NoError(t, err)
	return p
}

func seedCustomer(t *testing.T, ctx context.Context, name string) *models.Customer {
	t.Helper()
	c, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: name})
	require.NoError(t, err)
	return c
}

func seedSupplier(t *testing.T, ctx context.Context, name string) *models.Supplier {
	t.Helper()
	s, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: name})
	require.NoError(t, err)
	return s
}

func customer(t *testing.T, ctx context.Context, id int) *models.Customer {
	t.Helper()
	c, err := models.GetCustomer(ctx, id)
	require.NoError(t, err)
	return c
}

func supplier(t *testing.T, ctx context.Context, id int) *models.Supplier {
	t.Helper()
	s, err := models.GetSupplier(ctx, id)
	require.NoError(t, err)
	return s
}

func stockOf(t *testing.T, ctx context.Context, productId int) decimal.Decimal {
	t.Helper()
	p, err := models.GetProduct(ctx, productId)
	require.NoError(t, err)
	return p.Quantity
}

func item(productId int, qty, price int64) models.NewInvoiceItem {
	return models.NewInvoiceItem{ProductId: productId, Quantity: amt(qty), UnitPrice: amt(price)}
}

// creditSale sells qty 1 of productId at price to customerId on credit.
func creditSale(t *testing.T, ctx context.Context, customerId, productId int, price int64, date time.Time) *models.Sale {
	t.Helper()
	sale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId: ptr(customerId),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyIQD,
		SaleDate:   &date,
		Items:      []models.NewInvoiceItem{item(productId, 1, price)},
	})
	require.NoError(t, err)
	return sale
}

func countWhere[T any](t *testing.T, ctx context.Context, cond string, args ...interface{}) int64 {
	t.Helper()
	n, err := utils.ResourceCountWhere[T](ctx, cond, args...)
	require.NoError(t, err)
	return n
}
