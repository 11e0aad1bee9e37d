package models_test

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSale_CashPaidInFull(t *testing.T) {
	ctx := setupLedger(t)
	cement := seedProduct(t, ctx, "Cement 50kg", 10)
	sand := seedProduct(t, ctx, "Sand", 5)
	cust := seedCustomer(t, ctx, "Ali")

	sale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId:    ptr(cust.ID),
		SaleType:      models.InvoiceTypeCash,
		Currency:      models.CurrencyIQD,
		PaidAmount:    amt(3500),
		PaymentMethod: ptr("cash"),
		Items:         []models.NewInvoiceItem{item(cement.ID, 3, 1000), item(sand.ID, 1, 500)},
	})
	require.NoError(t, err)

	assert.Equal(t, "S-1", sale.InvoiceNumber)
	assertDec(t, "3500", sale.TotalAmount)
	assertDec(t, "0", sale.RemainingAmount)
	assert.Equal(t, models.InvoiceStatusCompleted, sale.Status)
	assert.Equal(t, 1, sale.CreatedBy)
	assertDec(t, "7", stockOf(t, ctx, cement.ID))
	assertDec(t, "4", stockOf(t, ctx, sand.ID))
	assertDec(t, "0", customer(t, ctx, cust.ID).BalanceIqd)

	require.Len(t, sale.Payments, 1)
	assertDec(t, "3500", sale.Payments[0].DebtReduction)
	assertDec(t, "0", sale.Payments[0].ExcessAmount)
}

func TestCreateSale_CreditPartialPayment(t *testing.T) {
	ctx := setupLedger(t)
	cement := seedProduct(t, ctx, "Cement 50kg", 10)
	sand := seedProduct(t, ctx, "Sand", 5)
	cust := seedCustomer(t, ctx, "Ali")

	sale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId: ptr(cust.ID),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyIQD,
		PaidAmount: amt(2000),
		Items:      []models.NewInvoiceItem{item(cement.ID, 3, 1000), item(sand.ID, 1, 500)},
	})
	require.NoError(t, err)

	assertDec(t, "1500", sale.RemainingAmount)
	assert.Equal(t, models.InvoiceTypeCredit, sale.SaleType)
	assert.Nil(t, sale.PaymentMethod)
	assertDec(t, "1500", customer(t, ctx, cust.ID).BalanceIqd)
	require.Len(t, sale.Payments, 1)
	assertDec(t, "2000", sale.Payments[0].DebtReduction)
}

func TestCreateSale_CreditPaidInFullIsSettled(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Rebar", 10)
	cust := seedCustomer(t, ctx, "Ali")

	sale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId: ptr(cust.ID),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyUSD,
		PaidAmount: amt(40),
		Items:      []models.NewInvoiceItem{item(p.ID, 2, 20)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceTypeCash, sale.SaleType)
	assert.Equal(t, models.InvoiceStatusCompleted, sale.Status)
	assertDec(t, "0", customer(t, ctx, cust.ID).BalanceUsd)
}

func TestCreateSale_CashOverpaymentBecomesAdvance(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Tiles", 100)
	cust := seedCustomer(t, ctx, "Ali")

	sale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId:    ptr(cust.ID),
		SaleType:      models.InvoiceTypeCash,
		Currency:      models.CurrencyIQD,
		PaidAmount:    amt(5000),
		PaymentMethod: ptr("cash"),
		Items:         []models.NewInvoiceItem{item(p.ID, 4, 1000)},
	})
	require.NoError(t, err)
	assertDec(t, "4000", sale.PaidAmount)
	c := customer(t, ctx, cust.ID)
	assertDec(t, "1000", c.NegativeBalanceIqd)
	assertDec(t, "0", c.BalanceIqd)
	require.Len(t, sale.Payments, 1)
	assertDec(t, "1000", sale.Payments[0].ExcessAmount)
}

func TestCreateSale_Validation(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Tiles", 100)
	cust := seedCustomer(t, ctx, "Ali")

	cases := []struct {
		name  string
		input models.NewSale
		field string
	}{
		{"no items", models.NewSale{SaleType: models.InvoiceTypeCash, Currency: models.CurrencyIQD, PaidAmount: amt(1), PaymentMethod: ptr("cash")}, "items"},
		{"bad currency", models.NewSale{SaleType: models.InvoiceTypeCash, Currency: "EUR", PaidAmount: amt(1000), PaymentMethod: ptr("cash"), Items: []models.NewInvoiceItem{item(p.ID, 1, 1000)}}, "currency"},
		{"cash without method", models.NewSale{SaleType: models.InvoiceTypeCash, Currency: models.CurrencyIQD, PaidAmount: amt(1000), Items: []models.NewInvoiceItem{item(p.ID, 1, 1000)}}, "payment_method"},
		{"cash unpaid", models.NewSale{SaleType: models.InvoiceTypeCash, Currency: models.CurrencyIQD, PaymentMethod: ptr("cash"), Items: []models.NewInvoiceItem{item(p.ID, 1, 1000)}}, "paid_amount"},
		{"walk-in overpay", models.NewSale{SaleType: models.InvoiceTypeCash, Currency: models.CurrencyIQD, PaidAmount: amt(1500), PaymentMethod: ptr("cash"), Items: []models.NewInvoiceItem{item(p.ID, 1, 1000)}}, "paid_amount"},
		{"missing sale type", models.NewSale{CustomerId: ptr(cust.ID), Currency: models.CurrencyIQD, Items: []models.NewInvoiceItem{item(p.ID, 1, 1000)}}, "sale_type"},
		{"credit overpaid", models.NewSale{CustomerId: ptr(cust.ID), SaleType: models.InvoiceTypeCredit, Currency: models.CurrencyIQD, PaidAmount: amt(1500), Items: []models.NewInvoiceItem{item(p.ID, 1, 1000)}}, "paid_amount"},
		{"zero quantity", models.NewSale{CustomerId: ptr(cust.ID), SaleType: models.InvoiceTypeCredit, Currency: models.CurrencyIQD, Items: []models.NewInvoiceItem{item(p.ID, 0, 1000)}}, "items[0].quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := tc.input
			_, err := models.CreateSale(ctx, &input)
			require.Error(t, err)
			assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
			assert.Contains(t, models.FieldsOf(err), tc.field)
		})
	}
	assertDec(t, "100", stockOf(t, ctx, p.ID))
	assert.Zero(t, countWhere[models.Sale](t, ctx, "1 = 1"))
}

func TestCreateSale_CashPartialPaymentPostsNoDebt(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")

	sale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId:    ptr(cust.ID),
		SaleType:      models.InvoiceTypeCash,
		Currency:      models.CurrencyIQD,
		PaidAmount:    amt(2000),
		PaymentMethod: ptr("cash"),
		Items:         []models.NewInvoiceItem{item(p.ID, 1, 3500)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceTypeCash, sale.SaleType)
	assert.Equal(t, models.InvoiceStatusPending, sale.Status)
	assertDec(t, "2000", sale.PaidAmount)
	assertDec(t, "1500", sale.RemainingAmount)
	assertDec(t, "9", stockOf(t, ctx, p.ID))
	assertDec(t, "0", customer(t, ctx, cust.ID).BalanceIqd)

	// the remaining is not debt, so it cannot be paid off against the customer
	_, err = models.CreatePayment(ctx, &models.NewPayment{
		PaymentType: models.PartyTypeCustomer,
		CustomerId:  ptr(cust.ID),
		SaleId:      ptr(sale.ID),
		Currency:    models.CurrencyIQD,
		Amount:      amt(1500),
	})
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))

	_, err = models.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)
	assertDec(t, "10", stockOf(t, ctx, p.ID))
	assertDec(t, "0", customer(t, ctx, cust.ID).BalanceIqd)
}

func TestCreateSale_WalkInCashPartialPayment(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)

	sale, err := models.CreateSale(ctx, &models.NewSale{
		SaleType:      models.InvoiceTypeCash,
		Currency:      models.CurrencyIQD,
		PaidAmount:    amt(2000),
		PaymentMethod: ptr("cash"),
		Items:         []models.NewInvoiceItem{item(p.ID, 1, 3500)},
	})
	require.NoError(t, err)
	assertDec(t, "1500", sale.RemainingAmount)
	assert.Empty(t, sale.Payments)
}

func TestCreateSale_CreditWithoutCustomer(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)

	sale, err := models.CreateSale(ctx, &models.NewSale{
		SaleType: models.InvoiceTypeCredit,
		Currency: models.CurrencyUSD,
		Items:    []models.NewInvoiceItem{item(p.ID, 2, 40)},
	})
	require.NoError(t, err)
	assert.Nil(t, sale.CustomerId)
	assert.Equal(t, models.InvoiceTypeCredit, sale.SaleType)
	assertDec(t, "80", sale.RemainingAmount)
	assertDec(t, "8", stockOf(t, ctx, p.ID))

	summary, err := models.BulkDeleteSales(ctx, []int{sale.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deleted)
	assertDec(t, "0", summary.DebtReduced[models.CurrencyUSD])
	assertDec(t, "10", stockOf(t, ctx, p.ID))
}

func TestCreateSale_InsufficientStockRollsBack(t *testing.T) {
	ctx := setupLedger(t)
	cement := seedProduct(t, ctx, "Cement 50kg", 10)
	sand := seedProduct(t, ctx, "Sand", 2)
	cust := seedCustomer(t, ctx, "Ali")

	_, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId: ptr(cust.ID),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyIQD,
		Items:      []models.NewInvoiceItem{item(cement.ID, 3, 1000), item(sand.ID, 5, 500)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientStock))
	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Sand", stockErr.ProductName)
	assertDec(t, "2", stockErr.Available)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))

	assertDec(t, "10", stockOf(t, ctx, cement.ID))
	assertDec(t, "0", customer(t, ctx, cust.ID).BalanceIqd)
	assert.Zero(t, countWhere[models.Sale](t, ctx, "1 = 1"))
}

func TestCreateSale_ConvertsUnits(t *testing.T) {
	ctx := setupLedger(t)
	nails, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:     "Nails",
		Quantity: amt(24),
		Units:    []models.NewProductUnit{{Name: "box", ConversionFactor: amt(12)}},
	})
	require.NoError(t, err)
	box := nails.Units[0].ID

	available, err := models.GetAvailableQuantity(ctx, nails.ID, &box)
	require.NoError(t, err)
	assertDec(t, "2", available)

	_, err = models.CreateSale(ctx, &models.NewSale{
		SaleType:      models.InvoiceTypeCash,
		Currency:      models.CurrencyIQD,
		PaidAmount:    amt(6000),
		PaymentMethod: ptr("cash"),
		Items:         []models.NewInvoiceItem{{ProductId: nails.ID, ProductUnitId: &box, Quantity: amt(3), UnitPrice: amt(2000)}},
	})
	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "box", stockErr.UnitName)

	sale, err := models.CreateSale(ctx, &models.NewSale{
		SaleType:      models.InvoiceTypeCash,
		Currency:      models.CurrencyIQD,
		PaidAmount:    amt(4000),
		PaymentMethod: ptr("cash"),
		Items:         []models.NewInvoiceItem{{ProductId: nails.ID, ProductUnitId: &box, Quantity: amt(2), UnitPrice: amt(2000)}},
	})
	require.NoError(t, err)
	assertDec(t, "24", sale.Items[0].BaseQuantity)
	assertDec(t, "0", stockOf(t, ctx, nails.ID))
	// walk-in sale records no payment row
	assert.Empty(t, sale.Payments)
}

func TestDeleteSale_RoundTrip(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")

	sale := creditSale(t, ctx, cust.ID, p.ID, 2500, time.Now())
	assertDec(t, "2500", customer(t, ctx, cust.ID).BalanceIqd)
	assertDec(t, "9", stockOf(t, ctx, p.ID))

	_, err := models.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)
	assertDec(t, "0", customer(t, ctx, cust.ID).BalanceIqd)
	assertDec(t, "10", stockOf(t, ctx, p.ID))
	assert.Zero(t, countWhere[models.SaleItem](t, ctx, "sale_id = ?", sale.ID))

	_, err = models.GetSale(ctx, sale.ID)
	assert.Equal(t, models.ErrorKindNotFound, models.KindOf(err))
}

// Scenarios: credit sale with partial payment, targeted overpayment, then delete.
func TestSaleLifecycle_PartialThenTargetedThenDelete(t *testing.T) {
	ctx := setupLedger(t)
	cement := seedProduct(t, ctx, "Cement 50kg", 10)
	sand := seedProduct(t, ctx, "Sand", 5)
	cust := seedCustomer(t, ctx, "Ali")

	sale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId: ptr(cust.ID),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyIQD,
		PaidAmount: amt(2000),
		Items:      []models.NewInvoiceItem{item(cement.ID, 3, 1000), item(sand.ID, 1, 500)},
	})
	require.NoError(t, err)
	assertDec(t, "1500", customer(t, ctx, cust.ID).BalanceIqd)

	payment, err := models.CreatePayment(ctx, &models.NewPayment{
		PaymentType: models.PartyTypeCustomer,
		CustomerId:  ptr(cust.ID),
		SaleId:      ptr(sale.ID),
		Currency:    models.CurrencyIQD,
		Amount:      amt(2000),
	})
	require.NoError(t, err)
	assertDec(t, "1500", payment.DebtReduction)
	assertDec(t, "500", payment.ExcessAmount)

	settled, err := models.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assertDec(t, "0", settled.RemainingAmount)
	assert.Equal(t, models.InvoiceStatusCompleted, settled.Status)
	assert.Equal(t, models.InvoiceTypeCash, settled.SaleType)
	c := customer(t, ctx, cust.ID)
	assertDec(t, "0", c.BalanceIqd)
	assertDec(t, "500", c.NegativeBalanceIqd)

	_, err = models.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)
	assertDec(t, "10", stockOf(t, ctx, cement.ID))
	assertDec(t, "5", stockOf(t, ctx, sand.ID))
	c = customer(t, ctx, cust.ID)
	assertDec(t, "0", c.BalanceIqd)
	assertDec(t, "0", c.NegativeBalanceIqd)
	assert.Zero(t, countWhere[models.Payment](t, ctx, "sale_id = ?", sale.ID))
}

func TestUpdateSale_ReversesThenReapplies(t *testing.T) {
	ctx := setupLedger(t)
	cement := seedProduct(t, ctx, "Cement 50kg", 10)
	sand := seedProduct(t, ctx, "Sand", 10)
	cust := seedCustomer(t, ctx, "Ali")
	other := seedCustomer(t, ctx, "Omar")

	sale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId: ptr(cust.ID),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyIQD,
		PaidAmount: amt(500),
		Items:      []models.NewInvoiceItem{item(cement.ID, 3, 1000)},
	})
	require.NoError(t, err)
	assertDec(t, "2500", customer(t, ctx, cust.ID).BalanceIqd)

	updated, err := models.UpdateSale(ctx, sale.ID, &models.NewSale{
		CustomerId: ptr(other.ID),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyIQD,
		PaidAmount: amt(100),
		Items:      []models.NewInvoiceItem{item(sand.ID, 2, 200)},
	})
	require.NoError(t, err)
	assert.Equal(t, sale.InvoiceNumber, updated.InvoiceNumber)
	assertDec(t, "400", updated.TotalAmount)
	assertDec(t, "300", updated.RemainingAmount)
	require.Len(t, updated.Items, 1)
	require.Len(t, updated.Payments, 1)
	assertDec(t, "100", updated.Payments[0].Amount)

	assertDec(t, "10", stockOf(t, ctx, cement.ID))
	assertDec(t, "8", stockOf(t, ctx, sand.ID))
	assertDec(t, "0", customer(t, ctx, cust.ID).BalanceIqd)
	assertDec(t, "300", customer(t, ctx, other.ID).BalanceIqd)
}

func TestUpdateSale_CurrencyIsImmutable(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	sale := creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	_, err := models.UpdateSale(ctx, sale.ID, &models.NewSale{
		CustomerId: ptr(cust.ID),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyUSD,
		Items:      []models.NewInvoiceItem{item(p.ID, 1, 10)},
	})
	require.Error(t, err)
	assert.Contains(t, models.FieldsOf(err), "currency")
	assertDec(t, "1000", customer(t, ctx, cust.ID).BalanceIqd)
	assertDec(t, "9", stockOf(t, ctx, p.ID))
}

func TestUpdateSale_BlockedByDistributedShares(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	sale := creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	_, err := models.CreatePayment(ctx, &models.NewPayment{
		PaymentType: models.PartyTypeCustomer,
		CustomerId:  ptr(cust.ID),
		Currency:    models.CurrencyIQD,
		Amount:      amt(400),
	})
	require.NoError(t, err)

	_, err = models.UpdateSale(ctx, sale.ID, &models.NewSale{
		CustomerId: ptr(cust.ID),
		SaleType:   models.InvoiceTypeCredit,
		Currency:   models.CurrencyIQD,
		Items:      []models.NewInvoiceItem{item(p.ID, 1, 2000)},
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))

	_, err = models.DeleteSale(ctx, sale.ID)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))
	assertDec(t, "600", customer(t, ctx, cust.ID).BalanceIqd)
}

func TestBulkDeleteSales(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	now := time.Now()
	s1 := creditSale(t, ctx, cust.ID, p.ID, 1000, now)
	s2 := creditSale(t, ctx, cust.ID, p.ID, 2000, now)
	s3 := creditSale(t, ctx, cust.ID, p.ID, 3000, now)

	_, err := models.CreatePayment(ctx, &models.NewPayment{
		PaymentType: models.PartyTypeCustomer,
		CustomerId:  ptr(cust.ID),
		SaleId:      ptr(s3.ID),
		Currency:    models.CurrencyIQD,
		Amount:      amt(100),
	})
	require.NoError(t, err)

	_, err = models.BulkDeleteSales(ctx, []int{s1.ID, s2.ID, s3.ID})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))
	assert.Contains(t, err.Error(), s3.InvoiceNumber)
	assert.NotContains(t, err.Error(), s1.InvoiceNumber+",")
	assertDec(t, "7", stockOf(t, ctx, p.ID))

	summary, err := models.BulkDeleteSales(ctx, []int{s1.ID, s2.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Deleted)
	assertDec(t, "2", summary.StockRestored)
	assertDec(t, "3000", summary.DebtReduced[models.CurrencyIQD])
	assert.Contains(t, summary.Message(), "2 invoices deleted")

	assertDec(t, "2900", customer(t, ctx, cust.ID).BalanceIqd)
	assertDec(t, "9", stockOf(t, ctx, p.ID))
}

func TestDeleteCustomer_GuardedByTransactions(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	_, err := models.DeleteCustomer(ctx, cust.ID)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))

	idle := seedCustomer(t, ctx, "Idle")
	_, err = models.DeleteCustomer(ctx, idle.ID)
	require.NoError(t, err)
	_, err = models.GetCustomer(ctx, idle.ID)
	assert.Equal(t, models.ErrorKindNotFound, models.KindOf(err))
}
