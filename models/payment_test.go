package models_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerPayment(customerId int, amount int64) *models.NewPayment {
	return &models.NewPayment{
		PaymentType: models.PartyTypeCustomer,
		CustomerId:  ptr(customerId),
		Currency:    models.CurrencyIQD,
		Amount:      amt(amount),
	}
}

func TestCreatePayment_DistributesOldestFirst(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	day := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	newest := creditSale(t, ctx, cust.ID, p.ID, 3000, day.AddDate(0, 0, 2))
	oldest := creditSale(t, ctx, cust.ID, p.ID, 1000, day)
	middle := creditSale(t, ctx, cust.ID, p.ID, 2000, day.AddDate(0, 0, 1))

	payment, err := models.CreatePayment(ctx, customerPayment(cust.ID, 2500))
	require.NoError(t, err)
	assertDec(t, "2500", payment.DebtReduction)
	assertDec(t, "0", payment.ExcessAmount)
	require.Len(t, payment.Allocations, 2)
	assert.Equal(t, oldest.ID, *payment.Allocations[0].SaleId)
	assertDec(t, "1000", payment.Allocations[0].Amount)
	assert.Equal(t, middle.ID, *payment.Allocations[1].SaleId)
	assertDec(t, "1500", payment.Allocations[1].Amount)
	assert.NotNil(t, payment.ReferenceNumber)

	s, _ := models.GetSale(ctx, oldest.ID)
	assert.Equal(t, models.InvoiceStatusCompleted, s.Status)
	assert.Equal(t, models.InvoiceTypeCash, s.SaleType)
	s, _ = models.GetSale(ctx, middle.ID)
	assertDec(t, "500", s.RemainingAmount)
	assert.Equal(t, models.InvoiceStatusPending, s.Status)
	s, _ = models.GetSale(ctx, newest.ID)
	assertDec(t, "3000", s.RemainingAmount)

	assertDec(t, "3500", customer(t, ctx, cust.ID).BalanceIqd)
}

func TestCreatePayment_ExactRemainingSettlesInvoice(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	sale := creditSale(t, ctx, cust.ID, p.ID, 1200, time.Now())

	input := customerPayment(cust.ID, 1200)
	input.SaleId = ptr(sale.ID)
	payment, err := models.CreatePayment(ctx, input)
	require.NoError(t, err)
	assertDec(t, "1200", payment.DebtReduction)
	assertDec(t, "0", payment.ExcessAmount)

	s, _ := models.GetSale(ctx, sale.ID)
	assert.Equal(t, models.InvoiceStatusCompleted, s.Status)
	assert.Equal(t, models.InvoiceTypeCash, s.SaleType)
	assertDec(t, "0", customer(t, ctx, cust.ID).BalanceIqd)

	_, err = models.CreatePayment(ctx, input)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))
}

func TestCreatePayment_NoDebtBecomesAdvance(t *testing.T) {
	ctx := setupLedger(t)
	cust := seedCustomer(t, ctx, "Ali")

	payment, err := models.CreatePayment(ctx, customerPayment(cust.ID, 500))
	require.NoError(t, err)
	assertDec(t, "0", payment.DebtReduction)
	assertDec(t, "500", payment.ExcessAmount)
	c := customer(t, ctx, cust.ID)
	assertDec(t, "0", c.BalanceIqd)
	assertDec(t, "500", c.NegativeBalanceIqd)
}

func TestCreatePayment_CustomerOverpaysDebt(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	payment, err := models.CreatePayment(ctx, customerPayment(cust.ID, 1300))
	require.NoError(t, err)
	assertDec(t, "1000", payment.DebtReduction)
	assertDec(t, "300", payment.ExcessAmount)
	c := customer(t, ctx, cust.ID)
	assertDec(t, "0", c.BalanceIqd)
	assertDec(t, "300", c.NegativeBalanceIqd)
}

func TestCreatePayment_WithAdvanceDraw(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	_, err := models.CreatePayment(ctx, customerPayment(cust.ID, 500))
	require.NoError(t, err)
	creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	input := customerPayment(cust.ID, 200)
	input.UseAdvance = true
	payment, err := models.CreatePayment(ctx, input)
	require.NoError(t, err)
	assertDec(t, "500", payment.AdvanceUsed)
	assertDec(t, "200", payment.CashPayment)
	assertDec(t, "700", payment.DebtReduction)
	assertDec(t, "700", payment.Amount)
	c := customer(t, ctx, cust.ID)
	assertDec(t, "300", c.BalanceIqd)
	assertDec(t, "0", c.NegativeBalanceIqd)

	// reversal gives the advance back
	_, reversal, err := models.DeletePayment(ctx, payment.ID)
	require.NoError(t, err)
	assertDec(t, "500", reversal.AdvanceRestored)
	c = customer(t, ctx, cust.ID)
	assertDec(t, "1000", c.BalanceIqd)
	assertDec(t, "500", c.NegativeBalanceIqd)
}

func TestCreatePayment_AdvanceAmountAboveAvailable(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	_, err := models.CreatePayment(ctx, customerPayment(cust.ID, 100))
	require.NoError(t, err)
	creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	input := customerPayment(cust.ID, 0)
	input.UseAdvance = true
	input.AdvanceAmount = amt(300)
	_, err = models.CreatePayment(ctx, input)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))
	assertDec(t, "1000", customer(t, ctx, cust.ID).BalanceIqd)
}

func TestCreatePayment_Validation(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	sup := seedSupplier(t, ctx, "Karwan Steel")
	sale := creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	cases := []struct {
		name  string
		input models.NewPayment
		field string
	}{
		{"missing customer", models.NewPayment{PaymentType: models.PartyTypeCustomer, Currency: models.CurrencyIQD, Amount: amt(10)}, "customer_id"},
		{"zero amount", models.NewPayment{PaymentType: models.PartyTypeCustomer, CustomerId: ptr(cust.ID), Currency: models.CurrencyIQD}, "amount"},
		{"supplier advance", models.NewPayment{PaymentType: models.PartyTypeSupplier, SupplierId: ptr(sup.ID), Currency: models.CurrencyIQD, Amount: amt(10), UseAdvance: true}, "use_advance"},
		{"advance with target", models.NewPayment{PaymentType: models.PartyTypeCustomer, CustomerId: ptr(cust.ID), SaleId: ptr(sale.ID), Currency: models.CurrencyIQD, Amount: amt(10), UseAdvance: true}, "use_advance"},
		{"bad status", models.NewPayment{PaymentType: models.PartyTypeCustomer, CustomerId: ptr(cust.ID), Currency: models.CurrencyIQD, Amount: amt(10), Status: models.PaymentStatusRefunded}, "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := tc.input
			_, err := models.CreatePayment(ctx, &input)
			require.Error(t, err)
			assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
			assert.Contains(t, models.FieldsOf(err), tc.field)
		})
	}
}

func TestCreatePayment_CurrencyMismatch(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	sale := creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	input := customerPayment(cust.ID, 10)
	input.Currency = models.CurrencyUSD
	input.SaleId = ptr(sale.ID)
	_, err := models.CreatePayment(ctx, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCurrencyMismatch))
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))
}

func TestCreatePayment_TargetOfAnotherCustomer(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	ali := seedCustomer(t, ctx, "Ali")
	omar := seedCustomer(t, ctx, "Omar")
	sale := creditSale(t, ctx, ali.ID, p.ID, 1000, time.Now())

	input := customerPayment(omar.ID, 100)
	input.SaleId = ptr(sale.ID)
	_, err := models.CreatePayment(ctx, input)
	assert.Contains(t, models.FieldsOf(err), "sale_id")
}

func TestSupplierPayments(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Steel bar", 0)
	sup := seedSupplier(t, ctx, "Karwan Steel")

	purchase, err := models.CreatePurchase(ctx, &models.NewPurchase{
		SupplierId:   ptr(sup.ID),
		PurchaseType: models.InvoiceTypeCredit,
		Currency:     models.CurrencyUSD,
		Items:        []models.NewInvoiceItem{item(p.ID, 10, 100)},
	})
	require.NoError(t, err)
	assertDec(t, "1000", supplier(t, ctx, sup.ID).BalanceUsd)

	over := &models.NewPayment{
		PaymentType: models.PartyTypeSupplier,
		SupplierId:  ptr(sup.ID),
		PurchaseId:  ptr(purchase.ID),
		Currency:    models.CurrencyUSD,
		Amount:      amt(1500),
	}
	_, err = models.CreatePayment(ctx, over)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))
	over.PurchaseId = nil
	_, err = models.CreatePayment(ctx, over)
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))

	payment, err := models.CreatePayment(ctx, &models.NewPayment{
		PaymentType: models.PartyTypeSupplier,
		SupplierId:  ptr(sup.ID),
		PurchaseId:  ptr(purchase.ID),
		Currency:    models.CurrencyUSD,
		Amount:      amt(400),
	})
	require.NoError(t, err)
	assertDec(t, "400", payment.DebtReduction)
	assertDec(t, "600", supplier(t, ctx, sup.ID).BalanceUsd)

	updated, err := models.UpdatePayment(ctx, payment.ID, &models.NewPayment{
		PaymentType: models.PartyTypeSupplier,
		SupplierId:  ptr(sup.ID),
		PurchaseId:  ptr(purchase.ID),
		Currency:    models.CurrencyUSD,
		Amount:      amt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.ReferenceNumber, updated.ReferenceNumber)
	assertDec(t, "0", supplier(t, ctx, sup.ID).BalanceUsd)
	got, err := models.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCompleted, got.Status)

	_, _, err = models.DeletePayment(ctx, payment.ID)
	require.NoError(t, err)
	assertDec(t, "1000", supplier(t, ctx, sup.ID).BalanceUsd)
	got, _ = models.GetPurchase(ctx, purchase.ID)
	assert.Equal(t, models.InvoiceTypeCredit, got.PurchaseType)
	assertDec(t, "1000", got.RemainingAmount)
}

func TestPendingPaymentHasNoLedgerEffect(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	creditSale(t, ctx, cust.ID, p.ID, 1000, time.Now())

	input := customerPayment(cust.ID, 400)
	input.Status = models.PaymentStatusPending
	payment, err := models.CreatePayment(ctx, input)
	require.NoError(t, err)
	assertDec(t, "1000", customer(t, ctx, cust.ID).BalanceIqd)
	assert.Empty(t, payment.Allocations)

	input.Status = models.PaymentStatusCompleted
	_, err = models.UpdatePayment(ctx, payment.ID, input)
	require.NoError(t, err)
	assertDec(t, "600", customer(t, ctx, cust.ID).BalanceIqd)
}

func TestDeletePayment_DistributedKeepsInvoiceShares(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	day := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	first := creditSale(t, ctx, cust.ID, p.ID, 1000, day)
	creditSale(t, ctx, cust.ID, p.ID, 2000, day.AddDate(0, 0, 1))

	payment, err := models.CreatePayment(ctx, customerPayment(cust.ID, 2500))
	require.NoError(t, err)

	_, reversal, err := models.DeletePayment(ctx, payment.ID)
	require.NoError(t, err)
	assertDec(t, "2500", reversal.DebtRestored)
	assert.Len(t, reversal.InvoicesKept, 2)
	assert.Empty(t, reversal.InvoicesRestored)

	assertDec(t, "3000", customer(t, ctx, cust.ID).BalanceIqd)
	s, _ := models.GetSale(ctx, first.ID)
	assert.Equal(t, models.InvoiceStatusCompleted, s.Status)
	assert.Zero(t, countWhere[models.PaymentAllocation](t, ctx, "payment_id = ?", payment.ID))

	// counters and invoices now disagree; reconciliation reports it
	reports, _, err := models.ReconcileBalances(ctx, true)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, models.CheckPartyDebt, reports[0].CheckType)
	assert.Equal(t, cust.ID, reports[0].EntityId)
	assert.Equal(t, int64(1), countWhere[models.ReconciliationReport](t, ctx, "check_type = ?", models.CheckPartyDebt))
}

func TestDeletePayment_ExactDistributedReversal(t *testing.T) {
	ctx := setupLedger(t)
	t.Setenv("EXACT_DISTRIBUTED_REVERSAL", "true")
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	day := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	first := creditSale(t, ctx, cust.ID, p.ID, 1000, day)
	second := creditSale(t, ctx, cust.ID, p.ID, 2000, day.AddDate(0, 0, 1))

	payment, err := models.CreatePayment(ctx, customerPayment(cust.ID, 2500))
	require.NoError(t, err)

	_, reversal, err := models.DeletePayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Len(t, reversal.InvoicesRestored, 2)
	assert.Empty(t, reversal.InvoicesKept)

	s, _ := models.GetSale(ctx, first.ID)
	assertDec(t, "1000", s.RemainingAmount)
	assert.Equal(t, models.InvoiceTypeCredit, s.SaleType)
	assert.Equal(t, models.InvoiceStatusPending, s.Status)
	s, _ = models.GetSale(ctx, second.ID)
	assertDec(t, "2000", s.RemainingAmount)
	assertDec(t, "3000", customer(t, ctx, cust.ID).BalanceIqd)

	reports, _, err := models.ReconcileBalances(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestUpdatePayment_RejectsSystemPayments(t *testing.T) {
	ctx := setupLedger(t)
	cust := seedCustomer(t, ctx, "Ali")
	_, err := models.CreatePayment(ctx, customerPayment(cust.ID, 500))
	require.NoError(t, err)

	refund, err := models.RefundAdvance(ctx, &models.NewAdvanceRefund{CustomerId: cust.ID, Currency: models.CurrencyIQD, Amount: amt(200)})
	require.NoError(t, err)
	_, err = models.UpdatePayment(ctx, refund.ID, customerPayment(cust.ID, 100))
	assert.Equal(t, models.ErrorKindBusiness, models.KindOf(err))
}

func TestCreatePayment_ConcurrentPaymentsKeepBalance(t *testing.T) {
	ctx := setupLedger(t)
	p := seedProduct(t, ctx, "Cement 50kg", 10)
	cust := seedCustomer(t, ctx, "Ali")
	day := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		creditSale(t, ctx, cust.ID, p.ID, 1000, day.AddDate(0, 0, i))
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := models.CreatePayment(ctx, customerPayment(cust.ID, 100)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assertDec(t, "1000", customer(t, ctx, cust.ID).BalanceIqd)
	assert.EqualValues(t, workers, countWhere[models.Payment](t, ctx, "customer_id = ?", cust.ID))
	ledger, err := models.GetCustomerLedger(ctx, cust.ID)
	require.NoError(t, err)
	assertDec(t, "1000", ledger.OpenTotal[models.CurrencyIQD])
	assertDec(t, "0", ledger.Drift[models.CurrencyIQD])
}
