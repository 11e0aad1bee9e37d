// seed-demo fills an empty ledger database with a few products, one customer
// and one supplier, and stocks the products through a paid purchase.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
)

type demoProduct struct {
	name     string
	baseUnit string
	bulkUnit string
	factor   int64
	stock    int64
	cost     int64
}

var demoProducts = []demoProduct{
	{name: "Cement 50kg", baseUnit: "bag", bulkUnit: "pallet", factor: 40, stock: 120, cost: 7500},
	{name: "Steel bar 12mm", baseUnit: "pcs", bulkUnit: "bundle", factor: 10, stock: 200, cost: 9000},
	{name: "Paint 4L", baseUnit: "can", bulkUnit: "box", factor: 6, stock: 36, cost: 18000},
}

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	if n, err := utils.ResourceCountWhere[models.Product](ctx, "1 = 1"); err == nil && n > 0 {
		fmt.Fprintln(os.Stderr, "products already exist; seed-demo only runs on an empty database")
		os.Exit(2)
	}

	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Baghdad Building Supply", Address: "Al-Karrada"})
	exitOn(err, "create supplier")
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Walk-in Contractor", Address: "Erbil"})
	exitOn(err, "create customer")

	items := make([]models.NewInvoiceItem, 0, len(demoProducts))
	total := decimal.Zero
	for _, p := range demoProducts {
		product, err := models.CreateProduct(ctx, &models.NewProduct{
			Name:         p.name,
			BaseUnitName: p.baseUnit,
			Units:        []models.NewProductUnit{{Name: p.bulkUnit, ConversionFactor: utils.AmountFromInt(p.factor)}},
		})
		exitOn(err, "create product "+p.name)
		items = append(items, models.NewInvoiceItem{
			ProductId: product.ID,
			Quantity:  utils.AmountFromInt(p.stock),
			UnitPrice: utils.AmountFromInt(p.cost),
		})
		total = total.Add(decimal.NewFromInt(p.stock * p.cost))
	}

	method := models.PaymentMethodCash
	purchase, err := models.CreatePurchase(ctx, &models.NewPurchase{
		SupplierId:    &supplier.ID,
		PurchaseType:  models.InvoiceTypeCash,
		Currency:      models.CurrencyIQD,
		PaidAmount:    utils.NewAmount(total),
		PaymentMethod: &method,
		Notes:         "opening stock",
		Items:         items,
	})
	exitOn(err, "create opening purchase")

	fmt.Printf("seeded supplier=%d customer=%d products=%d purchase=%s total=%s IQD\n",
		supplier.ID, customer.ID, len(demoProducts), purchase.InvoiceNumber, total.String())
}

func exitOn(err error, step string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
		os.Exit(1)
	}
}
