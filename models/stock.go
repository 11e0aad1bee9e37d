package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockKeeper is the stock side of invoice posting. Quantities passed to
// Increment / Decrement are base units.
type StockKeeper interface {
	AvailableQuantity(ctx context.Context, productId int, unitId *int) (decimal.Decimal, error)
	ToBaseQuantity(ctx context.Context, productId int, unitId *int, qty decimal.Decimal) (decimal.Decimal, error)
	Increment(ctx context.Context, productId int, baseQty decimal.Decimal) error
	Decrement(ctx context.Context, productId int, baseQty decimal.Decimal) error
}

type gormStockKeeper struct {
	tx *gorm.DB
}

func NewStockKeeper(tx *gorm.DB) StockKeeper {
	return &gormStockKeeper{tx: tx}
}

func (k *gormStockKeeper) product(productId int) (*Product, error) {
	product, err := utils.FetchModelForUpdate[Product](k.tx, productId)
	if err != nil {
		return nil, notFoundAs(err, "product")
	}
	return product, nil
}

// unit returns the conversion factor and display name for unitId.
func (k *gormStockKeeper) unit(product *Product, unitId *int) (decimal.Decimal, string, error) {
	if unitId == nil || *unitId == 0 {
		return decimal.NewFromInt(1), product.BaseUnitName, nil
	}
	var unit ProductUnit
	err := k.tx.Where("id = ? AND product_id = ?", *unitId, product.ID).First(&unit).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, "", NewFieldError("product_unit_id", "does not belong to product "+product.Name)
		}
		return decimal.Zero, "", err
	}
	factor := unit.ConversionFactor
	if !factor.IsPositive() {
		factor = decimal.NewFromInt(1)
	}
	return factor, unit.Name, nil
}

func (k *gormStockKeeper) AvailableQuantity(ctx context.Context, productId int, unitId *int) (decimal.Decimal, error) {
	product, err := k.product(productId)
	if err != nil {
		return decimal.Zero, err
	}
	factor, _, err := k.unit(product, unitId)
	if err != nil {
		return decimal.Zero, err
	}
	return product.Quantity.Div(factor), nil
}

func (k *gormStockKeeper) ToBaseQuantity(ctx context.Context, productId int, unitId *int, qty decimal.Decimal) (decimal.Decimal, error) {
	product, err := k.product(productId)
	if err != nil {
		return decimal.Zero, err
	}
	factor, _, err := k.unit(product, unitId)
	if err != nil {
		return decimal.Zero, err
	}
	return qty.Mul(factor), nil
}

func (k *gormStockKeeper) Increment(ctx context.Context, productId int, baseQty decimal.Decimal) error {
	return k.move(productId, baseQty)
}

// Decrement refuses to take a tracked product below zero.
func (k *gormStockKeeper) Decrement(ctx context.Context, productId int, baseQty decimal.Decimal) error {
	product, err := k.product(productId)
	if err != nil {
		return err
	}
	if product.IsStockTracked() && product.Quantity.LessThan(baseQty) {
		return &InsufficientStockError{
			ProductId:   product.ID,
			ProductName: product.Name,
			UnitName:    product.BaseUnitName,
			Available:   product.Quantity,
			Requested:   baseQty,
		}
	}
	return k.move(productId, baseQty.Neg())
}

func (k *gormStockKeeper) move(productId int, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	res := k.tx.Model(&Product{}).Where("id = ?", productId).Updates(map[string]interface{}{
		"quantity":   gorm.Expr("quantity + ?", delta),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NewNotFoundError("product")
	}
	return nil
}

// stockLine is one item as the stock ledger sees it.
type stockLine struct {
	ProductId     int
	ProductUnitId *int
	Quantity      decimal.Decimal
}

// checkSaleAvailability compares the requested quantity with stock in the
// requested unit, so the error names the figure the cashier sees.
func checkSaleAvailability(ctx context.Context, keeper StockKeeper, tx *gorm.DB, line stockLine) error {
	product, err := utils.FetchModelForUpdate[Product](tx, line.ProductId)
	if err != nil {
		return notFoundAs(err, "product")
	}
	if !product.IsStockTracked() {
		return nil
	}
	available, err := keeper.AvailableQuantity(ctx, line.ProductId, line.ProductUnitId)
	if err != nil {
		return err
	}
	if available.LessThan(line.Quantity) {
		unitName := product.BaseUnitName
		if line.ProductUnitId != nil && *line.ProductUnitId > 0 {
			var unit ProductUnit
			if err := tx.First(&unit, *line.ProductUnitId).Error; err == nil {
				unitName = unit.Name
			}
		}
		return &InsufficientStockError{
			ProductId:   product.ID,
			ProductName: product.Name,
			UnitName:    unitName,
			Available:   available,
			Requested:   line.Quantity,
		}
	}
	return nil
}
