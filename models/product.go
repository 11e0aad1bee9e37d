package models

import (
	"context"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product keeps its stock in base units. Catalog fields beyond what the
// stock ledger reads are managed elsewhere.
type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:150;not null" json:"name"`
	BaseUnitName string          `gorm:"size:50;not null;default:'pcs'" json:"base_unit_name"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	TrackStock   *bool           `gorm:"not null;default:true" json:"track_stock"`
	Units        []*ProductUnit  `gorm:"foreignKey:ProductId" json:"units,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductUnit is an alternative selling/buying unit, e.g. a box of 12.
type ProductUnit struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	Name             string          `gorm:"size:50;not null" json:"name"`
	ConversionFactor decimal.Decimal `gorm:"type:decimal(20,6);not null;default:1" json:"conversion_factor"`
}

type NewProductUnit struct {
	Name             string       `json:"name" validate:"required,max=50"`
	ConversionFactor utils.Amount `json:"conversion_factor"`
}

type NewProduct struct {
	Name         string           `json:"name" validate:"required,max=150"`
	BaseUnitName string           `json:"base_unit_name" validate:"max=50"`
	TrackStock   *bool            `json:"track_stock"`
	Quantity     utils.Amount     `json:"quantity"`
	Units        []NewProductUnit `json:"units" validate:"dive"`
}

func (p *Product) IsStockTracked() bool {
	return p.TrackStock == nil || *p.TrackStock
}

func (input *NewProduct) validate() error {
	if err := validateInput(input); err != nil {
		return err
	}
	if input.Quantity.IsNegative() {
		return NewFieldError("quantity", "must be at least 0")
	}
	for i, u := range input.Units {
		if !u.ConversionFactor.IsPositive() {
			return NewFieldError("units["+strconv.Itoa(i)+"].conversion_factor", "must be greater than 0")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	product := Product{
		Name:         input.Name,
		BaseUnitName: input.BaseUnitName,
		Quantity:     input.Quantity.Decimal,
		TrackStock:   input.TrackStock,
	}
	if product.BaseUnitName == "" {
		product.BaseUnitName = "pcs"
	}
	if product.TrackStock == nil {
		product.TrackStock = newTrue()
	}
	for _, u := range input.Units {
		product.Units = append(product.Units, &ProductUnit{Name: u.Name, ConversionFactor: u.ConversionFactor.Decimal})
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&product).Error
	})
	if err != nil {
		config.LogError(config.GetLogger(), "Product", "CreateProduct", "create product", input, err)
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id, "Units")
	if err != nil {
		return nil, notFoundAs(err, "product")
	}
	return product, nil
}

// GetAvailableQuantity returns stock of productId expressed in unitId
// (base unit when unitId is nil).
func GetAvailableQuantity(ctx context.Context, productId int, unitId *int) (decimal.Decimal, error) {
	db := config.GetDB()
	return NewStockKeeper(db.WithContext(ctx)).AvailableQuantity(ctx, productId, unitId)
}

func newTrue() *bool {
	b := true
	return &b
}
