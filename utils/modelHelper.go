package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	return FetchModelTx[T](db.WithContext(ctx), id, associations...)
}

// fetch model inside an open transaction
func FetchModelTx[T any](tx *gorm.DB, id int, associations ...string) (*T, error) {
	dbCtx := tx
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch model with SELECT ... FOR UPDATE; the row stays locked until tx ends
func FetchModelForUpdate[T any](tx *gorm.DB, id int) (*T, error) {
	return FetchModelTx[T](tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}
