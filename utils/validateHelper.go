package utils

import (
	"context"
	"errors"
	"reflect"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"gorm.io/gorm"
)

// ValidateUniqueTx fails with "duplicate <column>" when another row (other
// than exceptId) already holds value.
func ValidateUniqueTx[T any](tx *gorm.DB, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if exceptId == nil || reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhereTx[T](tx, column+" = ?", value)
	} else {
		count, err = ResourceCountWhereTx[T](tx, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE $condition
func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	return ResourceCountWhereTx[T](config.GetDB().WithContext(ctx), condition, value...)
}

func ResourceCountWhereTx[T any](tx *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := tx.Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
