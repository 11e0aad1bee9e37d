package models

import (
	"context"
	"database/sql"
	"errors"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("pos-ledger/models")

// runLedgerTx runs fn in one database transaction: commit when fn returns
// nil, rollback on error or panic. Redis locks for the given parties are held
// for the whole transaction when redis is configured.
func runLedgerTx(ctx context.Context, funcName string, parties []PartyRef, fn func(tx *gorm.DB) error) error {
	ctx, span := tracer.Start(ctx, "ledger."+funcName, trace.WithAttributes(attribute.String("ledger.operation", funcName)))
	defer span.End()
	for _, p := range parties {
		if p.IsSet() {
			span.SetAttributes(attribute.Int("ledger."+string(p.Type)+"_id", p.ID))
		}
	}

	release, err := utils.ObtainLocks(ctx, "Ledger", funcName, lockKeys(parties...)...)
	if err != nil {
		return NewBusinessError("%s", err.Error())
	}
	defer release()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	// always rollback on early-return or panic so row locks are not leaked
	defer func() {
		if r := recover(); r != nil {
			rollbackLedgerTx(tx, funcName, parties)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		rollbackLedgerTx(tx, funcName, parties)
		return classifyTxError(span, funcName, parties, err)
	}
	if err := tx.Commit().Error; err != nil {
		return classifyTxError(span, funcName, parties, err)
	}
	return nil
}

func rollbackLedgerTx(tx *gorm.DB, funcName string, parties []PartyRef) {
	if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		config.LogError(config.GetLogger(), "Ledger", funcName, "rollback failed", parties, err)
	}
}

func classifyTxError(span trace.Span, funcName string, parties []PartyRef, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch KindOf(err) {
	case ErrorKindIntegrity:
		config.LogError(config.GetLogger(), "Ledger", funcName, "integrity violation", parties, err)
		var le *LedgerError
		if errors.As(err, &le) {
			return err
		}
		return NewIntegrityError("duplicate reference or invoice number", err)
	case ErrorKindUnexpected:
		config.LogUnexpected(config.GetLogger(), "Ledger", funcName, "transaction rolled back", parties, err)
	}
	return err
}
