package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRollbackLedgerTx(t *testing.T) {
	db, err := config.ConnectSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	hook := test.NewLocal(config.GetLogger())
	defer hook.Reset()

	// finished transactions roll back silently
	tx := db.Begin()
	require.NoError(t, tx.Commit().Error)
	rollbackLedgerTx(tx, "CreatePayment", nil)
	assert.Empty(t, hook.AllEntries())

	// a handle that is not a transaction cannot be rolled back
	rollbackLedgerTx(db.Session(&gorm.Session{NewDB: true}), "CreatePayment", []PartyRef{CustomerParty(3)})
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "rollback failed", entry.Data["context"])
	assert.Equal(t, "CreatePayment", entry.Data["funcName"])
}
