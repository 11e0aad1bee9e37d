package utils

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	if !IsDuplicateKeyErr(fmt.Errorf("insert: %w", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"})) {
		t.Fatalf("mysql 1062 should be a duplicate key")
	}
	if IsDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1205}) {
		t.Fatalf("lock wait timeout is not a duplicate key")
	}
	if !IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: payments.reference_number")) {
		t.Fatalf("sqlite unique violation should be a duplicate key")
	}
	if IsDuplicateKeyErr(nil) {
		t.Fatalf("nil is not a duplicate key")
	}
}
