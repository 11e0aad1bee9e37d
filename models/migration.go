package models

import (
	"log"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := AutoMigrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

// AutoMigrate creates or updates every ledger table on db.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Customer{}, &Supplier{},
		&Product{}, &ProductUnit{},
		&Sale{}, &SaleItem{},
		&Purchase{}, &PurchaseItem{},
		&Payment{}, &PaymentAllocation{},
		&ReconciliationReport{},
	)
}
