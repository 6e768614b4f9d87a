package models

import (
	"log"

	"github.com/mmdatafocus/sales_recon/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&LedgerRow{},
		&TransactionRow{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
