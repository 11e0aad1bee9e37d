package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
)

// ledger-reconcile compares stored party debt and invoice remaining amounts
// with the invoices behind them and prints every mismatch.
// Nothing is changed; -write stores the findings in reconciliation_reports.
//
// Example:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/ledger-reconcile/ -write
func main() {
	write := flag.Bool("write", false, "Store findings in reconciliation_reports")
	correlationId := flag.String("correlation-id", "", "Optional: correlation id for stored rows")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := utils.SetUserNameInContext(context.Background(), "ledger-reconcile")
	if *correlationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, *correlationId)
	}
	reports, cid, err := models.ReconcileBalances(ctx, *write)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("correlation_id=%s findings=%d write=%v\n", cid, len(reports), *write)
	for _, r := range reports {
		fmt.Printf("%-18s %-9s id=%-6d %s\n", r.CheckType, r.EntityType, r.EntityId, r.Details)
	}
	if len(reports) > 0 {
		os.Exit(2)
	}
}
