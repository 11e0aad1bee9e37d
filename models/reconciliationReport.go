package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Drift detection output (admin-triggered via cmd/ledger-reconcile).
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // PARTY_DEBT, INVOICE_REMAINING, INVOICE_ITEMS
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // Customer, Supplier, Sale, Purchase
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	CheckPartyDebt        = "PARTY_DEBT"
	CheckInvoiceRemaining = "INVOICE_REMAINING"
	CheckInvoiceItems     = "INVOICE_ITEMS"
)

// ReconcileBalances compares stored counters with the invoices behind them:
// party debt vs open credit invoices, remaining vs total - paid, and total
// vs the sum of items. Mismatches are returned and, when write is set,
// stored in reconciliation_reports under one correlation id.
func ReconcileBalances(ctx context.Context, write bool) ([]*ReconciliationReport, string, error) {
	db := config.GetDB()
	if db == nil {
		return nil, "", fmt.Errorf("db is nil")
	}
	logger := config.GetLogger()
	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	now := time.Now().UTC()
	var reports []*ReconciliationReport
	report := func(check, entityType string, entityId int, details string) {
		reports = append(reports, &ReconciliationReport{
			CheckType:     check,
			EntityType:    entityType,
			EntityId:      entityId,
			Details:       details,
			CorrelationId: cid,
			CreatedAt:     now,
		})
	}

	// 1) party debt vs open credit invoices
	var customers []*Customer
	if err := db.WithContext(ctx).Order("id ASC").Find(&customers).Error; err != nil {
		return nil, cid, err
	}
	for _, c := range customers {
		summary, err := buildPartyLedger(ctx, CustomerParty(c.ID), c.Name, c.Ledger())
		if err != nil {
			return nil, cid, err
		}
		for _, cur := range Currencies {
			if !summary.Drift[cur].IsZero() {
				report(CheckPartyDebt, "Customer", c.ID, fmt.Sprintf("%s debt=%s != open invoices=%s",
					cur, summary.Debt[cur].StringFixed(2), summary.OpenTotal[cur].StringFixed(2)))
			}
		}
	}
	var suppliers []*Supplier
	if err := db.WithContext(ctx).Order("id ASC").Find(&suppliers).Error; err != nil {
		return nil, cid, err
	}
	for _, s := range suppliers {
		summary, err := buildPartyLedger(ctx, SupplierParty(s.ID), s.Name, s.Ledger())
		if err != nil {
			return nil, cid, err
		}
		for _, cur := range Currencies {
			if !summary.Drift[cur].IsZero() {
				report(CheckPartyDebt, "Supplier", s.ID, fmt.Sprintf("%s debt=%s != open invoices=%s",
					cur, summary.Debt[cur].StringFixed(2), summary.OpenTotal[cur].StringFixed(2)))
			}
		}
	}

	// 2) remaining = total - paid, 3) total = sum(items)
	type invoiceRow struct {
		ID              int
		InvoiceNumber   string
		TotalAmount     decimal.Decimal
		PaidAmount      decimal.Decimal
		RemainingAmount decimal.Decimal
		ItemsTotal      decimal.Decimal
	}
	for _, t := range []struct {
		entity, table, itemTable, fk string
	}{
		{"Sale", "sales", "sale_items", "sale_id"},
		{"Purchase", "purchases", "purchase_items", "purchase_id"},
	} {
		var rows []invoiceRow
		if err := db.WithContext(ctx).Raw(`
			SELECT inv.id, inv.invoice_number, inv.total_amount, inv.paid_amount, inv.remaining_amount,
			  COALESCE(SUM(it.total_price), 0) AS items_total
			FROM ` + t.table + ` inv
			LEFT JOIN ` + t.itemTable + ` it ON it.` + t.fk + ` = inv.id
			GROUP BY inv.id, inv.invoice_number, inv.total_amount, inv.paid_amount, inv.remaining_amount
			ORDER BY inv.id
		`).Scan(&rows).Error; err != nil {
			return nil, cid, err
		}
		for _, r := range rows {
			if !r.RemainingAmount.Equal(r.TotalAmount.Sub(r.PaidAmount)) {
				report(CheckInvoiceRemaining, t.entity, r.ID, fmt.Sprintf("%s: remaining=%s != total=%s - paid=%s",
					r.InvoiceNumber, r.RemainingAmount.StringFixed(2), r.TotalAmount.StringFixed(2), r.PaidAmount.StringFixed(2)))
			}
			if !r.TotalAmount.Equal(r.ItemsTotal) {
				report(CheckInvoiceItems, t.entity, r.ID, fmt.Sprintf("%s: total=%s != items=%s",
					r.InvoiceNumber, r.TotalAmount.StringFixed(2), r.ItemsTotal.StringFixed(2)))
			}
		}
	}

	if write && len(reports) > 0 {
		if err := db.WithContext(ctx).Create(&reports).Error; err != nil {
			return nil, cid, err
		}
	}
	logger.WithFields(logrus.Fields{
		"module":         "Reconciliation",
		"correlation_id": cid,
		"mismatches":     len(reports),
		"written":        write,
	}).Info("ledger reconciliation finished")
	return reports, cid, nil
}
