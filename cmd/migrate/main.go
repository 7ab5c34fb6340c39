package main

import (
	"context" // Seed and reconcile calls

	"retail_pos/internal/catalog" // Product catalog
	"retail_pos/internal/config"  // Configuration
	"retail_pos/internal/db"      // Database connection and schema
	"retail_pos/internal/ledger"  // Invoice ledger
	"retail_pos/internal/payment" // Capture outbox reconciler

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration: schema, bootstrap admin, catalog seed and
// one pass over pending captures.
func main() {
	cfg := config.LoadConfig() // Load configuration
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gdb, err := db.Open(cfg.DSN(), true)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}
	logrus.Info("Migration completed")

	ctx := context.Background()
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := db.SeedAdmin(ctx, gdb, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logrus.Fatalf("failed to seed admin: %v", err)
		}
	}

	products := catalog.NewService(gdb, catalog.NewOpenFoodFacts(cfg.CatalogBaseURL, cfg.HTTPTimeout), nil)
	for _, code := range cfg.SeedScanCodes {
		if _, err := products.GetOrRefresh(ctx, code); err != nil {
			logrus.WithFields(logrus.Fields{"scan_code": code, "error": err.Error()}).Warn("Catalog seed skipped")
			continue
		}
		logrus.WithField("scan_code", code).Info("Catalog seeded")
	}

	applied, err := payment.NewReconciler(gdb, ledger.NewService(gdb, products), cfg.ReconcileInterval, cfg.ReconcileMaxAttempts).RunOnce(ctx)
	if err != nil {
		logrus.Fatalf("failed to reconcile captures: %v", err)
	}
	logrus.WithField("applied", applied).Info("Pending captures reconciled")
}
