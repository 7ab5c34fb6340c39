package main

import (
	"context"   // Background jobs and shutdown deadlines
	"errors"    // Server close detection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Shutdown on interrupt
	"syscall"   // SIGTERM
	"time"      // Shutdown timeout

	"retail_pos/internal/api"        // HTTP handlers and routes
	"retail_pos/internal/auth"       // Credential store
	"retail_pos/internal/catalog"    // Product catalog
	"retail_pos/internal/config"     // Configuration
	"retail_pos/internal/db"         // Database connection and schema
	"retail_pos/internal/ledger"     // Invoice ledger
	"retail_pos/internal/payment"    // Payment orchestrator
	"retail_pos/internal/report"     // Report generator
	"retail_pos/internal/utils"      // Cache
	"retail_pos/internal/validation" // Request validation

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	gdb, err := db.Open(cfg.DSN(), !cfg.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := db.SeedAdmin(context.Background(), gdb, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logrus.Fatalf("failed to seed admin: %v", err)
		}
	}

	// Redis is optional; without it every cache lookup misses
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
	}
	cache := utils.NewCache(redisClient, cfg.CacheTTL)

	products := catalog.NewService(gdb, catalog.NewOpenFoodFacts(cfg.CatalogBaseURL, cfg.HTTPTimeout), cache)
	invoices := ledger.NewService(gdb, products)
	processor := payment.NewPayPal(payment.PayPalConfig{
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		BaseURL:      cfg.PayPalBaseURL,
		Currency:     cfg.PayPalCurrency,
		BrandName:    cfg.PayPalBrandName,
		Locale:       cfg.PayPalLocale,
		ReturnURL:    cfg.PayPalReturnURL,
		CancelURL:    cfg.PayPalCancelURL,
		Timeout:      cfg.HTTPTimeout,
	})

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := api.NewRouter(api.Deps{
		Auth:          auth.NewService(gdb, cfg.JWTSecret, cfg.SessionTTL, cfg.AdminEmail),
		Catalog:       products,
		Ledger:        invoices,
		Payments:      payment.NewOrchestrator(gdb, processor, invoices),
		Reports:       report.NewGenerator(gdb),
		Cache:         cache,
		Validator:     validation.New(),
		JWTSecret:     cfg.JWTSecret,
		CSRFTTL:       cfg.CSRFTTL,
		SecureCookies: cfg.IsProd,
		CORSOrigin:    cfg.CORSOrigin,
	})

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconciler := payment.NewReconciler(gdb, invoices, cfg.ReconcileInterval, cfg.ReconcileMaxAttempts)
	go reconciler.Run(ctx)

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
