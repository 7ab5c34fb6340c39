package db

import (
	"context" // Request scoped operations
	"errors"  // Error classification
	"fmt"     // Error wrapping

	"retail_pos/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Structured logging
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM log levels
)

// Models lists every table owned by the application
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Product{},
		&domain.Rating{},
		&domain.Invoice{},
		&domain.InvoiceItem{},
		&domain.Report{},
		&domain.CaptureOutbox{},
	}
}

// Open connects to MySQL through GORM
func Open(dsn string, verbose bool) (*gorm.DB, error) {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gdb, nil
}

// Migrate performs automatic migration for the database schema
func Migrate(gdb *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logrus.Info("Migration completed.")
	return nil
}

// SeedAdmin creates the bootstrap admin when no admin account exists yet. An
// account already holding the bootstrap email is promoted back to admin
// instead of being created twice.
func SeedAdmin(ctx context.Context, gdb *gorm.DB, email, password string) error {
	var existing domain.User
	err := gdb.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		if existing.Role == domain.RoleAdmin {
			logrus.WithField("admin_id", existing.ID).Info("Admin user already exists.")
			return nil
		}
		previous := existing.Role
		if err := gdb.WithContext(ctx).Model(&existing).Update("role", domain.RoleAdmin).Error; err != nil {
			return fmt.Errorf("restore admin role: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"admin_id": existing.ID, // Bootstrap account
			"role":     previous,    // Role it held
		}).Warn("Default admin role restored.")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	err = gdb.WithContext(ctx).Where("role = ?", domain.RoleAdmin).First(&existing).Error
	if err == nil {
		logrus.WithField("admin_id", existing.ID).Info("Admin user already exists.")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := domain.User{Username: "admin", Email: email, Password: string(hash), Role: domain.RoleAdmin}
	if err := gdb.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"admin_id": admin.ID,    // New admin ID
		"email":    admin.Email, // Bootstrap email
	}).Info("Default admin user created.")
	return nil
}
