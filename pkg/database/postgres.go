package database

import (
	"log"

	"github.com/eventlink/ticketing/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Event{}, &models.Ticket{}); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// The code index backs scanner lookups and collision detection; the
	// payment_id index is the idempotency barrier against duplicate gateway
	// callbacks.
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_code ON tickets (code)`)
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_payment_id ON tickets (payment_id)`)

	return db
}
