package database

import (
	"fmt"
	"time"

	"shelfmate/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the postgres database behind dsn and runs migrations.
func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	return Open(postgres.Open(dsn), log)
}

// Open opens any gorm dialector with the application's gorm settings and
// migrates the schema. Tests pass an in-memory sqlite dialector.
func Open(dialector gorm.Dialector, log *zap.Logger) (*gorm.DB, error) {
	// gorm's logger only needs Printf, which zap's std logger bridge provides.
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connection established", zap.String("dialect", dialector.Name()))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database migrated successfully")
	return db, nil
}

// Migrate creates or updates every table the application uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}
