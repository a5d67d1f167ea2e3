package common

import (
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectDb opens the primary sqlite database named by the sqlite_db env var.
// Returns nil when the variable is unset or the open fails; main treats that
// as fatal.
func ConnectDb() *gorm.DB {
	dbFile := os.Getenv("sqlite_db")
	if dbFile == "" {
		Log.Error("sqlite_db not set")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		Log.WithError(err).Error("error opening sqlite db")
		return nil
	}
	Log.Info("opened sqlite db at: ", dbFile)
	return db
}

// ConnectAnalyticsDb opens the separate analytics database. Analytics is
// optional; a nil return just disables it.
func ConnectAnalyticsDb() *gorm.DB {
	analyticsDbFile := os.Getenv("analytics_db")
	if analyticsDbFile == "" {
		Log.Info("analytics_db not set - analytics will be disabled")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(analyticsDbFile), &gorm.Config{})
	if err != nil {
		Log.WithError(err).Error("error opening analytics sqlite db")
		return nil
	}

	Log.Info("opened analytics sqlite db at: ", analyticsDbFile)
	return db
}
