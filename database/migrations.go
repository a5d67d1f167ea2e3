package database

import (
	"gorm.io/gorm"

	"quorum/common"
	"quorum/models"
)

func RunMigrations(db *gorm.DB) error {
	common.Log.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Tag{},
		&models.Post{},
		&models.Comment{},
		&models.PostReaction{},
		&models.CommentReaction{},
		&models.PostReport{},
		&models.CommentReport{},
		&models.File{},
	)

	if err != nil {
		common.Log.WithError(err).Error("Error running migrations")
		return err
	}

	common.Log.Info("Migrations completed successfully")
	return nil
}
