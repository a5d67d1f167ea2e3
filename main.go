package main

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"quorum/accounts"
	"quorum/analytics"
	"quorum/auth"
	"quorum/cache"
	"quorum/comments"
	"quorum/common"
	"quorum/database"
	"quorum/email"
	"quorum/files"
	"quorum/posts"
	"quorum/reactions"
	"quorum/reports"
	"quorum/tags"
)

func main() {
	godotenv.Load()
	common.InitLogger()

	db := common.ConnectDb()
	if db == nil {
		common.Log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		common.Log.Fatal("Failed to run migrations: ", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		common.Log.Fatal("JWT_SECRET environment variable not set")
	}
	tokens := auth.NewTokenService(jwtSecret, 24*time.Hour)

	analyticsModule := analytics.NewAnalyticsModule(common.ConnectAnalyticsDb())
	mailer := email.NewModerationMailer()

	var store files.FileStore
	if s3 := files.NewS3FileStore(); s3 != nil {
		store = s3
	}

	router := gin.Default()
	router.Use(cors.Default())
	router.Use(cache.Middleware(2 * time.Minute))

	accounts.NewAccountsModule(db, tokens).RegisterRoutes(router)
	posts.NewPostsModule(db, tokens, analyticsModule).RegisterRoutes(router)
	comments.NewCommentsModule(db, tokens).RegisterRoutes(router)
	reactions.NewReactionsModule(db, tokens).RegisterRoutes(router)
	reports.NewReportsModule(db, tokens, mailer).RegisterRoutes(router)
	tags.NewTagsModule(db, tokens).RegisterRoutes(router)
	files.NewFilesModule(db, tokens, store).RegisterRoutes(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	common.Log.Info("Starting server on port ", port, "...")
	if err := router.Run(":" + port); err != nil {
		common.Log.Fatal("Failed to start server: ", err)
	}
}
