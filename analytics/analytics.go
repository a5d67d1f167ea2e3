package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quorum/common"
)

// PostEvent is an anonymous view of a post. The viewer is identified only by
// a hash of IP and user agent.
type PostEvent struct {
	ID         uint      `gorm:"primary_key;autoIncrement"`
	PostID     uint      `gorm:"not null;index"`
	ViewerHash string    `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"index"`
}

// AnalyticsModule tracks post views on an optional separate database. A nil
// module is valid and disables tracking.
type AnalyticsModule struct {
	db *gorm.DB
}

func NewAnalyticsModule(db *gorm.DB) *AnalyticsModule {
	if db == nil {
		common.Log.Info("Analytics DB is nil, analytics will be disabled")
		return nil
	}

	if err := db.AutoMigrate(&PostEvent{}); err != nil {
		common.Log.WithError(err).Error("Error migrating post_events table")
		return nil
	}

	common.Log.Info("Analytics module initialized successfully")
	return &AnalyticsModule{db: db}
}

// TrackView records a view of a post. Repeat views by the same viewer within
// 30 minutes are dropped so refreshes do not inflate counts.
func (a *AnalyticsModule) TrackView(c *gin.Context, postID uint) {
	if a == nil || a.db == nil {
		return
	}

	viewerHash := hashViewer(c.ClientIP(), c.Request.UserAgent())

	var last PostEvent
	err := a.db.Where("post_id = ? AND viewer_hash = ?", postID, viewerHash).
		Order("created_at DESC").
		First(&last).Error
	if err == nil && time.Since(last.CreatedAt) < 30*time.Minute {
		return
	}

	event := PostEvent{
		PostID:     postID,
		ViewerHash: viewerHash,
		CreatedAt:  time.Now(),
	}
	if err := a.db.Create(&event).Error; err != nil {
		common.Log.WithError(err).Warn("failed to record post view")
	}
}

// GetPostViewCount returns the total recorded views for a post.
func (a *AnalyticsModule) GetPostViewCount(postID uint) int64 {
	if a == nil || a.db == nil {
		return 0
	}

	var count int64
	if err := a.db.Model(&PostEvent{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0
	}
	return count
}

func hashViewer(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}
