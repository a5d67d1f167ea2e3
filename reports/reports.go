package reports

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quorum/auth"
	"quorum/common"
	"quorum/email"
	"quorum/models"
	"quorum/tags"
)

type ReportsModule struct {
	db     *gorm.DB
	tokens *auth.TokenService
	mailer *email.ModerationMailer
}

func NewReportsModule(db *gorm.DB, tokens *auth.TokenService, mailer *email.ModerationMailer) *ReportsModule {
	return &ReportsModule{db: db, tokens: tokens, mailer: mailer}
}

func (m *ReportsModule) RegisterRoutes(router *gin.Engine) {
	authed := router.Group("/")
	authed.Use(m.tokens.RequireAuthenticated, auth.RequireNotBanned(m.db))
	{
		authed.PUT("/posts/:id/report", m.upsertPostReport)
		authed.PUT("/comments/:id/report", m.upsertCommentReport)
	}

	moderation := router.Group("/")
	moderation.Use(m.tokens.RequireRole(models.RoleModerator))
	{
		moderation.GET("/reports", m.listReports)
		moderation.DELETE("/reports/posts/:id", m.deletePostReport)
		moderation.DELETE("/reports/comments/:id", m.deleteCommentReport)
	}
}

type reportInput struct {
	Reason string          `json:"reason" binding:"required,max=2000"`
	Tags   []tags.TagInput `json:"tags"`
}

// upsertPostReport creates or overwrites the caller's report on a post. The
// natural key is (author_id, post_id). Reason is overwritten and the tag set
// is fully replaced by the requested one, not diffed.
func (m *ReportsModule) upsertPostReport(c *gin.Context) {
	authorID, ok := auth.PrincipalID(c)
	if !ok {
		common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
		return
	}

	var input reportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "report reason is required"))
		return
	}

	var report models.PostReport
	var post models.Post
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, c.Param("id")).Error; err != nil {
			return common.FromDB(err, "post not found", "could not load post")
		}

		report = models.PostReport{
			AuthorID: authorID,
			PostID:   post.ID,
			Reason:   input.Reason,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "author_id"}, {Name: "post_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"reason": input.Reason, "updated_at": time.Now()}),
		}).Create(&report)
		if result.Error != nil {
			return common.FromDB(result.Error, "post not found", "could not save report")
		}

		if err := tx.Where("author_id = ? AND post_id = ?", authorID, post.ID).First(&report).Error; err != nil {
			return common.FromDB(err, "report not found", "could not load report")
		}

		// full replacement: the final tag set equals the request exactly
		resolved, err := tags.FindOrCreateAll(tx, input.Tags)
		if err != nil {
			return err
		}
		if err := tx.Model(&report).Association("Tags").Replace(resolved); err != nil {
			return common.WrapE(common.KindInternal, "could not update report tags", err)
		}
		return nil
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var saved models.PostReport
	if err := m.db.Preload("Tags").First(&saved, report.ID).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "report not found", "could not load report"))
		return
	}

	m.notify(fmt.Sprintf("post %d (%s)", post.ID, post.Title), input.Reason)
	common.RespondData(c, http.StatusOK, saved)
}

func (m *ReportsModule) upsertCommentReport(c *gin.Context) {
	authorID, ok := auth.PrincipalID(c)
	if !ok {
		common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
		return
	}

	var input reportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "report reason is required"))
		return
	}

	var report models.CommentReport
	var comment models.Comment
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&comment, c.Param("id")).Error; err != nil {
			return common.FromDB(err, "comment not found", "could not load comment")
		}

		report = models.CommentReport{
			AuthorID:  authorID,
			CommentID: comment.ID,
			Reason:    input.Reason,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "author_id"}, {Name: "comment_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"reason": input.Reason, "updated_at": time.Now()}),
		}).Create(&report)
		if result.Error != nil {
			return common.FromDB(result.Error, "comment not found", "could not save report")
		}

		if err := tx.Where("author_id = ? AND comment_id = ?", authorID, comment.ID).First(&report).Error; err != nil {
			return common.FromDB(err, "report not found", "could not load report")
		}

		resolved, err := tags.FindOrCreateAll(tx, input.Tags)
		if err != nil {
			return err
		}
		if err := tx.Model(&report).Association("Tags").Replace(resolved); err != nil {
			return common.WrapE(common.KindInternal, "could not update report tags", err)
		}
		return nil
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var saved models.CommentReport
	if err := m.db.Preload("Tags").First(&saved, report.ID).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "report not found", "could not load report"))
		return
	}

	m.notify(fmt.Sprintf("comment %d", comment.ID), input.Reason)
	common.RespondData(c, http.StatusOK, saved)
}

func (m *ReportsModule) listReports(c *gin.Context) {
	var postReports []models.PostReport
	if err := m.db.Preload("Tags").Order("updated_at DESC").Find(&postReports).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not list reports", err))
		return
	}

	var commentReports []models.CommentReport
	if err := m.db.Preload("Tags").Order("updated_at DESC").Find(&commentReports).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not list reports", err))
		return
	}

	common.RespondData(c, http.StatusOK, gin.H{
		"post_reports":    postReports,
		"comment_reports": commentReports,
	})
}

func (m *ReportsModule) deletePostReport(c *gin.Context) {
	var report models.PostReport
	if err := m.db.First(&report, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "report not found", "could not load report"))
		return
	}

	if err := m.db.Model(&report).Association("Tags").Clear(); err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete report", err))
		return
	}
	if err := m.db.Delete(&report).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete report", err))
		return
	}
	common.RespondData(c, http.StatusOK, gin.H{"deleted": report.ID})
}

func (m *ReportsModule) deleteCommentReport(c *gin.Context) {
	var report models.CommentReport
	if err := m.db.First(&report, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "report not found", "could not load report"))
		return
	}

	if err := m.db.Model(&report).Association("Tags").Clear(); err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete report", err))
		return
	}
	if err := m.db.Delete(&report).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete report", err))
		return
	}
	common.RespondData(c, http.StatusOK, gin.H{"deleted": report.ID})
}

// notify is best effort; a mail failure never fails the report request.
func (m *ReportsModule) notify(target, reason string) {
	if m.mailer == nil || !m.mailer.Enabled() {
		return
	}
	if err := m.mailer.SendReportAlert(target, reason); err != nil {
		common.Log.WithError(err).Warn("moderation alert not sent")
	}
}
