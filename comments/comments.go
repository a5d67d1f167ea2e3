package comments

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quorum/auth"
	"quorum/cache"
	"quorum/common"
	"quorum/models"
)

type CommentsModule struct {
	db     *gorm.DB
	tokens *auth.TokenService
}

func NewCommentsModule(db *gorm.DB, tokens *auth.TokenService) *CommentsModule {
	return &CommentsModule{db: db, tokens: tokens}
}

func (m *CommentsModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/posts/:id/comments", m.listComments)
	router.GET("/comments/:id", m.getComment)

	authed := router.Group("/")
	authed.Use(m.tokens.RequireAuthenticated, auth.RequireNotBanned(m.db))
	{
		authed.POST("/posts/:id/comments", m.createComment)
		authed.PUT("/comments/:id", m.updateComment)
		authed.DELETE("/comments/:id", m.deleteComment)
	}
}

type commentInput struct {
	Body string `json:"body" binding:"required,max=10000"`
}

func (m *CommentsModule) createComment(c *gin.Context) {
	authorID, ok := auth.PrincipalID(c)
	if !ok {
		common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
		return
	}

	var post models.Post
	if err := m.db.First(&post, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}

	var input commentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "comment body is required"))
		return
	}

	comment := models.Comment{
		AuthorID: authorID,
		PostID:   post.ID,
		Body:     input.Body,
	}
	if err := m.db.Create(&comment).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not create comment", err))
		return
	}

	cache.ClearPost(c.Param("id"))
	common.RespondData(c, http.StatusCreated, comment)
}

func (m *CommentsModule) listComments(c *gin.Context) {
	var post models.Post
	if err := m.db.First(&post, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}

	var comments []models.Comment
	err := m.db.Where("post_id = ?", post.ID).
		Preload("Author").
		Preload("Files").
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not list comments", err))
		return
	}
	common.RespondData(c, http.StatusOK, comments)
}

func (m *CommentsModule) getComment(c *gin.Context) {
	var comment models.Comment
	err := m.db.Preload("Author").Preload("Files").First(&comment, c.Param("id")).Error
	if err != nil {
		common.RespondError(c, common.FromDB(err, "comment not found", "could not load comment"))
		return
	}
	common.RespondData(c, http.StatusOK, comment)
}

func (m *CommentsModule) updateComment(c *gin.Context) {
	var comment models.Comment
	if err := m.db.First(&comment, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "comment not found", "could not load comment"))
		return
	}

	if err := m.tokens.RequireOwner(comment.AuthorID, c.GetHeader("Authorization")); err != nil {
		common.RespondError(c, err)
		return
	}

	var input commentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "comment body is required"))
		return
	}

	comment.Body = input.Body
	if err := m.db.Save(&comment).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not update comment", err))
		return
	}

	cache.ClearPost(strconv.FormatUint(uint64(comment.PostID), 10))
	common.RespondData(c, http.StatusOK, comment)
}

func (m *CommentsModule) deleteComment(c *gin.Context) {
	var comment models.Comment
	if err := m.db.First(&comment, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "comment not found", "could not load comment"))
		return
	}

	// author, or moderation override
	if err := m.tokens.RequireOwner(comment.AuthorID, c.GetHeader("Authorization")); err != nil {
		claims, ok := auth.Principal(c)
		if !ok || !claims.Role.AtLeast(models.RoleModerator) {
			common.RespondError(c, err)
			return
		}
	}

	if err := m.db.Delete(&comment).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete comment", err))
		return
	}

	cache.ClearPost(strconv.FormatUint(uint64(comment.PostID), 10))
	common.RespondData(c, http.StatusOK, gin.H{"deleted": comment.ID})
}
