package reactions

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quorum/auth"
	"quorum/cache"
	"quorum/common"
	"quorum/models"
)

type ReactionsModule struct {
	db     *gorm.DB
	tokens *auth.TokenService
}

func NewReactionsModule(db *gorm.DB, tokens *auth.TokenService) *ReactionsModule {
	return &ReactionsModule{db: db, tokens: tokens}
}

func (m *ReactionsModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/posts/:id/reactions", m.postReactionCounts)
	router.GET("/comments/:id/reactions", m.commentReactionCounts)

	authed := router.Group("/")
	authed.Use(m.tokens.RequireAuthenticated, auth.RequireNotBanned(m.db))
	{
		authed.PUT("/posts/:id/reaction", m.upsertPostReaction)
		authed.DELETE("/posts/:id/reaction", m.deletePostReaction)
		authed.PUT("/comments/:id/reaction", m.upsertCommentReaction)
		authed.DELETE("/comments/:id/reaction", m.deleteCommentReaction)
	}
}

type reactionInput struct {
	Type models.ReactionType `json:"type" binding:"required"`
}

// upsertPostReaction creates or overwrites the caller's reaction on a post.
// The natural key is (author_id, post_id); only Type is mutable, last write
// wins. The lookup-or-insert runs as ON CONFLICT inside one transaction so
// two concurrent calls cannot produce two rows.
func (m *ReactionsModule) upsertPostReaction(c *gin.Context) {
	authorID, ok := auth.PrincipalID(c)
	if !ok {
		common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
		return
	}

	var input reactionInput
	if err := c.ShouldBindJSON(&input); err != nil || !input.Type.Valid() {
		common.RespondError(c, common.E(common.KindValidation, "type must be UPVOTE or DOWNVOTE"))
		return
	}

	var reaction models.PostReaction
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, c.Param("id")).Error; err != nil {
			return common.FromDB(err, "post not found", "could not load post")
		}

		reaction = models.PostReaction{
			AuthorID: authorID,
			PostID:   post.ID,
			Type:     input.Type,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "author_id"}, {Name: "post_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"type": input.Type, "updated_at": time.Now()}),
		}).Create(&reaction)
		if result.Error != nil {
			return common.FromDB(result.Error, "post not found", "could not save reaction")
		}

		return tx.Where("author_id = ? AND post_id = ?", authorID, post.ID).First(&reaction).Error
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	cache.ClearPost(c.Param("id"))
	common.RespondData(c, http.StatusOK, reaction)
}

func (m *ReactionsModule) deletePostReaction(c *gin.Context) {
	authorID, ok := auth.PrincipalID(c)
	if !ok {
		common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
		return
	}

	result := m.db.Where("author_id = ? AND post_id = ?", authorID, c.Param("id")).
		Delete(&models.PostReaction{})
	if result.Error != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete reaction", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		common.RespondError(c, common.E(common.KindNotFound, "reaction not found"))
		return
	}

	cache.ClearPost(c.Param("id"))
	common.RespondData(c, http.StatusOK, gin.H{"deleted": true})
}

func (m *ReactionsModule) postReactionCounts(c *gin.Context) {
	var post models.Post
	if err := m.db.First(&post, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}

	var upvotes, downvotes int64
	m.db.Model(&models.PostReaction{}).Where("post_id = ? AND type = ?", post.ID, models.ReactionUpvote).Count(&upvotes)
	m.db.Model(&models.PostReaction{}).Where("post_id = ? AND type = ?", post.ID, models.ReactionDownvote).Count(&downvotes)

	common.RespondData(c, http.StatusOK, gin.H{"upvotes": upvotes, "downvotes": downvotes})
}

func (m *ReactionsModule) upsertCommentReaction(c *gin.Context) {
	authorID, ok := auth.PrincipalID(c)
	if !ok {
		common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
		return
	}

	var input reactionInput
	if err := c.ShouldBindJSON(&input); err != nil || !input.Type.Valid() {
		common.RespondError(c, common.E(common.KindValidation, "type must be UPVOTE or DOWNVOTE"))
		return
	}

	var reaction models.CommentReaction
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, c.Param("id")).Error; err != nil {
			return common.FromDB(err, "comment not found", "could not load comment")
		}

		reaction = models.CommentReaction{
			AuthorID:  authorID,
			CommentID: comment.ID,
			Type:      input.Type,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "author_id"}, {Name: "comment_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"type": input.Type, "updated_at": time.Now()}),
		}).Create(&reaction)
		if result.Error != nil {
			return common.FromDB(result.Error, "comment not found", "could not save reaction")
		}

		return tx.Where("author_id = ? AND comment_id = ?", authorID, comment.ID).First(&reaction).Error
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, reaction)
}

func (m *ReactionsModule) deleteCommentReaction(c *gin.Context) {
	authorID, ok := auth.PrincipalID(c)
	if !ok {
		common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
		return
	}

	result := m.db.Where("author_id = ? AND comment_id = ?", authorID, c.Param("id")).
		Delete(&models.CommentReaction{})
	if result.Error != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete reaction", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		common.RespondError(c, common.E(common.KindNotFound, "reaction not found"))
		return
	}
	common.RespondData(c, http.StatusOK, gin.H{"deleted": true})
}

func (m *ReactionsModule) commentReactionCounts(c *gin.Context) {
	var comment models.Comment
	if err := m.db.First(&comment, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "comment not found", "could not load comment"))
		return
	}

	var upvotes, downvotes int64
	m.db.Model(&models.CommentReaction{}).Where("comment_id = ? AND type = ?", comment.ID, models.ReactionUpvote).Count(&upvotes)
	m.db.Model(&models.CommentReaction{}).Where("comment_id = ? AND type = ?", comment.ID, models.ReactionDownvote).Count(&downvotes)

	common.RespondData(c, http.StatusOK, gin.H{"upvotes": upvotes, "downvotes": downvotes})
}
