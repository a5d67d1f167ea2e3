package posts

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quorum/analytics"
	"quorum/auth"
	"quorum/cache"
	"quorum/common"
	"quorum/models"
	"quorum/tags"
)

type PostsModule struct {
	db        *gorm.DB
	tokens    *auth.TokenService
	analytics *analytics.AnalyticsModule
}

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
)

func NewPostsModule(db *gorm.DB, tokens *auth.TokenService, analyticsModule *analytics.AnalyticsModule) *PostsModule {
	return &PostsModule{db: db, tokens: tokens, analytics: analyticsModule}
}

func (p *PostsModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/posts", p.listPosts)
	router.GET("/posts/:id", p.getPost)

	authed := router.Group("/")
	authed.Use(p.tokens.RequireAuthenticated, auth.RequireNotBanned(p.db))
	{
		authed.POST("/posts", p.createPost)
		authed.PUT("/posts/:id", p.updatePost)
		authed.DELETE("/posts/:id", p.deletePost)
	}
}

type postInput struct {
	Title string          `json:"title" binding:"required,max=300"`
	Body  string          `json:"body" binding:"required"`
	Tags  []tags.TagInput `json:"tags"`
}

// postView is the single-post read payload: the row plus the rendered body
// and the view count.
type postView struct {
	models.Post
	BodyHTML string `json:"body_html"`
	Views    int64  `json:"views"`
}

func (p *PostsModule) createPost(c *gin.Context) {
	authorID, ok := auth.PrincipalID(c)
	if !ok {
		common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
		return
	}

	var input postInput
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "title and body are required"))
		return
	}

	post := models.Post{
		AuthorID: authorID,
		Title:    input.Title,
		Body:     input.Body,
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return common.WrapE(common.KindInternal, "could not create post", err)
		}
		if len(input.Tags) == 0 {
			return nil
		}
		resolved, err := tags.FindOrCreateAll(tx, input.Tags)
		if err != nil {
			return err
		}
		if err := tx.Model(&post).Association("Tags").Replace(resolved); err != nil {
			return common.WrapE(common.KindInternal, "could not attach tags", err)
		}
		return nil
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var created models.Post
	if err := p.db.Preload("Tags").Preload("Files").First(&created, post.ID).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}
	common.RespondData(c, http.StatusCreated, created)
}

func (p *PostsModule) listPosts(c *gin.Context) {
	query := p.db.Model(&models.Post{}).Preload("Tags").Preload("Author").Order("posts.created_at DESC")

	if author := c.Query("author"); author != "" {
		query = query.Where("posts.author_id = ?", author)
	}
	if tag := c.Query("tag"); tag != "" {
		// distinct: the same key in two categories would join the post twice
		query = query.
			Distinct("posts.*").
			Joins("INNER JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("INNER JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.key = ?", tag)
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	var posts []models.Post
	if err := query.Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not list posts", err))
		return
	}
	common.RespondData(c, http.StatusOK, posts)
}

func (p *PostsModule) getPost(c *gin.Context) {
	var post models.Post
	err := p.db.Preload(clause.Associations).
		Preload("Comments.Author").
		First(&post, c.Param("id")).Error
	if err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}

	p.analytics.TrackView(c, post.ID)

	common.RespondData(c, http.StatusOK, postView{
		Post:     post,
		BodyHTML: renderMarkdown(post.Body),
		Views:    p.analytics.GetPostViewCount(post.ID),
	})
}

func (p *PostsModule) updatePost(c *gin.Context) {
	var post models.Post
	if err := p.db.First(&post, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}

	if err := p.tokens.RequireOwner(post.AuthorID, c.GetHeader("Authorization")); err != nil {
		common.RespondError(c, err)
		return
	}

	var input postInput
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "title and body are required"))
		return
	}

	post.Title = input.Title
	post.Body = input.Body

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&post).Error; err != nil {
			return common.WrapE(common.KindInternal, "could not update post", err)
		}
		resolved, err := tags.FindOrCreateAll(tx, input.Tags)
		if err != nil {
			return err
		}
		if err := tx.Model(&post).Association("Tags").Replace(resolved); err != nil {
			return common.WrapE(common.KindInternal, "could not update tags", err)
		}
		return nil
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	cache.ClearPost(c.Param("id"))

	var updated models.Post
	if err := p.db.Preload("Tags").Preload("Files").First(&updated, post.ID).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}
	common.RespondData(c, http.StatusOK, updated)
}

func (p *PostsModule) deletePost(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.RespondError(c, common.E(common.KindValidation, "invalid post id"))
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}

	// author, or moderation override
	if err := p.tokens.RequireOwner(post.AuthorID, c.GetHeader("Authorization")); err != nil {
		claims, ok := auth.Principal(c)
		if !ok || !claims.Role.AtLeast(models.RoleModerator) {
			common.RespondError(c, err)
			return
		}
	}

	if err := p.db.Delete(&post).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete post", err))
		return
	}

	cache.ClearPost(c.Param("id"))
	common.RespondData(c, http.StatusOK, gin.H{"deleted": postID})
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return buf.String()
}
