package files

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"quorum/auth"
	"quorum/cache"
	"quorum/common"
	"quorum/models"
)

type FilesModule struct {
	db     *gorm.DB
	tokens *auth.TokenService
	store  FileStore
}

func NewFilesModule(db *gorm.DB, tokens *auth.TokenService, store FileStore) *FilesModule {
	return &FilesModule{db: db, tokens: tokens, store: store}
}

func (m *FilesModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/files/:id", m.getFile)

	authed := router.Group("/")
	authed.Use(m.tokens.RequireAuthenticated, auth.RequireNotBanned(m.db))
	{
		authed.POST("/posts/:id/files", m.uploadPostFile)
		authed.POST("/comments/:id/files", m.uploadCommentFile)
		authed.DELETE("/files/:id", m.deleteFile)
	}
}

// uploadPostFile attaches an uploaded object to a post the caller owns. The
// metadata row is written only after the upload succeeded.
func (m *FilesModule) uploadPostFile(c *gin.Context) {
	var post models.Post
	if err := m.db.First(&post, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "post not found", "could not load post"))
		return
	}

	if err := m.tokens.RequireOwner(post.AuthorID, c.GetHeader("Authorization")); err != nil {
		common.RespondError(c, err)
		return
	}

	file, err := m.storeUpload(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	file.PostID = &post.ID
	if err := m.db.Create(file).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not save file", err))
		return
	}

	cache.ClearPost(c.Param("id"))
	common.RespondData(c, http.StatusCreated, file)
}

func (m *FilesModule) uploadCommentFile(c *gin.Context) {
	var comment models.Comment
	if err := m.db.First(&comment, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "comment not found", "could not load comment"))
		return
	}

	if err := m.tokens.RequireOwner(comment.AuthorID, c.GetHeader("Authorization")); err != nil {
		common.RespondError(c, err)
		return
	}

	file, err := m.storeUpload(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	file.CommentID = &comment.ID
	if err := m.db.Create(file).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not save file", err))
		return
	}

	cache.ClearPost(strconv.FormatUint(uint64(comment.PostID), 10))
	common.RespondData(c, http.StatusCreated, file)
}

// storeUpload reads the multipart "file" part, pushes it to the object store
// and returns the unsaved metadata row.
func (m *FilesModule) storeUpload(c *gin.Context) (*models.File, error) {
	if m.store == nil {
		return nil, common.E(common.KindInternal, "file uploads are not configured")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return nil, common.E(common.KindValidation, "multipart field 'file' is required")
	}

	title := c.PostForm("title")
	if title == "" {
		title = header.Filename
	}

	src, err := header.Open()
	if err != nil {
		return nil, common.WrapE(common.KindInternal, "could not read upload", err)
	}
	defer src.Close()

	key := uuid.NewString() + filepath.Ext(header.Filename)
	remoteURL, err := m.store.Upload(key, src)
	if err != nil {
		return nil, common.WrapE(common.KindInternal, "could not upload file", err)
	}

	return &models.File{Title: title, RemoteURL: remoteURL}, nil
}

func (m *FilesModule) getFile(c *gin.Context) {
	var file models.File
	if err := m.db.First(&file, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "file not found", "could not load file"))
		return
	}
	common.RespondData(c, http.StatusOK, file)
}

func (m *FilesModule) deleteFile(c *gin.Context) {
	var file models.File
	if err := m.db.First(&file, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "file not found", "could not load file"))
		return
	}

	ownerID, err := m.fileOwner(&file)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	// owner of the parent resource, or moderation override
	if err := m.tokens.RequireOwner(ownerID, c.GetHeader("Authorization")); err != nil {
		claims, ok := auth.Principal(c)
		if !ok || !claims.Role.AtLeast(models.RoleModerator) {
			common.RespondError(c, err)
			return
		}
	}

	if err := m.db.Delete(&file).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete file", err))
		return
	}

	if file.PostID != nil {
		cache.ClearPost(strconv.FormatUint(uint64(*file.PostID), 10))
	}
	common.RespondData(c, http.StatusOK, gin.H{"deleted": file.ID})
}

func (m *FilesModule) fileOwner(file *models.File) (int, error) {
	if file.PostID != nil {
		var post models.Post
		if err := m.db.First(&post, *file.PostID).Error; err != nil {
			return 0, common.FromDB(err, "post not found", "could not load post")
		}
		return post.AuthorID, nil
	}
	if file.CommentID != nil {
		var comment models.Comment
		if err := m.db.First(&comment, *file.CommentID).Error; err != nil {
			return 0, common.FromDB(err, "comment not found", "could not load comment")
		}
		return comment.AuthorID, nil
	}
	return 0, common.E(common.KindNotFound, "file has no parent resource")
}
