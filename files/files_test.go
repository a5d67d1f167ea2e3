package files

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"quorum/auth"
	"quorum/models"
)

func setupTest(t *testing.T) (*gorm.DB, *gin.Engine, *auth.TokenService, *FakeFileStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal("failed to connect database")
	}
	db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.File{})

	tokens := auth.NewTokenService("secret", time.Hour)
	store := NewFakeFileStore()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewFilesModule(db, tokens, store).RegisterRoutes(router)
	return db, router, tokens, store
}

func createTestUser(db *gorm.DB, email string, role models.Role) *models.User {
	user := &models.User{Email: email, PasswordHash: "x", Name: "Test", Role: role}
	db.Create(user)
	return user
}

func createTestPost(db *gorm.DB, authorID int) *models.Post {
	post := &models.Post{AuthorID: authorID, Title: "Test Post", Body: "body"}
	db.Create(post)
	return post
}

func uploadRequest(router *gin.Engine, path, token, filename, title string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", filename)
	part.Write(content)
	if title != "" {
		writer.WriteField("title", title)
	}
	writer.Close()

	req, _ := http.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadPostFile(t *testing.T) {
	db, router, tokens, store := setupTest(t)
	user := createTestUser(db, "author@example.com", models.RoleUser)
	post := createTestPost(db, user.ID)
	token, _ := tokens.Issue(strconv.Itoa(user.ID), user.Role)

	path := "/posts/" + strconv.FormatUint(uint64(post.ID), 10) + "/files"
	w := uploadRequest(router, path, token, "shot.png", "Screenshot", []byte("pngbytes"))
	assert.Equal(t, http.StatusCreated, w.Code)

	var file models.File
	assert.NoError(t, db.Where("post_id = ?", post.ID).First(&file).Error)
	assert.Equal(t, "Screenshot", file.Title)
	assert.True(t, strings.HasPrefix(file.RemoteURL, "https://files.invalid/"))
	assert.True(t, strings.HasSuffix(file.RemoteURL, ".png"))

	key := strings.TrimPrefix(file.RemoteURL, "https://files.invalid/")
	data, ok := store.Stored(key)
	assert.True(t, ok)
	assert.Equal(t, []byte("pngbytes"), data)
}

func TestUploadPostFile_TitleDefaultsToFilename(t *testing.T) {
	db, router, tokens, _ := setupTest(t)
	user := createTestUser(db, "author@example.com", models.RoleUser)
	post := createTestPost(db, user.ID)
	token, _ := tokens.Issue(strconv.Itoa(user.ID), user.Role)

	path := "/posts/" + strconv.FormatUint(uint64(post.ID), 10) + "/files"
	w := uploadRequest(router, path, token, "trace.log", "", []byte("log"))
	assert.Equal(t, http.StatusCreated, w.Code)

	var file models.File
	db.Where("post_id = ?", post.ID).First(&file)
	assert.Equal(t, "trace.log", file.Title)
}

func TestUploadPostFile_NonOwnerRejected(t *testing.T) {
	db, router, tokens, _ := setupTest(t)
	author := createTestUser(db, "author@example.com", models.RoleUser)
	other := createTestUser(db, "other@example.com", models.RoleUser)
	post := createTestPost(db, author.ID)

	otherToken, _ := tokens.Issue(strconv.Itoa(other.ID), other.Role)
	path := "/posts/" + strconv.FormatUint(uint64(post.ID), 10) + "/files"
	w := uploadRequest(router, path, otherToken, "shot.png", "", []byte("x"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var count int64
	db.Model(&models.File{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestUploadPostFile_PostNotFound(t *testing.T) {
	db, router, tokens, _ := setupTest(t)
	user := createTestUser(db, "author@example.com", models.RoleUser)
	token, _ := tokens.Issue(strconv.Itoa(user.ID), user.Role)

	w := uploadRequest(router, "/posts/9999/files", token, "shot.png", "", []byte("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadPostFile_MissingPart(t *testing.T) {
	db, router, tokens, _ := setupTest(t)
	user := createTestUser(db, "author@example.com", models.RoleUser)
	post := createTestPost(db, user.ID)
	token, _ := tokens.Issue(strconv.Itoa(user.ID), user.Role)

	req, _ := http.NewRequest("POST", "/posts/"+strconv.FormatUint(uint64(post.ID), 10)+"/files", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ValidationError")
}

func TestUploadCommentFile(t *testing.T) {
	db, router, tokens, _ := setupTest(t)
	user := createTestUser(db, "author@example.com", models.RoleUser)
	post := createTestPost(db, user.ID)
	comment := &models.Comment{AuthorID: user.ID, PostID: post.ID, Body: "see attached"}
	db.Create(comment)

	token, _ := tokens.Issue(strconv.Itoa(user.ID), user.Role)
	path := "/comments/" + strconv.FormatUint(uint64(comment.ID), 10) + "/files"
	w := uploadRequest(router, path, token, "patch.diff", "", []byte("diff"))
	assert.Equal(t, http.StatusCreated, w.Code)

	var file models.File
	assert.NoError(t, db.Where("comment_id = ?", comment.ID).First(&file).Error)
}

func TestDeleteFile_OwnerOrModerator(t *testing.T) {
	db, router, tokens, _ := setupTest(t)
	author := createTestUser(db, "author@example.com", models.RoleUser)
	other := createTestUser(db, "other@example.com", models.RoleUser)
	mod := createTestUser(db, "mod@example.com", models.RoleModerator)
	post := createTestPost(db, author.ID)

	file := &models.File{Title: "shot.png", RemoteURL: "https://files.invalid/k.png", PostID: &post.ID}
	db.Create(file)
	path := "/files/" + strconv.FormatUint(uint64(file.ID), 10)

	otherToken, _ := tokens.Issue(strconv.Itoa(other.ID), other.Role)
	req, _ := http.NewRequest("DELETE", path, nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	modToken, _ := tokens.Issue(strconv.Itoa(mod.ID), mod.Role)
	req, _ = http.NewRequest("DELETE", path, nil)
	req.Header.Set("Authorization", "Bearer "+modToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.File{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestGetFile(t *testing.T) {
	db, router, _, _ := setupTest(t)
	user := createTestUser(db, "author@example.com", models.RoleUser)
	post := createTestPost(db, user.ID)
	file := &models.File{Title: "shot.png", RemoteURL: "https://files.invalid/k.png", PostID: &post.ID}
	db.Create(file)

	req, _ := http.NewRequest("GET", "/files/"+strconv.FormatUint(uint64(file.ID), 10), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://files.invalid/k.png")
}
