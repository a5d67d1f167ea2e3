package tags

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"quorum/auth"
	"quorum/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal("failed to connect database")
	}
	db.AutoMigrate(&models.User{}, &models.Category{}, &models.Tag{},
		&models.Post{}, &models.Comment{}, &models.PostReport{}, &models.CommentReport{})
	return db
}

func setupTest(t *testing.T) (*gorm.DB, *gin.Engine, *auth.TokenService) {
	t.Helper()
	db := setupTestDB(t)
	tokens := auth.NewTokenService("secret", time.Hour)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewTagsModule(db, tokens).RegisterRoutes(router)
	return db, router, tokens
}

func TestFindOrCreate_ReusesExisting(t *testing.T) {
	db := setupTestDB(t)
	category := models.Category{Name: "topic"}
	db.Create(&category)

	first, err := FindOrCreate(db, TagInput{Key: "go", CategoryID: category.ID})
	assert.NoError(t, err)

	second, err := FindOrCreate(db, TagInput{Key: "go", CategoryID: category.ID})
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&models.Tag{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestFindOrCreate_SameKeyDifferentCategory(t *testing.T) {
	db := setupTestDB(t)
	topics := models.Category{Name: "topics"}
	abuse := models.Category{Name: "abuse"}
	db.Create(&topics)
	db.Create(&abuse)

	a, err := FindOrCreate(db, TagInput{Key: "spam", CategoryID: topics.ID})
	assert.NoError(t, err)
	b, err := FindOrCreate(db, TagInput{Key: "spam", CategoryID: abuse.ID})
	assert.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestFindOrCreateAll_DeduplicatesRequest(t *testing.T) {
	db := setupTestDB(t)
	category := models.Category{Name: "topic"}
	db.Create(&category)

	tags, err := FindOrCreateAll(db, []TagInput{
		{Key: "go", CategoryID: category.ID},
		{Key: "go", CategoryID: category.ID},
		{Key: "sql", CategoryID: category.ID},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(tags))
}

func TestCreateTag_ModeratorGate(t *testing.T) {
	db, router, tokens := setupTest(t)
	category := models.Category{Name: "topic"}
	db.Create(&category)

	payload, _ := json.Marshal(TagInput{Key: "go", CategoryID: category.ID})

	userToken, _ := tokens.Issue("1", models.RoleUser)
	req, _ := http.NewRequest("POST", "/tags", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	modToken, _ := tokens.Issue("2", models.RoleModerator)
	req, _ = http.NewRequest("POST", "/tags", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+modToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateTag_UnknownCategory(t *testing.T) {
	_, router, tokens := setupTest(t)

	payload, _ := json.Marshal(TagInput{Key: "go", CategoryID: 9999})
	modToken, _ := tokens.Issue("2", models.RoleModerator)
	req, _ := http.NewRequest("POST", "/tags", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+modToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTags_CategoryFilter(t *testing.T) {
	db, router, _ := setupTest(t)
	topics := models.Category{Name: "topics"}
	abuse := models.Category{Name: "abuse"}
	db.Create(&topics)
	db.Create(&abuse)
	db.Create(&models.Tag{Key: "go", CategoryID: topics.ID})
	db.Create(&models.Tag{Key: "spam", CategoryID: abuse.ID})

	req, _ := http.NewRequest("GET", "/tags?category="+strconv.FormatUint(uint64(topics.ID), 10), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"go"`)
	assert.NotContains(t, w.Body.String(), `"spam"`)
}

func TestDeleteTag_NotFound(t *testing.T) {
	_, router, tokens := setupTest(t)

	modToken, _ := tokens.Issue("2", models.RoleModerator)
	req, _ := http.NewRequest("DELETE", "/tags/9999", nil)
	req.Header.Set("Authorization", "Bearer "+modToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTag_ClearsJoinRows(t *testing.T) {
	db, router, tokens := setupTest(t)
	category := models.Category{Name: "topic"}
	db.Create(&category)
	tag := models.Tag{Key: "go", CategoryID: category.ID}
	db.Create(&tag)

	post := models.Post{AuthorID: 1, Title: "Tagged", Body: "b"}
	db.Create(&post)
	assert.NoError(t, db.Model(&post).Association("Tags").Append(&tag))

	report := models.PostReport{AuthorID: 1, PostID: post.ID, Reason: "spam"}
	db.Create(&report)
	assert.NoError(t, db.Model(&report).Association("Tags").Append(&tag))

	modToken, _ := tokens.Issue("2", models.RoleModerator)
	req, _ := http.NewRequest("DELETE", "/tags/"+strconv.FormatUint(uint64(tag.ID), 10), nil)
	req.Header.Set("Authorization", "Bearer "+modToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var linkCount int64
	db.Table("post_tags").Where("tag_id = ?", tag.ID).Count(&linkCount)
	assert.Equal(t, int64(0), linkCount)

	db.Table("post_report_tags").Where("tag_id = ?", tag.ID).Count(&linkCount)
	assert.Equal(t, int64(0), linkCount)

	var reloaded models.Post
	assert.NoError(t, db.Preload("Tags").First(&reloaded, post.ID).Error)
	assert.Empty(t, reloaded.Tags)
}

func TestCategoryLifecycle(t *testing.T) {
	db, router, tokens := setupTest(t)
	modToken, _ := tokens.Issue("2", models.RoleModerator)

	payload, _ := json.Marshal(gin.H{"name": "topics"})
	req, _ := http.NewRequest("POST", "/categories", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+modToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	var category models.Category
	assert.NoError(t, db.Where("name = ?", "topics").First(&category).Error)

	payload, _ = json.Marshal(gin.H{"name": "renamed"})
	req, _ = http.NewRequest("PUT", "/categories/"+strconv.FormatUint(uint64(category.ID), 10), bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+modToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var renamed models.Category
	db.First(&renamed, category.ID)
	assert.Equal(t, "renamed", renamed.Name)
}
