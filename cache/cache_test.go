package cache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func chTempDir(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	assert.NoError(t, err)
	assert.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestWriteReadCache(t *testing.T) {
	chTempDir(t)

	assert.NoError(t, WriteCache("42", `{"title":"hello"}`))

	body, ok := ReadCache("42", time.Minute)
	assert.True(t, ok)
	assert.Equal(t, `{"title":"hello"}`, body)
}

func TestReadCache_Miss(t *testing.T) {
	chTempDir(t)

	_, ok := ReadCache("404", time.Minute)
	assert.False(t, ok)
}

func TestReadCache_Expired(t *testing.T) {
	chTempDir(t)

	assert.NoError(t, WriteCache("42", "stale"))
	old := time.Now().Add(-time.Hour)
	assert.NoError(t, os.Chtimes(GetCachePath("42"), old, old))

	_, ok := ReadCache("42", time.Minute)
	assert.False(t, ok)
}

func TestClearPost(t *testing.T) {
	chTempDir(t)

	assert.NoError(t, WriteCache("42", "body"))
	assert.NoError(t, ClearPost("42"))

	_, ok := ReadCache("42", time.Minute)
	assert.False(t, ok)

	// clearing an absent entry is not an error
	assert.NoError(t, ClearPost("42"))
}

func setupMiddlewareRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(time.Minute))
	router.GET("/posts/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	return router
}

func TestMiddleware_HitAfterMiss(t *testing.T) {
	chTempDir(t)
	router := setupMiddlewareRouter()

	req, _ := http.NewRequest("GET", "/posts/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	first := w.Body.String()

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, first, w.Body.String())
}

func TestMiddleware_WriteFailureDoesNotFailRequest(t *testing.T) {
	chTempDir(t)
	// a plain file where the cache directory should be makes every write fail
	assert.NoError(t, os.WriteFile(cacheRoot, []byte("x"), 0644))
	router := setupMiddlewareRouter()

	req, _ := http.NewRequest("GET", "/posts/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
}

func TestClearOldCache(t *testing.T) {
	chTempDir(t)

	assert.NoError(t, WriteCache("1", "fresh"))
	assert.NoError(t, WriteCache("2", "stale"))
	old := time.Now().Add(-time.Hour)
	assert.NoError(t, os.Chtimes(GetCachePath("2"), old, old))

	assert.NoError(t, ClearOldCache(time.Minute))

	_, ok := ReadCache("1", time.Minute)
	assert.True(t, ok)
	_, ok = ReadCache("2", time.Minute)
	assert.False(t, ok)
}
