package cache

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"quorum/common"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware caches the public single-post read. Anything else passes
// through untouched.
func Middleware(maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		postID, ok := postIDFromPath(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}

		if cached, found := ReadCache(postID, maxAge); found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() == http.StatusOK {
			if err := WriteCache(postID, writer.body.String()); err != nil {
				common.Log.WithError(err).WithField("post", postID).Warn("could not write post cache")
			}
		}
	}
}

// postIDFromPath matches exactly /posts/:id, leaving sub-resources
// (comments, reactions, files) uncached.
func postIDFromPath(path string) (string, bool) {
	if !strings.HasPrefix(path, "/posts/") {
		return "", false
	}
	id := strings.TrimPrefix(path, "/posts/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	for _, ch := range id {
		if ch < '0' || ch > '9' {
			return "", false
		}
	}
	return id, true
}
