package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// File-backed cache for public post reads. Entries are keyed by the post id
// and invalidated by every mutation that touches the post.

const cacheRoot = "cache"

// GetCachePath returns the cache file path for a post.
func GetCachePath(postID string) string {
	hash := generateHash("post:" + postID)
	return filepath.Join(cacheRoot, fmt.Sprintf("post_%s_%s.json", postID, hash[:16]))
}

// generateHash generates an xxHash hash for the given string.
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// EnsureCacheDir ensures the cache directory exists.
func EnsureCacheDir() error {
	return os.MkdirAll(cacheRoot, 0755)
}

// WriteCache stores the serialized JSON body for a post.
func WriteCache(postID, body string) error {
	if err := EnsureCacheDir(); err != nil {
		return err
	}
	return os.WriteFile(GetCachePath(postID), []byte(body), 0644)
}

// ReadCache returns the cached body for a post if present and not expired.
func ReadCache(postID string, maxAge time.Duration) (string, bool) {
	cachePath := GetCachePath(postID)

	info, err := os.Stat(cachePath)
	if err != nil {
		return "", false
	}
	if time.Since(info.ModTime()) > maxAge {
		return "", false
	}

	content, err := os.ReadFile(cachePath)
	if err != nil {
		return "", false
	}
	return string(content), true
}

// ClearPost removes the cached body for a post. Called after any write that
// changes what the post read would return.
func ClearPost(postID string) error {
	err := os.Remove(GetCachePath(postID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearOldCache removes cache files older than maxAge.
func ClearOldCache(maxAge time.Duration) error {
	return filepath.Walk(cacheRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}
		return nil
	})
}
