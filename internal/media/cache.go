package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
)

// Downloads are capped; avatars are small and a misbehaving URL must not
// fill the disk.
const maxAvatarBytes = 4 << 20

// Cache stores downloaded avatar images on the local filesystem, keyed by
// the hash of their URL. Saves are idempotent and atomic, so concurrent
// prefetches of the same avatar are harmless.
type Cache struct {
	root string
	http *http.Client
}

func NewCache(root string) (*Cache, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{root: root, http: &http.Client{}}, nil
}

func urlHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) getPath(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(c.root, hash)
	}
	return filepath.Join(c.root, hash[:2], hash)
}

// Prefetch downloads the avatar at url into the cache. It is best-effort:
// failures are logged and swallowed, the caller never depends on it.
func (c *Cache) Prefetch(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := c.fetch(ctx, url); err != nil {
		log.Printf("media: avatar prefetch failed for %s: %v", url, err)
	}
}

func (c *Cache) fetch(ctx context.Context, url string) error {
	path := c.getPath(urlHash(url))

	// Idempotency check
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("avatar fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		return fmt.Errorf("failed to read avatar body: %w", err)
	}

	if !filetype.IsImage(data) {
		return fmt.Errorf("avatar at %s is not an image", url)
	}

	return c.save(path, data)
}

func (c *Cache) save(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Write to temporary file first
	tmp, err := os.CreateTemp(dir, "avatar-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name()) // Clean up if rename fails
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomically rename
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get returns the cached avatar bytes for url, or models-agnostic
// os.ErrNotExist when it was never fetched.
func (c *Cache) Get(url string) (io.ReadCloser, error) {
	return os.Open(c.getPath(urlHash(url)))
}
