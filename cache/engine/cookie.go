package engine

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultCookieMaxSize int64 = 4 * 1024

// Cookie is the cookie engine: a 4 KB jar persisted as one
// newline-delimited file, keys and values net/url-encoded, enumeration
// walking the whole jar.
type Cookie struct {
	mu      sync.Mutex
	path    string
	maxSize int64
}

// NewCookie opens (creating if absent) the cookie jar file at path.
// maxSize <= 0 uses a default of 4 KB.
func NewCookie(path string, maxSize int64) *Cookie {
	if maxSize <= 0 {
		maxSize = defaultCookieMaxSize
	}
	return &Cookie{path: path, maxSize: maxSize}
}

func (c *Cookie) Name() string              { return NameCookie }
func (c *Cookie) Available() bool           { return true }
func (c *Cookie) MaxSize() int64            { return c.maxSize }
func (c *Cookie) SupportsTTLNatively() bool { return true }

func (c *Cookie) UsedSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	jar, err := c.readJarLocked()
	if err != nil {
		return 0
	}
	return jarSize(jar)
}

type cookieEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (c *Cookie) SetItem(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	jar, err := c.readJarLocked()
	if err != nil {
		return err
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	jar[key] = cookieEntry{value: value, expiresAt: expiresAt}

	if jarSize(jar) > c.maxSize {
		delete(jar, key)
		return fmt.Errorf("%w: cookie jar", ErrQuota)
	}
	return c.writeJarLocked(jar)
}

func (c *Cookie) GetItem(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	jar, err := c.readJarLocked()
	if err != nil {
		return "", false, err
	}
	entry, ok := jar[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(jar, key)
		_ = c.writeJarLocked(jar)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *Cookie) RemoveItem(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	jar, err := c.readJarLocked()
	if err != nil {
		return err
	}
	delete(jar, key)
	return c.writeJarLocked(jar)
}

func (c *Cookie) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeJarLocked(map[string]cookieEntry{})
}

func (c *Cookie) Keys(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	jar, err := c.readJarLocked()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	keys := make([]string, 0, len(jar))
	for k, entry := range jar {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (c *Cookie) HasItem(_ context.Context, key string) (bool, error) {
	_, ok, err := c.GetItem(context.Background(), key)
	return ok, err
}

func (c *Cookie) Length(ctx context.Context) (int, error) {
	keys, err := c.Keys(ctx)
	return len(keys), err
}

func (c *Cookie) Cleanup(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	jar, err := c.readJarLocked()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for k, entry := range jar {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(jar, k)
			removed++
		}
	}
	if removed > 0 {
		if err := c.writeJarLocked(jar); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// readJarLocked parses the newline-delimited jar file. A missing file is
// an empty jar, not an error. Caller must hold c.mu.
func (c *Cookie) readJarLocked() (map[string]cookieEntry, error) {
	jar := make(map[string]cookieEntry)
	f, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return jar, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cookie jar: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue // malformed record tolerated as absent
		}
		key, err := url.QueryUnescape(parts[0])
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(parts[1])
		if err != nil {
			continue
		}
		var expiresAt time.Time
		if parts[2] != "0" {
			unixNano, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				continue
			}
			expiresAt = time.Unix(0, unixNano)
		}
		jar[key] = cookieEntry{value: value, expiresAt: expiresAt}
	}
	return jar, scanner.Err()
}

// writeJarLocked rewrites the whole jar file. Caller must hold c.mu.
func (c *Cookie) writeJarLocked(jar map[string]cookieEntry) error {
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("write cookie jar: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for key, entry := range jar {
		expires := int64(0)
		if !entry.expiresAt.IsZero() {
			expires = entry.expiresAt.UnixNano()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", url.QueryEscape(key), url.QueryEscape(entry.value), expires)
	}
	return w.Flush()
}

func jarSize(jar map[string]cookieEntry) int64 {
	var total int64
	for key, entry := range jar {
		total += int64(len(key) + len(entry.value))
	}
	return total
}

var _ Engine = (*Cookie)(nil)
