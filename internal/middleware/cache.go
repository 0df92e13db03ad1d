package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/notes-auth/internal/config"
	"github.com/iliyamo/notes-auth/internal/logging"
)

const defaultCacheTTL = 30 * time.Second

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	size     int64
	limit    int64
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.size += int64(len(b))
	if cw.limit > 0 && cw.size > cw.limit {
		cw.overflow = true
	}
	if !cw.overflow {
		cw.buf.Write(b)
	}
	return cw.ResponseWriter.Write(b)
}

// ResponseCache caches successful GET responses per authenticated user in
// Redis. Entries are keyed by user so one user's cached list can never be
// served to another, and writers call Invalidate to drop a user's entries.
// Keys also carry the user's generation, which Invalidate bumps, so a
// response rendered before a concurrent write is never served after it.
// A nil *ResponseCache or a nil client disables caching.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb redis.UniversalClient
	log logging.Logger
}

func NewResponseCache(cfg config.CacheConfig, rdb redis.UniversalClient, log logging.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	if log == nil {
		log = logging.Discard()
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) enabled() bool {
	return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

func (rc *ResponseCache) userPrefix(userID string) string {
	return fmt.Sprintf("%s:user:%s:", rc.cfg.Prefix, userID)
}

// genKey lives outside userPrefix so Invalidate's SCAN never deletes it.
// It has no expiry: a reset counter could revive entries of an old generation.
func (rc *ResponseCache) genKey(userID string) string {
	return fmt.Sprintf("%s:gen:%s", rc.cfg.Prefix, userID)
}

func (rc *ResponseCache) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := rc.rdb.Get(ctx, rc.genKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// key builds a stable cache key from user, generation, method, route and query.
func (rc *ResponseCache) key(userID string, gen int64, c echo.Context) string {
	r := c.Request()
	tail := strings.Join([]string{r.Method, c.Path(), r.URL.RawQuery}, ":")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s%d:%x", rc.userPrefix(userID), gen, sum[:])
}

// Middleware must run after Authenticate; requests without an identity are
// passed through uncached.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	maxBody := int64(rc.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			userID, ok := UserIDFrom(ctx)
			if !ok {
				return next(c)
			}
			gen, err := rc.generation(ctx, userID)
			if err != nil {
				rc.log.Warn(ctx, "cache generation read failed", "error", err)
				return next(c)
			}
			key := rc.key(userID, gen, c)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			} else if err != redis.Nil {
				rc.log.Warn(ctx, "cache read failed", "error", err)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow {
				return nil
			}

			// A write that invalidated during next may postdate what we rendered.
			if cur, err := rc.generation(ctx, userID); err != nil || cur != gen {
				return nil
			}

			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				rc.log.Warn(ctx, "cache write failed", "error", err)
			}
			return nil
		}
	}
}

// Invalidate retires the current generation of userID and removes every
// cached response of userID.
func (rc *ResponseCache) Invalidate(ctx context.Context, userID string) error {
	if !rc.enabled() {
		return nil
	}
	if err := rc.rdb.Incr(ctx, rc.genKey(userID)).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	var keys []string
	iter := rc.rdb.Scan(ctx, 0, rc.userPrefix(userID)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.rdb.Del(ctx, keys...).Err()
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
