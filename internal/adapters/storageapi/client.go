// Package storageapi is a domain.BlobStore backed by a remote object-storage HTTP API
// (POST/DELETE {base}/object/{bucket}/{path}, public reads under {base}/object/public/).
package storageapi

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"hostel_finder/internal/adapters/observability"
	"hostel_finder/internal/domain"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrUnauthorized = errors.New("storage: unauthorized")
	ErrForbidden    = errors.New("storage: forbidden")
	ErrConflict     = errors.New("storage: object exists")
)

const maxAttempts = 4

type Client struct {
	base     string
	hc       *http.Client
	key      string
	rl       *rate.Limiter
	maxBytes int64
}

func New(base, key string, rps int, maxBytes int64) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("storage API key is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("storage API base %q: %w", base, err)
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:     strings.TrimRight(base, "/"),
		hc:       &http.Client{Timeout: 30 * time.Second},
		key:      key,
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
		maxBytes: maxBytes,
	}, nil
}

// Upload sends the object in one request. The body is buffered so retries can resend it;
// anything over the size limit is refused before the network.
func (c *Client) Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) error {
	limit := c.maxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > limit {
		return domain.ErrImageTooLarge
	}
	return c.do(ctx, http.MethodPost, c.objectURL(bucket, path), body, contentType, "upload")
}

func (c *Client) Delete(ctx context.Context, bucket, path string) error {
	err := c.do(ctx, http.MethodDelete, c.objectURL(bucket, path), nil, "", "delete")
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// PublicURL with an empty path is the prefix shared by every object of bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return c.base + "/object/public/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func (c *Client) objectURL(bucket, path string) string {
	return c.base + "/object/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// do performs one call with client-side rate limiting and retries on 429 and
// transient 5xx, honoring Retry-After when provided.
func (c *Client) do(ctx context.Context, method, u string, body []byte, contentType, endpoint string) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("User-Agent", "hostel-finder/1.0")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("storage", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("storage", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusConflict:
			resp.Body.Close()
			// object names are unique, so a conflict on a resent upload is our earlier attempt
			if endpoint == "upload" && i > 0 {
				log.Debug().Str("url", u).Msg("upload already stored by a previous attempt")
				return nil
			}
			return ErrConflict

		case http.StatusRequestEntityTooLarge:
			resp.Body.Close()
			return domain.ErrImageTooLarge

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("storage %s: remote %d", endpoint, resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("storage %s: bad status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 when absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
