// Package publisher pushes finished articles to a WordPress site over the
// REST v2 API using application-password authentication.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"pressline/internal/cache"
	"pressline/internal/config"
	"pressline/internal/logging"
	"pressline/internal/services"
)

const serviceName = "publisher"

// Post is the publishable unit handed to the client.
type Post struct {
	Title      string
	HTML       string
	Excerpt    string
	Categories []string
	Tags       []string
	Media      cache.MediaReference
}

// Client talks to one WordPress site. One instance is shared by all batch
// workers, so lastPost and termMemo are guarded by mu.
type Client struct {
	cfg        config.Publisher
	httpClient *http.Client
	interval   time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	lastPost time.Time
	termMemo map[string]int
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for non-fatal drops.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a publisher client from configuration.
func NewClient(cfg config.Publisher, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		interval:   time.Duration(cfg.PostIntervalSeconds) * time.Second,
		logger:     logging.NewNop(),
		termMemo:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Publish creates the post, or updates it in place when remotePostID names
// an existing post from an earlier run. It returns the remote post ID.
func (c *Client) Publish(ctx context.Context, post Post, remotePostID string) (string, error) {
	if err := c.pace(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"title":   post.Title,
		"content": post.HTML,
		"status":  c.cfg.Status,
	}
	if post.Excerpt != "" {
		payload["excerpt"] = post.Excerpt
	}

	categoryIDs, err := c.resolveTerms(ctx, "categories", post.Categories)
	if err != nil {
		return "", err
	}
	if len(categoryIDs) > 0 {
		payload["categories"] = categoryIDs
	}
	tagIDs, err := c.resolveTerms(ctx, "tags", post.Tags)
	if err != nil {
		return "", err
	}
	if len(tagIDs) > 0 {
		payload["tags"] = tagIDs
	}

	// A featured image is nice to have; a post without one is still a post.
	if post.Media.ImageURL != "" {
		mediaID, err := c.sideloadImage(ctx, post.Media, post.Title)
		switch {
		case err != nil:
			c.logger.Warn("featured image sideload failed, publishing without it",
				logging.Error(err))
		case mediaID > 0:
			payload["featured_media"] = mediaID
		}
	}

	endpoint := c.cfg.BaseURL + "/wp-json/wp/v2/posts"
	if remotePostID != "" {
		endpoint += "/" + url.PathEscape(remotePostID)
	}
	body, err := c.postJSON(ctx, endpoint, payload, "publish post")
	if err != nil {
		return "", err
	}

	var created struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", services.Wrap(services.ErrTransient, serviceName, "publish post", "decode response", err)
	}
	if created.ID <= 0 {
		return "", services.Wrap(services.ErrTransient, serviceName, "publish post", "response missing post id", nil)
	}
	c.mu.Lock()
	c.lastPost = time.Now()
	c.mu.Unlock()
	return strconv.Itoa(created.ID), nil
}

// pace enforces the configured minimum interval between posts.
func (c *Client) pace(ctx context.Context) error {
	if c.interval <= 0 {
		return nil
	}
	c.mu.Lock()
	last := c.lastPost
	c.mu.Unlock()
	if last.IsZero() {
		return nil
	}
	wait := c.interval - time.Since(last)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resolveTerms maps term names to WordPress term IDs, creating terms that
// do not exist yet. taxonomy is "categories" or "tags".
func (c *Client) resolveTerms(ctx context.Context, taxonomy string, names []string) ([]int, error) {
	var ids []int
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		memoKey := taxonomy + ":" + strings.ToLower(name)
		c.mu.Lock()
		id, ok := c.termMemo[memoKey]
		c.mu.Unlock()
		if ok {
			ids = append(ids, id)
			continue
		}
		id, err := c.findTerm(ctx, taxonomy, name)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			id, err = c.createTerm(ctx, taxonomy, name)
			if err != nil {
				return nil, err
			}
		}
		c.mu.Lock()
		c.termMemo[memoKey] = id
		c.mu.Unlock()
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Client) findTerm(ctx context.Context, taxonomy, name string) (int, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/%s?search=%s", c.cfg.BaseURL, taxonomy, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrPermanent, serviceName, "find term", "new request", err)
	}
	body, err := c.send(req, "find term")
	if err != nil {
		return 0, err
	}
	var terms []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &terms); err != nil {
		return 0, services.Wrap(services.ErrTransient, serviceName, "find term", "decode response", err)
	}
	for _, term := range terms {
		if strings.EqualFold(term.Name, name) {
			return term.ID, nil
		}
	}
	return 0, nil
}

func (c *Client) createTerm(ctx context.Context, taxonomy, name string) (int, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/%s", c.cfg.BaseURL, taxonomy)
	body, err := c.postJSON(ctx, endpoint, map[string]any{"name": name}, "create term")
	if err != nil {
		return 0, err
	}
	var term struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &term); err != nil {
		return 0, services.Wrap(services.ErrTransient, serviceName, "create term", "decode response", err)
	}
	if term.ID <= 0 {
		return 0, services.Wrap(services.ErrTransient, serviceName, "create term", "response missing term id", nil)
	}
	return term.ID, nil
}

// sideloadImage downloads the resolved image and uploads it to the media
// library so it can serve as the featured image.
func (c *Client) sideloadImage(ctx context.Context, ref cache.MediaReference, title string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.ImageURL, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrPermanent, serviceName, "fetch image", "new request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, serviceName, "fetch image", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return 0, services.ClassifyHTTPStatus(serviceName, resp.StatusCode, nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, serviceName, "fetch image", "read body", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	filename := imageFilename(ref.ImageURL, contentType)

	upload, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return 0, services.Wrap(services.ErrPermanent, serviceName, "upload image", "new request", err)
	}
	upload.Header.Set("Content-Type", contentType)
	upload.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	body, err := c.send(upload, "upload image")
	if err != nil {
		return 0, err
	}

	var media struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &media); err != nil {
		return 0, services.Wrap(services.ErrTransient, serviceName, "upload image", "decode response", err)
	}

	if media.ID > 0 && (ref.ImageCredit != "" || title != "") {
		caption := ref.ImageCredit
		if caption != "" {
			caption = "Photo by " + caption
		}
		_, _ = c.postJSON(ctx, fmt.Sprintf("%s/wp-json/wp/v2/media/%d", c.cfg.BaseURL, media.ID),
			map[string]any{"alt_text": title, "caption": caption}, "annotate image")
	}
	return media.ID, nil
}

func imageFilename(imageURL, contentType string) string {
	name := "featured"
	if parsed, err := url.Parse(imageURL); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	if path.Ext(name) == "" {
		exts, _ := mime.ExtensionsByType(contentType)
		if len(exts) > 0 {
			name += exts[0]
		} else {
			name += ".jpg"
		}
	}
	return name
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload map[string]any, operation string) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrPermanent, serviceName, operation, "encode payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrPermanent, serviceName, operation, "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, operation)
}

func (c *Client) send(req *http.Request, operation string) ([]byte, error) {
	req.SetBasicAuth(c.cfg.Username, c.cfg.AppPassword)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, serviceName, operation, "http error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, serviceName, operation, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.ClassifyHTTPStatus(serviceName, resp.StatusCode, body)
	}
	return body, nil
}
