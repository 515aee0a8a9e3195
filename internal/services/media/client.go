// Package media resolves a featured image and an optional video embed for a
// topic using Unsplash-style image search and YouTube-style video lookup.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"pressline/internal/cache"
	"pressline/internal/config"
	"pressline/internal/services"
)

const serviceName = "media"

// Client resolves media for topics. Search results are memoized in-process
// so a retried or re-dispatched topic does not re-spend provider quota
// within one run.
type Client struct {
	cfg        config.Media
	httpClient *http.Client
	limiter    *rate.Limiter
	memo       *gocache.Cache
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

// NewClient constructs a media client from configuration.
func NewClient(cfg config.Media, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		memo:       gocache.New(ttl, 2*ttl),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Resolve finds a featured image and, when a video API key is configured, a
// video embed for the topic. Video lookup failures never fail the resolve:
// the embed is best-effort by policy.
func (c *Client) Resolve(ctx context.Context, topicText, category string) (cache.MediaReference, error) {
	query := strings.TrimSpace(topicText)
	if category = strings.TrimSpace(category); category != "" {
		query += " " + category
	}

	ref := cache.MediaReference{}
	if strings.TrimSpace(c.cfg.ImageAPIKey) != "" {
		image, err := c.searchImage(ctx, query)
		if err != nil {
			return cache.MediaReference{}, err
		}
		ref.ImageURL = image.URL
		ref.ImageCredit = image.Credit
	}

	if strings.TrimSpace(c.cfg.VideoAPIKey) != "" {
		video, err := c.lookupVideo(ctx, query)
		if err == nil {
			ref.VideoRef = video
		}
	}
	return ref, nil
}

type imageResult struct {
	URL    string
	Credit string
}

func (c *Client) searchImage(ctx context.Context, query string) (imageResult, error) {
	memoKey := "image:" + query
	if cached, ok := c.memo.Get(memoKey); ok {
		return cached.(imageResult), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return imageResult{}, services.Wrap(services.ErrTransient, serviceName, "image search", "rate limit wait", err)
	}

	endpoint := fmt.Sprintf("%s/search/photos?%s", c.cfg.ImageBaseURL, url.Values{
		"query":       {query},
		"per_page":    {"10"},
		"orientation": {"landscape"},
	}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return imageResult{}, services.Wrap(services.ErrPermanent, serviceName, "image search", "new request", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.cfg.ImageAPIKey)

	body, err := c.send(req, "image search")
	if err != nil {
		return imageResult{}, err
	}

	var parsed struct {
		Results []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
			URLs   struct {
				Regular string `json:"regular"`
			} `json:"urls"`
			User struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return imageResult{}, services.Wrap(services.ErrTransient, serviceName, "image search", "decode response", err)
	}

	for _, photo := range parsed.Results {
		if photo.Width < c.cfg.MinWidth || photo.Height < c.cfg.MinHeight {
			continue
		}
		if photo.URLs.Regular == "" {
			continue
		}
		result := imageResult{URL: photo.URLs.Regular, Credit: photo.User.Name}
		c.memo.SetDefault(memoKey, result)
		return result, nil
	}
	return imageResult{}, services.Wrap(services.ErrPermanent, serviceName, "image search",
		fmt.Sprintf("no image of at least %dx%d for %q", c.cfg.MinWidth, c.cfg.MinHeight, query), nil)
}

func (c *Client) lookupVideo(ctx context.Context, query string) (string, error) {
	memoKey := "video:" + query
	if cached, ok := c.memo.Get(memoKey); ok {
		return cached.(string), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", services.Wrap(services.ErrTransient, serviceName, "video lookup", "rate limit wait", err)
	}

	endpoint := fmt.Sprintf("%s/search?%s", c.cfg.VideoBaseURL, url.Values{
		"part":       {"snippet"},
		"q":          {query},
		"key":        {c.cfg.VideoAPIKey},
		"maxResults": {"1"},
		"type":       {"video"},
	}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, serviceName, "video lookup", "new request", err)
	}

	body, err := c.send(req, "video lookup")
	if err != nil {
		return "", err
	}

	var parsed struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrTransient, serviceName, "video lookup", "decode response", err)
	}
	if len(parsed.Items) == 0 || parsed.Items[0].ID.VideoID == "" {
		return "", services.Wrap(services.ErrPermanent, serviceName, "video lookup", "no results for "+query, nil)
	}

	embed := "https://www.youtube.com/embed/" + parsed.Items[0].ID.VideoID
	c.memo.SetDefault(memoKey, embed)
	return embed, nil
}

func (c *Client) send(req *http.Request, operation string) ([]byte, error) {
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
