// Package platform implements the per-platform sync adapters. Each adapter
// normalizes one platform's payload shape into the engine's uniform content
// record; the scraping provider itself is reached through the narrow
// ProviderClient contract and its request mechanics live outside this
// service.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/sync"
)

// ProviderPost is one raw post as the scraping provider returns it. Counter
// keys are platform-specific; adapters own the mapping.
type ProviderPost struct {
	ID           string           `json:"id"`
	Text         string           `json:"text"`
	ThumbnailURL string           `json:"thumbnail_url"`
	PostedAt     time.Time        `json:"posted_at"`
	Counters     map[string]int64 `json:"counters"`
	// Unavailable is set when the post cannot be fetched:
	// restricted, private or deleted.
	Unavailable string `json:"unavailable,omitempty"`
}

// ProviderPage is one page of a profile's post listing, newest first.
type ProviderPage struct {
	Posts      []ProviderPost `json:"posts"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ProviderProfile is the provider's view of a creator profile.
type ProviderProfile struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Followers   int64  `json:"followers"`
}

// ProviderClient is the narrow contract to the scraping provider.
type ProviderClient interface {
	// FetchPosts pages through a profile's posts, newest first.
	FetchPosts(ctx context.Context, platform models.Platform, username, cursor string, limit int) (ProviderPage, error)

	// FetchPostsByID fetches specific posts by native ID. Unavailable posts
	// come back with the Unavailable marker set, not as an error.
	FetchPostsByID(ctx context.Context, platform models.Platform, username string, nativeIDs []string) ([]ProviderPost, error)

	// FetchProfile fetches a creator profile. Returns nil when not found.
	FetchProfile(ctx context.Context, platform models.Platform, username string) (*ProviderProfile, error)
}

// HTTPProviderClient talks to the scraping provider's uniform HTTP API.
type HTTPProviderClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPProviderClient(baseURL, apiKey string, timeout time.Duration) *HTTPProviderClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProviderClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPProviderClient) FetchPosts(ctx context.Context, platform models.Platform, username, cursor string, limit int) (ProviderPage, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/%s/posts", c.baseURL, platform, url.PathEscape(username))

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var page ProviderPage
	if err := c.getJSON(ctx, endpoint+"?"+query.Encode(), &page); err != nil {
		return ProviderPage{}, err
	}
	return page, nil
}

func (c *HTTPProviderClient) FetchPostsByID(ctx context.Context, platform models.Platform, username string, nativeIDs []string) ([]ProviderPost, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/%s/posts:lookup", c.baseURL, platform, url.PathEscape(username))

	body, err := json.Marshal(map[string][]string{"ids": nativeIDs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Posts []ProviderPost `json:"posts"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return result.Posts, nil
}

func (c *HTTPProviderClient) FetchProfile(ctx context.Context, platform models.Platform, username string) (*ProviderProfile, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/%s/profile", c.baseURL, platform, url.PathEscape(username))

	var profile ProviderProfile
	err := c.getJSON(ctx, endpoint, &profile)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (c *HTTPProviderClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPProviderClient) do(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failures are transient by classification.
		return sync.NewRetryableError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotFound:
		return &notFoundError{url: req.URL.Path}
	case resp.StatusCode == http.StatusTooManyRequests:
		delay := parseRetryAfter(resp.Header.Get("Retry-After"))
		return sync.NewRetryableErrorWithDelay(
			fmt.Errorf("provider rate limited: %s", req.URL.Path), delay)
	case resp.StatusCode >= 500:
		return sync.NewRetryableError(
			fmt.Errorf("provider error %d: %s", resp.StatusCode, req.URL.Path))
	default:
		return fmt.Errorf("provider rejected request (%d): %s", resp.StatusCode, req.URL.Path)
	}
}

type notFoundError struct {
	url string
}

func (e *notFoundError) Error() string {
	return "not found: " + e.url
}

func isNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
