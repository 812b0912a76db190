package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/metrics"
)

const (
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond

	itemFields = "Genres,Overview,DateCreated,MediaStreams"
)

// Options tunes request pacing and failure handling. Zero values pick defaults.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 = unlimited
	Burst             int
	BreakerFailures   uint32 // consecutive failures before the breaker opens
	BreakerTimeout    time.Duration
	RetryDelay        time.Duration // base delay between 5xx retries
}

// Client implements domain.MediaClient for Jellyfin
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ domain.MediaClient = (*Client)(nil)

// NewClient creates a new Jellyfin API client
func NewClient(baseURL, token, userID string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = baseRetryDelay
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:    rate.NewLimiter(limit, burst),
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}

	failures := opts.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "jellyfin",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only unreachable-server failures count against the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsConnectivity(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("jellyfin circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.ClientBreakerState.Set(float64(to))
		},
	})

	return c
}

// UserID returns the user this client acts for
func (c *Client) UserID() string { return c.userID }

// do runs a request through the circuit breaker. An open breaker reports
// ErrServerOffline so callers treat it like any other outage.
func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, http.MethodGet, path, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ClientRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	return body, err
}

// doRequest performs an authenticated HTTP request to the Jellyfin API
// Includes retry logic with exponential backoff for 5xx server errors
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL = reqURL + "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "path", path)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Emby-Authorization", buildAuthHeader(c.token))

		c.logger.Debug("jellyfin request", "method", method, "path", path, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.ClientRequests.WithLabelValues("offline").Inc()
			c.logger.Error("jellyfin request failed", "error", err, "path", path)
			return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrServerOffline, err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			metrics.ClientRequests.WithLabelValues("unauthorized").Inc()
			return nil, domain.ErrAuthFailed
		case resp.StatusCode == http.StatusNotFound:
			metrics.ClientRequests.WithLabelValues("not_found").Inc()
			return nil, domain.ErrItemNotFound
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: server error %d", domain.ErrServerOffline, resp.StatusCode)
			c.logger.Warn("jellyfin server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", path,
			)
			continue
		case resp.StatusCode != http.StatusOK:
			metrics.ClientRequests.WithLabelValues("error").Inc()
			c.logger.Error("jellyfin request error", "status", resp.StatusCode, "body", string(body))
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		metrics.ClientRequests.WithLabelValues("ok").Inc()
		return body, nil
	}

	metrics.ClientRequests.WithLabelValues("server_error").Inc()
	c.logger.Error("jellyfin request failed after retries", "error", lastErr, "path", path)
	return nil, lastErr
}

// GetLibraryViews returns the user's top-level libraries
func (c *Client) GetLibraryViews(ctx context.Context) ([]domain.Library, error) {
	body, err := c.do(ctx, fmt.Sprintf("/Users/%s/Views", c.userID), nil)
	if err != nil {
		return nil, err
	}

	var resp ItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return MapLibraries(resp.Items), nil
}

// GetItems returns items matching q
func (c *Client) GetItems(ctx context.Context, q domain.ItemQuery) ([]*domain.MediaItem, error) {
	body, err := c.do(ctx, fmt.Sprintf("/Users/%s/Items", c.userID), itemsQuery(q))
	if err != nil {
		return nil, err
	}

	var resp ItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	items := MapItems(resp.Items)
	if q.ParentID != "" {
		for _, item := range items {
			item.LibraryID = q.ParentID
		}
	}
	return items, nil
}

// GetItem returns detailed metadata for a specific item
func (c *Client) GetItem(ctx context.Context, itemID string) (*domain.MediaItem, error) {
	query := url.Values{}
	query.Set("Fields", itemFields)

	body, err := c.do(ctx, fmt.Sprintf("/Users/%s/Items/%s", c.userID, url.PathEscape(itemID)), query)
	if err != nil {
		return nil, err
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	mi, ok := MapItem(item)
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return mi, nil
}

// itemsQuery translates an ItemQuery into /Users/{id}/Items parameters.
func itemsQuery(q domain.ItemQuery) url.Values {
	query := url.Values{}
	query.Set("Recursive", "true")
	query.Set("Fields", itemFields)

	if q.ParentID != "" {
		query.Set("ParentId", q.ParentID)
	}
	if len(q.Types) > 0 {
		types := make([]string, 0, len(q.Types))
		for _, t := range q.Types {
			types = append(types, itemType(t))
		}
		query.Set("IncludeItemTypes", strings.Join(types, ","))
	}
	if len(q.GenreIDs) > 0 {
		query.Set("GenreIds", strings.Join(q.GenreIDs, "|"))
	}
	if len(q.ExcludeIDs) > 0 {
		query.Set("ExcludeItemIds", strings.Join(q.ExcludeIDs, ","))
	}
	if q.SortBy != domain.SortNone {
		query.Set("SortBy", string(q.SortBy))
		if q.Descending {
			query.Set("SortOrder", "Descending")
		} else {
			query.Set("SortOrder", "Ascending")
		}
	}

	var filters []string
	if q.Played != nil {
		if *q.Played {
			filters = append(filters, "IsPlayed")
		} else {
			filters = append(filters, "IsUnplayed")
		}
	}
	if q.Favorite {
		filters = append(filters, "IsFavorite")
	}
	if len(filters) > 0 {
		query.Set("Filters", strings.Join(filters, ","))
	}

	if q.Limit > 0 {
		query.Set("Limit", strconv.Itoa(q.Limit))
	}
	return query
}
