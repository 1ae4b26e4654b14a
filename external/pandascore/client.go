package pandascore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/arfandy/cs-match-notify/internal/platform/logging"
	"github.com/arfandy/cs-match-notify/internal/platform/resilience"
	"github.com/arfandy/cs-match-notify/internal/usecase"
)

const (
	defaultBaseURL  = "https://api.pandascore.co"
	defaultPageSize = 50
	maxResponseSize = 6 << 20
)

var tokenParamRegex = regexp.MustCompile(`token=[^&\s"']+`)
var errPandaScoreTransient = crerr.New("pandascore transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the PandaScore CS match endpoints. Requests for the same
// path+query collapse through single flight, and repeated transient failures
// trip the breaker so polling cycles degrade instead of piling up.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		maxRetries:     maxRetries,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) FetchUpcoming(ctx context.Context, pageSize int) ([]usecase.ExternalMatch, error) {
	query := map[string]string{
		"sort":     "begin_at",
		"per_page": strconv.Itoa(normalizePageSize(pageSize)),
		"page":     "1",
	}
	out, err := c.fetchMatches(ctx, "/csgo/matches/upcoming", query)
	if err != nil {
		return nil, fmt.Errorf("fetch upcoming matches: %w", err)
	}
	return out, nil
}

func (c *Client) FetchRunning(ctx context.Context) ([]usecase.ExternalMatch, error) {
	query := map[string]string{
		"sort": "begin_at",
	}
	out, err := c.fetchMatches(ctx, "/csgo/matches/running", query)
	if err != nil {
		return nil, fmt.Errorf("fetch running matches: %w", err)
	}
	return out, nil
}

// FetchFinished pages most-recent-first so the first pages always cover the
// freshest results.
func (c *Client) FetchFinished(ctx context.Context, pageSize, page int) ([]usecase.ExternalMatch, error) {
	if page < 1 {
		page = 1
	}
	query := map[string]string{
		"sort":     "-end_at",
		"per_page": strconv.Itoa(normalizePageSize(pageSize)),
		"page":     strconv.Itoa(page),
	}
	out, err := c.fetchMatches(ctx, "/csgo/matches/past", query)
	if err != nil {
		return nil, fmt.Errorf("fetch finished matches page=%d: %w", page, err)
	}
	return out, nil
}

func (c *Client) FetchCanceled(ctx context.Context, pageSize int) ([]usecase.ExternalMatch, error) {
	query := map[string]string{
		"filter[status]": "canceled",
		"sort":           "-modified_at",
		"per_page":       strconv.Itoa(normalizePageSize(pageSize)),
		"page":           "1",
	}
	out, err := c.fetchMatches(ctx, "/csgo/matches", query)
	if err != nil {
		return nil, fmt.Errorf("fetch canceled matches: %w", err)
	}
	return out, nil
}

func (c *Client) fetchMatches(ctx context.Context, path string, query map[string]string) ([]usecase.ExternalMatch, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "pandascore circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("%w: match data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("token", c.token)

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	key := path + "?" + values.Encode()
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errPandaScoreTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return nil, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected response payload type %T", out)
	}

	return c.decodeMatchPage(ctx, raw)
}

// decodeMatchPage splits the page element by element so every match keeps its
// exact upstream bytes as the snapshot. A single malformed element is skipped,
// not fatal to the page.
func (c *Client) decodeMatchPage(ctx context.Context, raw []byte) ([]usecase.ExternalMatch, error) {
	var page matchPage
	if err := sonic.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode provider payload: %w", err)
	}

	out := make([]usecase.ExternalMatch, 0, len(page))
	for _, element := range page {
		var item matchItem
		if err := sonic.Unmarshal(element, &item); err != nil {
			c.logger.WarnContext(ctx, "skip undecodable provider match", "error", err)
			continue
		}
		if item.ID <= 0 {
			c.logger.WarnContext(ctx, "skip provider match without id")
			continue
		}
		out = append(out, usecase.ExternalMatch{
			ID:       item.ID,
			Status:   item.Status,
			BeginAt:  item.BeginAt,
			EndAt:    item.EndAt,
			Snapshot: append([]byte(nil), element...),
		})
	}
	return out, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errPandaScoreTransient, sanitizeSensitiveText(err.Error(), c.token))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errPandaScoreTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errPandaScoreTransient, resp.StatusCode, abbreviateBody(raw))
			} else {
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "pandascore request failed", "url", redactAPIURL(fullURL), "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func abbreviateBody(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 300 {
		return text[:300] + "..."
	}
	return text
}

func redactAPIURL(fullURL string) string {
	return tokenParamRegex.ReplaceAllString(fullURL, "token=REDACTED")
}

func sanitizeSensitiveText(value, token string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if token != "" {
		value = strings.ReplaceAll(value, token, "REDACTED")
	}
	return tokenParamRegex.ReplaceAllString(value, "token=REDACTED")
}

func normalizePageSize(pageSize int) int {
	if pageSize <= 0 {
		return defaultPageSize
	}
	if pageSize > 100 {
		return 100
	}
	return pageSize
}
