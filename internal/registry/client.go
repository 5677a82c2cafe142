// Package registry resolves listed company names to company-registry records
// through the registry search API and fuzzy name similarity.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/resilience"
)

// Candidate is one search hit from the registry API.
type Candidate struct {
	CompanyName  Text `json:"companyName"`
	CompanyNo    Text `json:"companyNo"`
	OldCompanyNo Text `json:"oldCompanyNo"`
	EntityType   Text `json:"entityType"`
}

// Text decodes a JSON string, number or null into a string. Numbers keep
// their literal form; null becomes "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}

// Searcher looks up registry candidates for a free-text name.
type Searcher interface {
	Search(ctx context.Context, name string) ([]Candidate, error)
}

// Client calls the registry search endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewClient builds a rate-limited client from cfg.
func NewClient(cfg config.RegistryConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.DelayMs > 0 {
		limit = rate.Every(time.Duration(cfg.DelayMs) * time.Millisecond)
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	retry.OnRetry = resilience.RetryLogger("registry", "search")

	return &Client{
		endpoint: strings.TrimSuffix(cfg.BaseURL, "/") + "/search",
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
		retry:    retry,
	}
}

// Search queries the registry with the raw name. A 200 response whose body is
// not a JSON array yields no candidates. Transient failures (429, 5xx,
// network) are retried before an error is returned.
func (c *Client) Search(ctx context.Context, name string) ([]Candidate, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Candidate, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "registry: rate limiter wait")
		}
		return c.search(ctx, name)
	})
}

func (c *Client) search(ctx context.Context, name string) ([]Candidate, error) {
	u := c.endpoint + "?" + url.Values{"query": {name}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: search %q", name)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "registry: read body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("registry: search %q: status %d", name, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, eris.Errorf("registry: search %q: malformed JSON (%s)", name, snippet(trimmed))
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil
	}

	var out []Candidate
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, eris.Wrapf(err, "registry: decode candidates for %q", name)
	}
	return out, nil
}

func snippet(b []byte) string {
	const limit = 80
	if len(b) > limit {
		return strconv.Quote(string(b[:limit])) + "..."
	}
	return strconv.Quote(string(b))
}
