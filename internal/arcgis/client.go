// Package arcgis is a minimal client for ArcGIS-style feature services:
// paginated /query requests, count and distinct-value queries, and layer
// metadata. It is deliberately read-only.
package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lanesville-research/parcel-cli/internal/resilience"
)

const (
	defaultPageSize = 1000
	defaultTimeout  = 30 * time.Second
	retryWait       = 500 * time.Millisecond
)

// Options configures a Client. Zero values fall back to service-friendly
// defaults.
type Options struct {
	// Endpoint is the layer URL, e.g. ".../FeatureServer/0". Required.
	Endpoint string
	// UserAgent identifies this tool to the service operator.
	UserAgent string
	// Timeout bounds each page request independently.
	Timeout time.Duration
	// PageSize is the resultRecordCount sent per page.
	PageSize int
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int
	// RateLimit is the request budget in requests per second.
	RateLimit float64
}

// Client queries one feature service layer.
type Client struct {
	endpoint   string
	userAgent  string
	pageSize   int
	maxRetries int
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewClient builds a Client for the layer at opts.Endpoint.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "parcel-cli/1.0"
	}

	return &Client{
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		userAgent:  opts.UserAgent,
		pageSize:   opts.PageSize,
		maxRetries: opts.MaxRetries,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		log:        zap.L().With(zap.String("component", "arcgis")),
	}
}

// Endpoint returns the layer URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// PageSize returns the per-page record count the client requests.
func (c *Client) PageSize() int {
	return c.pageSize
}

// MunicipalityWhere builds a where clause matching a town name against the
// three field spellings seen across service vintages.
func MunicipalityWhere(town string) string {
	esc := strings.ReplaceAll(town, "'", "''")
	return fmt.Sprintf("MUNI_NAME = '%s' OR MuniName = '%s' OR MUNICIPALITY = '%s'", esc, esc, esc)
}

// Query fetches one page of features at the given offset.
func (c *Client) Query(ctx context.Context, p QueryParams, offset, count int) (*FeatureSet, error) {
	params := c.queryValues(p)
	params.Set("resultOffset", strconv.Itoa(offset))
	params.Set("resultRecordCount", strconv.Itoa(count))

	var resp queryResponse
	if err := c.get(ctx, "query", c.endpoint+"/query", params, &resp); err != nil {
		return nil, err
	}
	return &FeatureSet{
		Features:              resp.Features,
		ExceededTransferLimit: resp.ExceededTransferLimit,
	}, nil
}

// QueryAll pages through the full result set for p. It stops when the
// service returns an empty or short page, or when maxRecords have been
// accumulated (maxRecords <= 0 means unlimited). Hitting the cap truncates
// the result; it is not an error. Any failed page fails the whole fetch,
// since a half-downloaded dataset is worse than none.
func (c *Client) QueryAll(ctx context.Context, p QueryParams, maxRecords int) ([]Feature, error) {
	var all []Feature
	offset := 0

	for {
		pageSize := c.pageSize
		if maxRecords > 0 && maxRecords-len(all) < pageSize {
			pageSize = maxRecords - len(all)
		}

		page, err := c.Query(ctx, p, offset, pageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Features...)
		c.log.Debug("fetched page",
			zap.Int("offset", offset),
			zap.Int("page_records", len(page.Features)),
			zap.Int("total_records", len(all)))

		if maxRecords > 0 && len(all) >= maxRecords {
			c.log.Info("record cap reached, truncating fetch",
				zap.Int("cap", maxRecords), zap.Int("records", len(all)))
			return all[:maxRecords], nil
		}
		if len(page.Features) == 0 || len(page.Features) < pageSize {
			return all, nil
		}
		offset += len(page.Features)
	}
}

// Count returns the number of features matching p without fetching them.
func (c *Client) Count(ctx context.Context, p QueryParams) (int, error) {
	params := c.queryValues(p)
	params.Set("returnCountOnly", "true")

	var resp queryResponse
	if err := c.get(ctx, "count", c.endpoint+"/query", params, &resp); err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, &FetchError{Op: "count", URL: c.endpoint, Err: eris.New("response missing count")}
	}
	return *resp.Count, nil
}

// DistinctValues returns the sorted distinct non-empty values of one
// attribute field, e.g. the municipalities a layer covers.
func (c *Client) DistinctValues(ctx context.Context, field string, p QueryParams) ([]string, error) {
	p.OutFields = field
	p.OmitGeometry = true
	params := c.queryValues(p)
	params.Set("returnDistinctValues", "true")

	var resp queryResponse
	if err := c.get(ctx, "distinct", c.endpoint+"/query", params, &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(resp.Features))
	var values []string
	for _, f := range resp.Features {
		raw, ok := f.Attributes[field]
		if !ok {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(raw))
		if v == "" || v == "<nil>" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

// Info fetches the layer metadata. Used by endpoint discovery to decide
// whether a candidate URL is a live parcel layer.
func (c *Client) Info(ctx context.Context) (*ServiceInfo, error) {
	var info ServiceInfo
	if err := c.get(ctx, "info", c.endpoint, url.Values{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// queryValues renders p as the common /query parameters.
func (c *Client) queryValues(p QueryParams) url.Values {
	where := p.Where
	if where == "" {
		where = "1=1"
	}
	outFields := p.OutFields
	if outFields == "" {
		outFields = "*"
	}

	params := url.Values{
		"where":     {where},
		"outFields": {outFields},
		"f":         {"json"},
	}
	if p.OmitGeometry {
		params.Set("returnGeometry", "false")
	} else {
		params.Set("returnGeometry", "true")
		params.Set("outSR", "4326")
	}
	if p.BBox != nil {
		params.Set("geometry", p.BBox.Envelope())
		params.Set("geometryType", "esriGeometryEnvelope")
		params.Set("inSR", "4326")
		params.Set("spatialRel", "esriSpatialRelIntersects")
	}
	return params
}

// get performs one GET with rate limiting and the transient-retry policy,
// decoding the JSON body into out. Failures come back as *FetchError.
func (c *Client) get(ctx context.Context, op, baseURL string, params url.Values, out any) error {
	reqURL := baseURL
	params.Set("f", "json")
	if enc := params.Encode(); enc != "" {
		reqURL += "?" + enc
	}

	err := resilience.Do(ctx, c.maxRetries, retryWait, func(ctx context.Context) error {
		return c.once(ctx, reqURL, out)
	})
	if err != nil {
		var status int
		var te *resilience.TransientError
		if errors.As(err, &te) {
			status = te.StatusCode
		}
		return &FetchError{Op: op, URL: reqURL, Status: status, Err: err}
	}
	return nil
}

// once performs a single request attempt. Retryable failures are wrapped
// as resilience.TransientError so Do knows to try again.
func (c *Client) once(ctx context.Context, reqURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors (timeouts, resets) are worth one more try.
		return resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("unexpected status %d", resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			c.log.Warn("transient upstream status, will retry",
				zap.Int("status", resp.StatusCode), zap.String("url", reqURL))
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
	}

	// Some services answer 200 with an error object in the body. Those are
	// query rejections, not transient conditions, so no retry.
	var env struct {
		Error *esriError `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return env.Error
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "parse response")
	}
	return nil
}
