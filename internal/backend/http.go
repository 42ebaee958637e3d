package backend

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

const maxResponseSize = 64 << 20

// Config holds build service connection settings
type Config struct {
	BaseURL       string
	Username      string
	Password      string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	UserAgent     string
}

// DefaultConfig returns default connection settings
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  time.Second,
		UserAgent:     "pkgstatus",
	}
}

// HTTPClient implements Client against the build service XML API
type HTTPClient struct {
	baseURL    string
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a client for the build service at cfg.BaseURL
func NewHTTPClient(cfg Config, logger *slog.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.NewPermanentf("backend base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.NewPermanentf("invalid backend base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

func (c *HTTPClient) BuildResults(ctx context.Context, project string, filter types.ResultFilter) ([]types.BuildResult, error) {
	query := url.Values{}
	view := filter.View
	if view == "" {
		view = "status"
	}
	query.Set("view", view)
	if filter.Package != "" {
		query.Set("package", filter.Package)
	}
	for _, code := range filter.Codes {
		query.Add("code", string(code))
	}
	for _, arch := range filter.Archs {
		query.Add("arch", arch)
	}
	for _, repo := range filter.Repos {
		query.Add("repository", repo)
	}
	if filter.LastBuild {
		query.Set("lastbuild", "1")
	}

	var doc resultList
	if err := c.get(ctx, "buildresult", "/build/"+url.PathEscape(project)+"/_result", query, &doc); err != nil {
		return nil, err
	}
	return doc.toTypes(), nil
}

func (c *HTTPClient) Repositories(ctx context.Context, project string) ([]types.Repository, error) {
	var doc projectMeta
	if err := c.get(ctx, "meta", "/source/"+url.PathEscape(project)+"/_meta", nil, &doc); err != nil {
		return nil, err
	}
	return doc.toTypes(), nil
}

func (c *HTTPClient) Directory(ctx context.Context, project, pkg string) ([]types.DirEntry, error) {
	query := url.Values{"expand": {"1"}}
	var doc directoryXML
	path := "/source/" + url.PathEscape(project) + "/" + url.PathEscape(pkg)
	if err := c.get(ctx, "directory", path, query, &doc); err != nil {
		return nil, err
	}
	return doc.toTypes(), nil
}

func (c *HTTPClient) Attributes(ctx context.Context, project string, attr types.AttributeRef) ([]types.Attribute, error) {
	query := url.Values{
		"namespace": {attr.Namespace},
		"name":      {attr.Name},
		"project":   {project},
	}
	var doc attributeXML
	if err := c.get(ctx, "attribute", "/search/attribute", query, &doc); err != nil {
		return nil, err
	}
	return doc.toTypes(attr), nil
}

func (c *HTTPClient) NewRequests(ctx context.Context) ([]types.Request, error) {
	query := url.Values{"match": {"(state/@name='new')"}}
	var doc collectionXML
	if err := c.get(ctx, "requests", "/search/request", query, &doc); err != nil {
		return nil, err
	}
	return doc.toTypes(), nil
}

func (c *HTTPClient) ProjectStatus(ctx context.Context, project string) (*types.ProjectStatus, error) {
	var doc packagesXML
	if err := c.get(ctx, "projectstatus", "/status/project/"+url.PathEscape(project), nil, &doc); err != nil {
		return nil, err
	}
	return doc.toTypes(project), nil
}

// retryAction determines what to do after a failed attempt
type retryAction int

const (
	actionRetry retryAction = iota
	actionFail
)

// handleError classifies err and returns whether and after which delay to retry
func (c *HTTPClient) handleError(err error, attempt int, endpoint string) (retryAction, time.Duration) {
	switch errors.ClassifyError(err) {
	case errors.ErrorClassTransient:
		if attempt >= c.config.RetryAttempts {
			return actionFail, 0
		}
		backoff := c.config.RetryBackoff * time.Duration(attempt)
		c.logger.Warn("transient backend error, retrying",
			"endpoint", endpoint,
			"attempt", attempt,
			"max_attempts", c.config.RetryAttempts,
			"backoff", backoff,
			"error", err)
		return actionRetry, backoff
	default:
		// not found, permanent and unknown errors are not retried
		return actionFail, 0
	}
}

func (c *HTTPClient) get(ctx context.Context, endpoint, path string, query url.Values, v interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		err := c.getOnce(ctx, endpoint, path, query, v)
		if err == nil {
			return nil
		}
		lastErr = err

		action, backoff := c.handleError(err, attempt, endpoint)
		if action == actionFail {
			return err
		}

		observability.GetMetrics().BackendRetries.WithLabelValues(endpoint).Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (c *HTTPClient) getOnce(ctx context.Context, endpoint, path string, query url.Values, v interface{}) (err error) {
	metrics := observability.GetMetrics()
	start := time.Now()
	defer func() {
		metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = errors.ClassifyError(err).String()
		}
		metrics.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	}()

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.NewPermanentf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/xml")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.ClassifyBackendError(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.ClassifyBackendError(0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		classified := errors.ClassifyBackendError(resp.StatusCode, errorSummary(resp.StatusCode, body))
		c.logger.Debug("backend request failed",
			"endpoint", endpoint,
			"path", path,
			"status", resp.StatusCode,
			"error", classified)
		return classified
	}

	return decodeXML(endpoint, body, v)
}
