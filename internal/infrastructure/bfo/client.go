// Package bfo is the HTTP client for the public financial disclosure registry.
package bfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/internal/domain/cooldown"
	"bfoproxy/internal/domain/organization"
	"bfoproxy/internal/domain/report"
	"bfoproxy/pkg/logger"
)

var tracer = otel.Tracer("bfoproxy/bfo")

// maxErrorBody caps how much of a failed response body is passed through.
const maxErrorBody = 64 << 10

// Config holds client settings.
type Config struct {
	BaseURL   string
	ProxyURL  string
	UserAgent string
	Timeout   time.Duration
}

// Client talks to the registry. Every call consults the cooldown gate first.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	gate       *cooldown.Gate
}

var (
	_ organization.Searcher = (*Client)(nil)
	_ report.Fetcher        = (*Client)(nil)
)

// NewClient creates a new registry client.
func NewClient(cfg Config, gate *cooldown.Gate) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		gate: gate,
	}, nil
}

// SearchByTaxID returns the best registry match for taxID.
func (c *Client) SearchByTaxID(ctx context.Context, taxID string) (*organization.Profile, error) {
	query := url.Values{}
	query.Set("query", taxID)
	query.Set("page", "0")
	query.Set("size", "20")

	var resp searchResponse
	if err := c.get(ctx, "/advanced-search/organizations/search", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, apperror.NewNotFound("organization", taxID)
	}
	return resp.Content[0].toProfile(), nil
}

// FetchReports lists every fiscal year the registry holds for orgID.
func (c *Client) FetchReports(ctx context.Context, orgID int64) ([]report.YearCorrections, error) {
	var periods []periodItem
	path := "/nbo/organizations/" + strconv.FormatInt(orgID, 10) + "/bfo"
	if err := c.get(ctx, path, nil, &periods); err != nil {
		return nil, err
	}

	years := make([]report.YearCorrections, 0, len(periods))
	for _, p := range periods {
		y, err := p.toDomain()
		if err != nil {
			return nil, apperror.NewUpstream(http.StatusBadGateway, err.Error()).WithCause(err)
		}
		years = append(years, y)
	}
	return years, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (err error) {
	ctx, span := tracer.Start(ctx, "bfo.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("bfo.path", path)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.gate.Limited(ctx); err != nil {
		return err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			logger.Warn(ctx, "bfo request timed out", "path", path, "elapsed", time.Since(started).String())
			return apperror.NewTimeout("BFO request", err)
		}
		return apperror.NewUpstream(http.StatusBadGateway, err.Error()).WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	logger.Debug(ctx, "bfo response", "path", path, "status", resp.StatusCode, "elapsed", time.Since(started).String())

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.gate.RecordLimitHit(ctx)
		return apperror.NewRateLimited(c.gate.Window())
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperror.NewUpstream(resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return apperror.NewTimeout("BFO request", err)
		}
		return apperror.NewUpstream(http.StatusBadGateway, "malformed response: "+err.Error()).WithCause(err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
