package tiltify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"donation-relay/internal/domain/entity"
	"donation-relay/internal/observability/metrics"
	"donation-relay/internal/observability/tracing"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 2 << 20

// MaxPageSize is the largest page the donations endpoint returns.
const MaxPageSize = 100

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// Client reads campaign and donation data from the Tiltify v5 public API.
// It never retries on its own; retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	tracer     trace.Tracer
	logger     *slog.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithTracer overrides the tracer used for request spans.
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *Client) { c.tracer = tracer }
}

// WithLogger overrides the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client. httpClient carries the request timeout.
func NewClient(httpClient *http.Client, baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		tracer:     tracing.GetTracer(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type campaignResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type donationsResponse struct {
	Data []donationDTO `json:"data"`
}

type donationDTO struct {
	ID     string `json:"id"`
	Amount struct {
		Value    decimal.Decimal `json:"value"`
		Currency string          `json:"currency"`
	} `json:"amount"`
	DonorName    string     `json:"donor_name"`
	DonorComment *string    `json:"donor_comment"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// ResolveCampaignID looks up the campaign id for a user/campaign slug pair.
func (c *Client) ResolveCampaignID(ctx context.Context, userSlug, campaignSlug string) (id string, err error) {
	ctx, span := c.tracer.Start(ctx, "tiltify.resolve_campaign",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tiltify.user_slug", userSlug),
			attribute.String("tiltify.campaign_slug", campaignSlug),
		))
	start := time.Now()
	defer func() {
		endSpan(span, err)
		metrics.RecordTiltifyRequest("campaign_lookup", err == nil, start)
	}()

	lookupErr := func(status int, cause error) error {
		return &LookupError{UserSlug: userSlug, CampaignSlug: campaignSlug, StatusCode: status, Err: cause}
	}

	endpoint := fmt.Sprintf("%s/api/public/campaigns/by/slugs/%s/%s",
		c.baseURL, url.PathEscape(userSlug), url.PathEscape(campaignSlug))

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return "", lookupErr(0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp)
		return "", lookupErr(resp.StatusCode, nil)
	}

	var cr campaignResponse
	if err := decodeJSON(resp, &cr); err != nil {
		return "", lookupErr(0, fmt.Errorf("decode campaign response: %w", err))
	}
	if cr.Data.ID == "" {
		return "", lookupErr(0, errors.New("campaign response has no id"))
	}
	return cr.Data.ID, nil
}

// ListRecentDonations returns up to limit donations, most recent first.
// A limit of zero or less uses the API default page size.
func (c *Client) ListRecentDonations(ctx context.Context, campaignID string, limit int) (donations []entity.Donation, err error) {
	ctx, span := c.tracer.Start(ctx, "tiltify.list_donations",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tiltify.campaign_id", campaignID),
			attribute.Int("tiltify.limit", limit),
		))
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.Int("tiltify.donations", len(donations)))
		endSpan(span, err)
		metrics.RecordTiltifyRequest("donations", err == nil, start)
	}()

	if c.tokens.Token() == "" {
		return nil, &FetchError{CampaignID: campaignID, Unauthorized: true, Err: ErrNoCredential}
	}

	endpoint := fmt.Sprintf("%s/api/public/campaigns/%s/donations", c.baseURL, url.PathEscape(campaignID))
	if limit > 0 {
		if limit > MaxPageSize {
			limit = MaxPageSize
		}
		endpoint += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, &FetchError{CampaignID: campaignID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp)
		return nil, &FetchError{
			CampaignID:   campaignID,
			StatusCode:   resp.StatusCode,
			Unauthorized: isUnauthorized(resp.StatusCode),
		}
	}

	var dr donationsResponse
	if err := decodeJSON(resp, &dr); err != nil {
		return nil, &FetchError{CampaignID: campaignID, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode donations: %w", err)}
	}

	donations = make([]entity.Donation, 0, len(dr.Data))
	for i, dto := range dr.Data {
		d, err := dto.toEntity()
		if err != nil {
			return nil, &FetchError{CampaignID: campaignID, StatusCode: resp.StatusCode, Err: fmt.Errorf("donation %d: %w", i, err)}
		}
		donations = append(donations, d)
	}

	c.logger.Debug("fetched donations",
		slog.String("campaign_id", campaignID),
		slog.Int("count", len(donations)))
	return donations, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}

func (dto donationDTO) toEntity() (entity.Donation, error) {
	d := entity.Donation{
		ID:           dto.ID,
		Amount:       entity.Amount{Value: dto.Amount.Value, Currency: dto.Amount.Currency},
		DonorName:    dto.DonorName,
		DonorComment: dto.DonorComment,
	}
	if dto.CompletedAt != nil {
		d.CompletedAt = *dto.CompletedAt
	}
	if err := d.Validate(); err != nil {
		return entity.Donation{}, err
	}
	return d, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func decodeJSON(resp *http.Response, v any) error {
	return json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v)
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
}
