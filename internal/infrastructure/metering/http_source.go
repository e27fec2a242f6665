package metering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	domain "github.com/cloudbill/backend/internal/domain/metering"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed response size from the
// metering API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Errors for the metering source configuration
var (
	ErrSourceMissingBaseURL = errors.New("metering: base URL is required")
	ErrSourceBadStatus      = errors.New("metering: unexpected response status")
)

// SourceConfig holds configuration for the metering source API
type SourceConfig struct {
	// BaseURL is the root endpoint of the metering service
	BaseURL string
	// Token is the bearer token presented on every request
	Token string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Validate checks the configuration
func (c *SourceConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrSourceMissingBaseURL
	}
	return nil
}

// sampleResponse mirrors the wire shape of one metering data point
type sampleResponse struct {
	Timestamp  int64             `json:"timestamp"`
	ResourceID string            `json:"resource_id"`
	Volume     string            `json:"volume"`
	Unit       string            `json:"unit"`
	Metadata   map[string]string `json:"metadata"`
}

// usageResponse is the envelope of the usage endpoint
type usageResponse struct {
	Samples []sampleResponse `json:"samples"`
}

// HTTPSource implements Source against the metering service's REST API
type HTTPSource struct {
	config     *SourceConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPSource creates a metering source client with the given configuration
func NewHTTPSource(config *SourceConfig, logger *zap.Logger) (*HTTPSource, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		logger: logger,
	}, nil
}

// GetUsage implements Source
func (s *HTTPSource) GetUsage(ctx context.Context, scopeID, meterName string, start, end time.Time, limit int) ([]domain.RawSample, error) {
	endpoint, err := url.Parse(s.config.BaseURL + "/v1/usage")
	if err != nil {
		return nil, fmt.Errorf("invalid metering base URL: %w", err)
	}

	query := endpoint.Query()
	query.Set("scope_id", scopeID)
	query.Set("meter", meterName)
	query.Set("start", strconv.FormatInt(start.Unix(), 10))
	query.Set("end", strconv.FormatInt(end.Unix(), 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metering request: %w", err)
	}
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metering request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrSourceBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read metering response: %w", err)
	}

	var payload usageResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode metering response: %w", err)
	}

	samples := make([]domain.RawSample, 0, len(payload.Samples))
	for _, raw := range payload.Samples {
		volume, err := decimal.NewFromString(raw.Volume)
		if err != nil {
			// One garbled sample must not lose the rest of the window.
			s.logger.Warn("Skipping sample with unparseable volume",
				zap.String("meter", meterName),
				zap.String("resource_id", raw.ResourceID),
				zap.String("volume", raw.Volume),
			)
			continue
		}
		samples = append(samples, domain.RawSample{
			Timestamp:  time.Unix(raw.Timestamp, 0).UTC(),
			ResourceID: raw.ResourceID,
			Volume:     volume,
			Unit:       raw.Unit,
			Metadata:   raw.Metadata,
		})
	}
	return samples, nil
}
