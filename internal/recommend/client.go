package recommend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kdimtricp/anilights/internal/logging"
	"github.com/kdimtricp/anilights/internal/metrics"
	"github.com/kdimtricp/anilights/internal/models"
	"github.com/kdimtricp/anilights/internal/validation"
)

// Recommender turns a completed pick list into ranked recommendations.
type Recommender interface {
	Recommend(ctx context.Context, picks []int) ([]models.Recommendation, error)
}

// ErrUpstreamFailure matches every failure of the recommendation service.
var ErrUpstreamFailure = errors.New("recommendation service failed")

// UpstreamError carries the service's message, opaque to the caller.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("recommendation service returned status %d: %s", e.Status, e.Message)
	}
	return "recommendation service: " + e.Message
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamFailure
}

type Config struct {
	BaseURL string
	Path    string
	Timeout time.Duration
}

// Client calls the recommendation endpoint over HTTP behind a circuit breaker.
type Client struct {
	endpoint   string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]models.Recommendation]
	log        zerolog.Logger
}

type recommendRequest struct {
	SelectedAnimeIDs []int `json:"selectedAnimeIds"`
}

type recommendResponse struct {
	Recommendations []models.Recommendation `json:"recommendations" validate:"dive"`
	Error           string                  `json:"error,omitempty"`
}

const breakerName = "recommend-api"

func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/api/recommend"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	endpoint := strings.TrimRight(config.BaseURL, "/") + config.Path
	log := logging.With().Str("component", "recommend").Str("endpoint", endpoint).Logger()
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]models.Recommendation](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Cancelled requests say nothing about the service's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cb:  cb,
		log: log,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Recommend posts the picks and returns the ranked records. An empty list is
// a valid answer. Any failure is an *UpstreamError, except context errors
// which are returned as they are.
func (c *Client) Recommend(ctx context.Context, picks []int) ([]models.Recommendation, error) {
	start := time.Now()
	recs, err := c.cb.Execute(func() ([]models.Recommendation, error) {
		return c.do(ctx, picks)
	})
	metrics.RecommendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &UpstreamError{Message: "service temporarily unavailable"}
		}
		c.log.Debug().Err(err).Int("picks", len(picks)).Msg("Recommendation request failed")
		return nil, err
	}
	return recs, nil
}

func (c *Client) do(ctx context.Context, picks []int) ([]models.Recommendation, error) {
	body, err := json.Marshal(recommendRequest{SelectedAnimeIDs: picks})
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	var decoded recommendResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decoded.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", decodeErr)}
	}
	if err := validation.Struct(&decoded); err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed recommendation: %v", err)}
	}

	if decoded.Recommendations == nil {
		return []models.Recommendation{}, nil
	}
	return decoded.Recommendations, nil
}
