package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"icu-bed-management/internal/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// WebhookConfig configures the webhook client and its circuit breaker
type WebhookConfig struct {
	URL string
	// Location is used for date-only values in the payload
	Location *time.Location
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures uint32
	// ResetTimeout is how long the breaker stays open before a trial request
	ResetTimeout time.Duration
}

// WebhookClient posts recordings to the extraction pipeline's webhook
type WebhookClient struct {
	url     string
	loc     *time.Location
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewWebhookClient creates the client. The http.Client should carry no timeout of
// its own; callers bound each extraction through the context.
func NewWebhookClient(cfg WebhookConfig, httpClient *http.Client, logger *zap.Logger, m *metrics.Metrics) *WebhookClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}

	c := &WebhookClient{
		url:     cfg.URL,
		loc:     cfg.Location,
		client:  httpClient,
		logger:  logger,
		metrics: m,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "extraction-webhook",
		MaxRequests: 1,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// A caller giving up is not a failure of the pipeline
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("target", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			m.SetBreakerState(name, breakerGauge(to))
		},
	})
	m.SetBreakerState("extraction-webhook", breakerGauge(gobreaker.StateClosed))
	return c
}

// Extract uploads the clip and returns the validated payload
func (c *WebhookClient) Extract(ctx context.Context, audio []byte, mimeType string, bedNumber string) (*Result, error) {
	started := time.Now()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, audio, mimeType, bedNumber)
	})
	if err != nil {
		c.metrics.ObserveExtraction("unavailable", time.Since(started))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrExtractionUnavailable, err)
		}
		return nil, err
	}

	res, err := ParsePayload(out.([]byte), c.loc)
	if err != nil {
		c.metrics.ObserveExtraction("malformed", time.Since(started))
		return nil, err
	}
	c.metrics.ObserveExtraction("ok", time.Since(started))
	return res, nil
}

func (c *WebhookClient) post(ctx context.Context, audio []byte, mimeType string, bedNumber string) ([]byte, error) {
	body, contentType, err := multipartBody(audio, mimeType, bedNumber)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrExtractionUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: webhook returned status %d", ErrExtractionUnavailable, resp.StatusCode)
	}
	return data, nil
}

func multipartBody(audio []byte, mimeType string, bedNumber string) (*bytes.Buffer, string, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="recording%s"`, extensionFor(mimeType)))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("bedNumber", bedNumber); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func extensionFor(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ".bin"
	}
	switch base {
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	}
	return 0
}
