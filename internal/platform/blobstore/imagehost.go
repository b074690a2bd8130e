package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/labdesk/labdesk/internal/platform/metrics"
)

type ImageHostConfig struct {
	// Endpoint is the upload URL, e.g. https://api.imgbb.com/1/upload.
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// ImageHostStore uploads images to a third-party image hosting API and keeps
// only the returned public URL. Calls go through a circuit breaker so an
// unavailable host fails fast instead of holding the order form open.
type ImageHostStore struct {
	cfg     ImageHostConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

type imageHostResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewImageHostStore(cfg ImageHostConfig, logger zerolog.Logger, m *metrics.Metrics) *ImageHostStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "imagehost",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			m.BreakerState(name, int(to))
		},
	}

	return &ImageHostStore{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (s *ImageHostStore) Upload(ctx context.Context, obj Object, content io.Reader) (*Object, error) {
	data, err := readValidated(&obj, content)
	if err != nil {
		return nil, err
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.post(ctx, obj, data)
	})
	if err != nil {
		return nil, fmt.Errorf("image host upload: %w", err)
	}

	resp := result.(*imageHostResponse)
	obj.ID = resp.Data.ID
	obj.URL = resp.Data.URL
	if obj.URL == "" {
		obj.URL = resp.Data.DisplayURL
	}
	return &obj, nil
}

func (s *ImageHostStore) post(ctx context.Context, obj Object, data []byte) (*imageHostResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("name", obj.FileName); err != nil {
		return nil, err
	}
	part, err := w.CreateFormFile("image", obj.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	endpoint, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if s.cfg.APIKey != "" {
		q := endpoint.Query()
		q.Set("key", s.cfg.APIKey)
		endpoint.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var parsed imageHostResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK || !parsed.Success {
		msg := parsed.Error.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, msg)
	}
	if parsed.Data.URL == "" && parsed.Data.DisplayURL == "" {
		return nil, fmt.Errorf("response did not include an image url")
	}
	return &parsed, nil
}

// Download is not offered by the image host; clients load images from the URL.
func (s *ImageHostStore) Download(context.Context, string) (io.ReadCloser, *Object, error) {
	return nil, nil, ErrUnsupported
}

func (s *ImageHostStore) Delete(context.Context, string) error {
	return ErrUnsupported
}

// State reports the breaker state.
func (s *ImageHostStore) State() gobreaker.State {
	return s.breaker.State()
}
