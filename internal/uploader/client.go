package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tabcap/internal/config"
	"tabcap/internal/meeting"
)

const userAgent = "tabcap/0.1.0"

// Artifact is a finished recording ready for persistence. Ownership
// transfers to the uploader caller exactly once; there is no retry queue.
type Artifact struct {
	Audio           []byte
	MIMEType        string
	Title           string
	Platform        meeting.Platform
	MeetingURL      string
	DurationSeconds float64
}

// TokenSource supplies the bearer token for authenticated uploads.
type TokenSource interface {
	Token() (string, error)
}

// Service uploads finished recordings to the external API.
type Service interface {
	Upload(ctx context.Context, artifact Artifact) (string, error)
}

// NewService builds an upload service against the configured endpoint.
// With no endpoint configured a noop implementation is returned so local
// setups still finish the stop path cleanly.
func NewService(cfg *config.Config, tokens TokenSource) Service {
	endpoint := strings.TrimSpace(cfg.Upload.Endpoint)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Upload.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &httpService{
		endpoint: endpoint,
		tokens:   tokens,
		client:   &http.Client{Timeout: timeout},
	}
}

type httpService struct {
	endpoint string
	tokens   TokenSource
	client   *http.Client
}

func (s *httpService) Upload(ctx context.Context, artifact Artifact) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filePart, err := writer.CreateFormFile("audio", "recording.webm")
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := filePart.Write(artifact.Audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}

	fields := map[string]string{
		"title":      artifact.Title,
		"platform":   string(artifact.Platform),
		"duration":   strconv.FormatFloat(artifact.DurationSeconds, 'f', 1, 64),
		"meetingUrl": artifact.MeetingURL,
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if s.tokens != nil {
		token, err := s.tokens.Token()
		if err != nil {
			return "", fmt.Errorf("load auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("upload returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload response missing recording id")
	}
	return result.ID, nil
}

type noopService struct{}

func (noopService) Upload(context.Context, Artifact) (string, error) { return "", nil }
