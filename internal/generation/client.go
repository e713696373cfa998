package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/snapsticker/backend/internal/apperr"
)

// HTTPGenerator calls the hosted image-stylization model over HTTP.
type HTTPGenerator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPGenerator(endpoint, apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

var _ Generator = (*HTTPGenerator)(nil)

type predictRequest struct {
	Image       []byte `json:"image"`
	StylePrompt string `json:"style_prompt"`
}

type predictResponse struct {
	Stickers [][]byte `json:"stickers"`
}

type predictError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (g *HTTPGenerator) Predict(ctx context.Context, image []byte, stylePrompt string) ([][]byte, error) {
	body, err := json.Marshal(predictRequest{Image: image, StylePrompt: stylePrompt})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNoConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyResponse(resp)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.CodeServerError, err)
	}
	if len(out.Stickers) == 0 {
		return nil, apperr.New(apperr.CodeServerError, "model returned no artifacts")
	}
	return out.Stickers, nil
}

// classifyResponse maps the model service's error responses into the
// taxonomy. The body's code field wins over the HTTP status.
func classifyResponse(resp *http.Response) error {
	var body predictError
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch body.Code {
	case "SAFETY", "CONTENT_BLOCKED":
		return apperr.New(apperr.CodeContentBlocked, body.Message)
	case "QUOTA_EXCEEDED":
		return apperr.New(apperr.CodeQuotaExceeded, body.Message)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperr.New(apperr.CodeQuotaExceeded, fmt.Sprintf("model service rate limited: %s", body.Message))
	case resp.StatusCode >= 500:
		return apperr.New(apperr.CodeServiceUnavailable, fmt.Sprintf("model service returned status %d", resp.StatusCode))
	default:
		return apperr.Classify(&apperr.StatusError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("model service returned status %d: %s", resp.StatusCode, body.Message),
		})
	}
}
