// Package ai holds the external model capabilities: text embedding and
// answer generation against OpenAI-compatible backends such as LM Studio.
package ai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Connectivity failures are surfaced distinctly so callers can report an
// actionable message instead of a generic one.
var (
	ErrTimeout     = errors.New("backend timed out")
	ErrUnreachable = errors.New("backend unreachable")
)

// Embedder maps text to a fixed-dimension dense vector. Vectors for the
// same text and model are deterministic and unit-normalized.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a natural-language answer from a query and the
// retrieved context, and can probe backend reachability.
type Generator interface {
	Generate(ctx context.Context, query, contextText string) (string, error)
	CheckConnection(ctx context.Context) ConnStatus
	APIBase() string
}

// ConnStatus reports the result of a backend connectivity probe.
type ConnStatus struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

const (
	connectTimeout = 5 * time.Second
	requestTimeout = 30 * time.Second
)

func newClient(baseURL, apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		},
	}
	return openai.NewClientWithConfig(cfg)
}

// classifyTransportErr maps a transport-level failure onto the typed
// connectivity errors. API-level errors (non-2xx) pass through unchanged.
func classifyTransportErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return errors.Join(ErrUnreachable, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Join(ErrUnreachable, err)
	}
	return err
}
