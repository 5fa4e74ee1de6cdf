package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = `You are Panda AIQA assistant, an AI that focuses on answering questions based on the provided context.
- you should only use the information provided in the context to answer the question
- if there is not enough information in the context, please say you don't know
- do not make up information`

// GeneratorConfig holds API settings for the LM Studio completion backend.
type GeneratorConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// LMStudioGenerator produces answers through an OpenAI-compatible
// /completions endpoint (LM Studio serves the legacy completion API).
type LMStudioGenerator struct {
	client *openai.Client
	cfg    GeneratorConfig
	log    *zap.Logger
}

func NewLMStudioGenerator(cfg GeneratorConfig, log *zap.Logger) *LMStudioGenerator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &LMStudioGenerator{
		client: newClient(cfg.BaseURL, cfg.APIKey),
		cfg:    cfg,
		log:    log,
	}
}

// APIBase reports the configured backend URL for status responses.
func (g *LMStudioGenerator) APIBase() string { return g.cfg.BaseURL }

// Generate builds the grounded prompt from the query and assembled
// context and requests a completion.
func (g *LMStudioGenerator) Generate(ctx context.Context, query, contextText string) (string, error) {
	prompt := fmt.Sprintf(
		"%s\n\nBased on the following information, answer the question:\n\nContext:\n%s\n\nQuestion:\n%s\n\nAnswer:",
		systemPrompt, contextText, query,
	)

	resp, err := g.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       g.cfg.Model,
		Prompt:      prompt,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: float32(g.cfg.Temperature),
		Stop:        []string{"</s>", "\n\n"},
	})
	if err != nil {
		return "", fmt.Errorf("completion request: %w", classifyTransportErr(err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion choices")
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

// CheckConnection probes backend reachability via the models listing,
// which is free to call. The result distinguishes timeout, refused
// connection and HTTP-level errors.
func (g *LMStudioGenerator) CheckConnection(ctx context.Context) ConnStatus {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	_, err := g.client.ListModels(ctx)
	if err == nil {
		return ConnStatus{Connected: true, Message: "language model connection successful"}
	}

	err = classifyTransportErr(err)
	g.log.Warn("language model connectivity check failed", zap.Error(err))

	switch {
	case errors.Is(err, ErrTimeout):
		return ConnStatus{Message: "language model connection timeout, confirm the service has been started"}
	case errors.Is(err, ErrUnreachable):
		return ConnStatus{Message: fmt.Sprintf("language model connection failed, confirm the service is running at %s", g.cfg.BaseURL)}
	default:
		return ConnStatus{Message: fmt.Sprintf("language model connection failed: %v", err)}
	}
}
