package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/themeleon/themeleon/internal/theme/domain"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel    = "gemini-2.0-flash"
	temperature     = 0.7
	maxOutputTokens = 8192
)

// Provider generates themes through the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func New(ctx context.Context, apiKey, model string, log *zap.Logger) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Provider{client: client, model: model, log: log.Named("theme.gemini")}, nil
}

func (p *Provider) Generate(ctx context.Context, description string) (*domain.Theme, error) {
	prompt := "Generate a VS Code theme based on the following description:\n\n" + description

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:       genai.Ptr[float32](temperature),
			MaxOutputTokens:   maxOutputTokens,
			ResponseMIMEType:  "application/json",
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		return nil, p.mapError(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		p.log.Warn("empty provider response", zap.String("model", p.model))
		return nil, fmt.Errorf("%w: empty response", domain.ErrProviderFailed)
	}

	var theme domain.Theme
	if err := json.Unmarshal([]byte(text), &theme); err != nil {
		p.log.Warn("unparseable provider response", zap.Error(err))
		return nil, fmt.Errorf("%w: unparseable response", domain.ErrProviderFailed)
	}
	if err := theme.Validate(); err != nil {
		return nil, fmt.Errorf("%w: incomplete response", domain.ErrProviderFailed)
	}
	theme.Normalize()

	return &theme, nil
}

func (p *Provider) mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return domain.ErrRateLimited
		}
		p.log.Error("provider error",
			zap.Int("code", apiErr.Code),
			zap.String("status", apiErr.Status))
		return fmt.Errorf("%w: %s", domain.ErrProviderFailed, apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout", domain.ErrProviderFailed)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderFailed, err)
}
