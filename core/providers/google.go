package providers

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	relayerrors "github.com/adalundhe/relay/core/errors"
)

// GoogleProvider implements Provider over the Gemini API.
type GoogleProvider struct {
	client *genai.Client
	config ClientConfig
}

// NewGoogleProvider creates a Gemini-backed provider.
func NewGoogleProvider(ctx context.Context, config ClientConfig) (*GoogleProvider, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google client: %w", err)
	}

	return &GoogleProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider identifier.
func (p *GoogleProvider) Name() string {
	return string(TypeGoogle)
}

// Call performs a non-streaming completion request.
func (p *GoogleProvider) Call(ctx context.Context, messages []Message, params CallParams) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	model := params.Model
	if model == "" {
		model = p.config.Model
	}

	contents, genCfg := p.buildRequest(messages, params)

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return nil, p.classify(err)
	}

	out := &Response{
		Text:  resp.Text(),
		Model: model,
	}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// HealthCheck verifies the API is reachable with the configured key.
func (p *GoogleProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Models.Get(ctx, p.config.Model, nil)
	if err != nil {
		return p.classify(err)
	}
	return nil
}

// buildRequest converts messages into Gemini contents plus generation
// config. System messages become the system instruction.
func (p *GoogleProvider) buildRequest(messages []Message, params CallParams) ([]*genai.Content, *genai.GenerateContentConfig) {
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	if params.Temperature != nil {
		t := float32(*params.Temperature)
		genCfg.Temperature = &t
	} else if p.config.Temperature > 0 {
		t := float32(p.config.Temperature)
		genCfg.Temperature = &t
	}

	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			genCfg.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	return contents, genCfg
}

// classify maps SDK errors onto the relay taxonomy.
func (p *GoogleProvider) classify(err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return relayerrors.ClassifyStatus(p.Name(), apierr.Code,
			fmt.Errorf("google call: %w", err))
	}
	return relayerrors.Classify(p.Name(), fmt.Errorf("google call: %w", err))
}
