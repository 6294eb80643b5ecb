package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	relayerrors "github.com/adalundhe/relay/core/errors"
)

// AnthropicProvider implements Provider over the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	config ClientConfig
}

// NewAnthropicProvider creates an Anthropic-backed provider.
func NewAnthropicProvider(config ClientConfig) (*AnthropicProvider, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client: &client,
		config: config,
	}, nil
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return string(TypeAnthropic)
}

// Call performs a non-streaming completion request.
func (p *AnthropicProvider) Call(ctx context.Context, messages []Message, params CallParams) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	msg, err := p.client.Messages.New(ctx, p.buildParams(messages, params))
	if err != nil {
		return nil, p.classify(err)
	}

	return &Response{
		Text:      collectText(msg),
		Model:     string(msg.Model),
		TokensIn:  int(msg.Usage.InputTokens),
		TokensOut: int(msg.Usage.OutputTokens),
	}, nil
}

// HealthCheck verifies the API is reachable with the configured key.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return p.classify(err)
	}
	return nil
}

// buildParams constructs Messages API parameters.
func (p *AnthropicProvider) buildParams(messages []Message, params CallParams) anthropic.MessageNewParams {
	model := params.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			req.System = append(req.System, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			req.Messages = append(req.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			req.Messages = append(req.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	if params.Temperature != nil {
		req.Temperature = anthropic.Float(*params.Temperature)
	} else if p.config.Temperature > 0 {
		req.Temperature = anthropic.Float(p.config.Temperature)
	}

	return req
}

// collectText concatenates the text blocks of a response.
func collectText(msg *anthropic.Message) string {
	var text string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}
	return text
}

// classify maps SDK errors onto the relay taxonomy, preferring the status
// code the SDK exposes.
func (p *AnthropicProvider) classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return relayerrors.ClassifyStatus(p.Name(), apierr.StatusCode,
			fmt.Errorf("anthropic call: %w", err))
	}
	return relayerrors.Classify(p.Name(), fmt.Errorf("anthropic call: %w", err))
}
