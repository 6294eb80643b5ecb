package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	relayerrors "github.com/adalundhe/relay/core/errors"
)

// OpenAIProvider implements Provider over the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client *openai.Client
	config ClientConfig
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(config ClientConfig) (*OpenAIProvider, error) {
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

	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		client: &client,
		config: config,
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return string(TypeOpenAI)
}

// Call performs a non-streaming completion request.
func (p *OpenAIProvider) Call(ctx context.Context, messages []Message, params CallParams) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(messages, params))
	if err != nil {
		return nil, p.classify(err)
	}

	var text string
	if len(completion.Choices) > 0 {
		text = completion.Choices[0].Message.Content
	}

	return &Response{
		Text:      text,
		Model:     completion.Model,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
	}, nil
}

// HealthCheck verifies the API is reachable with the configured key.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return p.classify(err)
	}
	return nil
}

// buildParams constructs Chat Completions parameters.
func (p *OpenAIProvider) buildParams(messages []Message, params CallParams) openai.ChatCompletionNewParams {
	model := params.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	req := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			req.Messages = append(req.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			req.Messages = append(req.Messages, openai.AssistantMessage(msg.Content))
		default:
			req.Messages = append(req.Messages, openai.UserMessage(msg.Content))
		}
	}

	if params.Temperature != nil {
		req.Temperature = openai.Float(*params.Temperature)
	} else if p.config.Temperature > 0 {
		req.Temperature = openai.Float(p.config.Temperature)
	}

	return req
}

// classify maps SDK errors onto the relay taxonomy.
func (p *OpenAIProvider) classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return relayerrors.ClassifyStatus(p.Name(), apierr.StatusCode,
			fmt.Errorf("openai call: %w", err))
	}
	return relayerrors.Classify(p.Name(), fmt.Errorf("openai call: %w", err))
}
