package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rephrasego/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const claudeMaxTokens = 8192

var errMalformed = errors.New("malformed oracle response")

type chatProvider struct {
	name      string
	chatModel model.ToolCallingChatModel
}

// NewProvider builds a chat-model backed Provider for openai, gemini or claude.
func NewProvider(ctx context.Context, provider string, cfg config.ProviderConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: api key for %s not configured", ErrOracleAuth, provider)
	}
	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if cerr != nil {
			return nil, fmt.Errorf("new gemini client: %w", cerr)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: claudeMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return newChatProvider(provider, chatModel), nil
}

func newChatProvider(name string, chatModel model.ToolCallingChatModel) *chatProvider {
	return &chatProvider{name: name, chatModel: chatModel}
}

// Rewrite sends the instruction and text in one Generate call and decodes the structured answer.
func (p *chatProvider) Rewrite(ctx context.Context, req Request) (*Result, error) {
	toolInfo := req.ResponseSchema
	if toolInfo == nil {
		toolInfo = RewriteSchema()
	}
	chatModel, err := p.chatModel.WithTools([]*schema.ToolInfo{toolInfo})
	if err != nil {
		return nil, fmt.Errorf("%w: bind response schema: %w", ErrOracleFailure, err)
	}
	messages := []*schema.Message{
		schema.SystemMessage(req.SystemInstruction),
		schema.UserMessage(req.UserContent),
	}
	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, classify(fmt.Errorf("%s generate: %w", p.name, err))
	}
	result, err := decodeMessage(resp, toolInfo.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOracleFailure, err)
	}
	return result, nil
}

// decodeMessage reads the payload from the matching tool call, falling back to the message body.
func decodeMessage(msg *schema.Message, toolName string) (*Result, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: empty response", errMalformed)
	}
	for _, call := range msg.ToolCalls {
		if call.Function.Name == toolName || len(msg.ToolCalls) == 1 {
			return decodeResult(call.Function.Arguments)
		}
	}
	return decodeResult(msg.Content)
}

func decodeResult(raw string) (*Result, error) {
	payload := stripCodeFence(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", errMalformed)
	}
	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if strings.TrimSpace(result.RewrittenText) == "" {
		return nil, fmt.Errorf("%w: missing rewrittenText", errMalformed)
	}
	if result.Changes == nil {
		result.Changes = []Change{}
	}
	return &result, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
