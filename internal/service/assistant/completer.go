package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/sunabot/sunabot/backend/internal/config"
)

// Prompt is one completion request: a system instruction, the user turn and
// the sampling limits for this call.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
	Stop      []string
}

// Completer produces the model text for a prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

var errEmptyCompletion = errors.New("model returned an empty message")

// ChainCompleter runs prompts through an eino chain: a chat template feeding
// a chat model.
type ChainCompleter struct {
	chain       compose.Runnable[map[string]any, *schema.Message]
	temperature float32
	topP        float32
}

// NewChainCompleter builds the Ark chat model from cfg and wraps it.
func NewChainCompleter(ctx context.Context, cfg config.AIConfig) (*ChainCompleter, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewChainCompleterWith(ctx, chatModel, cfg)
}

// NewChainCompleterWith compiles the chain around an existing chat model.
func NewChainCompleterWith(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*ChainCompleter, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainCompleter{
		chain:       runnable,
		temperature: float32(cfg.Temperature),
		topP:        float32(cfg.TopP),
	}, nil
}

// Complete invokes the chain with per-call sampling options.
func (c *ChainCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	opts := []model.Option{
		model.WithTemperature(c.temperature),
		model.WithTopP(c.topP),
	}
	if p.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(p.MaxTokens))
	}
	if len(p.Stop) > 0 {
		opts = append(opts, model.WithStop(p.Stop))
	}

	msg, err := c.chain.Invoke(ctx, map[string]any{
		"system": p.System,
		"query":  p.User,
	}, compose.WithChatModelOption(opts...))
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}
	if msg == nil {
		return "", errEmptyCompletion
	}
	return msg.Content, nil
}
