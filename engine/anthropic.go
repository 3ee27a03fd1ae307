package engine

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/taskmesh/core"
)

// defaultAnthropicModel is used when the config carries no model id.
const defaultAnthropicModel = anthropic.ModelClaude3_5Sonnet20241022

const anthropicMaxTokens = 4096

// anthropicStrategy calls the hosted Anthropic Messages API in streaming
// mode, forwarding text deltas as they arrive.
type anthropicStrategy struct {
	maxOutput int
}

func (s *anthropicStrategy) provider() core.Provider { return core.ProviderAnthropic }

func (s *anthropicStrategy) keyName() string { return "ANTHROPIC_API_KEY" }

func (s *anthropicStrategy) validate(core.AgentConfig) error { return nil }

func (s *anthropicStrategy) launch(ctx context.Context, run runSpec, key string, emit core.OutputSink) (*attempt, error) {
	var clientOpts []option.RequestOption
	if key != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(key))
	}
	client := anthropic.NewClient(clientOpts...)

	model := anthropic.Model(run.model)
	if run.model == "" {
		model = defaultAnthropicModel
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		Messages:  buildAnthropicMessages(run),
	}
	if run.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: run.system}}
	}

	out := newBoundedBuffer(run.maxBytes)
	done := make(chan struct{})
	var streamErr error

	go func() {
		defer close(done)
		stream := client.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text == "" {
						continue
					}
					out.WriteString(delta.Text)
					if emit != nil {
						emit(delta.Text)
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			streamErr = s.classify(err)
		}
	}()

	return &attempt{
		wait: func() (string, error) {
			<-done
			return out.String(), streamErr
		},
	}, nil
}

func buildAnthropicMessages(run runSpec) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, turn := range run.turns {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(run.prompt)))
}

func (s *anthropicStrategy) classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return classifyStatus(s.provider(), apierr.StatusCode, err)
	}
	return classify(s.provider(), err, "")
}
