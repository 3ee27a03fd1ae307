package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/hupe1980/taskmesh/core"
)

// codexMarker selects the Responses API surface. The predicate is evaluated
// over the raw model id before payload construction; a request goes to
// exactly one surface.
const codexMarker = "codex"

// defaultOpenAIModel is used when the config carries no model id.
const defaultOpenAIModel = openai.ChatModelGPT4oMini

// openaiStrategy calls the hosted OpenAI API, streaming deltas as they
// arrive while accumulating the full text for the outcome.
type openaiStrategy struct {
	maxOutput int
}

func (s *openaiStrategy) provider() core.Provider { return core.ProviderOpenAI }

func (s *openaiStrategy) keyName() string { return "OPENAI_API_KEY" }

func (s *openaiStrategy) validate(core.AgentConfig) error { return nil }

// usesResponsesSurface reports whether the model id routes to the alternate
// API surface.
func usesResponsesSurface(model string) bool {
	return strings.Contains(model, codexMarker)
}

func (s *openaiStrategy) launch(ctx context.Context, run runSpec, key string, emit core.OutputSink) (*attempt, error) {
	var clientOpts []option.RequestOption
	if key != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(key))
	}
	client := openai.NewClient(clientOpts...)

	model := run.model
	if model == "" {
		model = defaultOpenAIModel
	}

	out := newBoundedBuffer(run.maxBytes)
	done := make(chan struct{})
	var streamErr error

	go func() {
		defer close(done)
		if usesResponsesSurface(model) {
			streamErr = s.streamResponses(ctx, &client, model, run, out, emit)
		} else {
			streamErr = s.streamChat(ctx, &client, model, run, out, emit)
		}
	}()

	return &attempt{
		wait: func() (string, error) {
			<-done
			return out.String(), streamErr
		},
	}, nil
}

// streamChat drives the default Chat Completions surface.
func (s *openaiStrategy) streamChat(
	ctx context.Context,
	client *openai.Client,
	model string,
	run runSpec,
	out *boundedBuffer,
	emit core.OutputSink,
) error {
	var messages []openai.ChatCompletionMessageParamUnion
	if run.system != "" {
		messages = append(messages, openai.SystemMessage(run.system))
	}
	for _, turn := range run.turns {
		if turn.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(run.prompt))

	stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	})
	for stream.Next() {
		ck := stream.Current()
		for _, choice := range ck.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			out.WriteString(choice.Delta.Content)
			if emit != nil {
				emit(choice.Delta.Content)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return s.classify(err)
	}
	return nil
}

// streamResponses drives the alternate Responses surface selected by the
// model marker.
func (s *openaiStrategy) streamResponses(
	ctx context.Context,
	client *openai.Client,
	model string,
	run runSpec,
	out *boundedBuffer,
	emit core.OutputSink,
) error {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(responsesInput(run)),
		},
	}
	if run.system != "" {
		params.Instructions = openai.String(run.system)
	}

	stream := client.Responses.NewStreaming(ctx, params)
	for stream.Next() {
		ev := stream.Current()
		if ev.Type != "response.output_text.delta" || ev.Delta.OfString == "" {
			continue
		}
		out.WriteString(ev.Delta.OfString)
		if emit != nil {
			emit(ev.Delta.OfString)
		}
	}
	if err := stream.Err(); err != nil {
		return s.classify(err)
	}
	return nil
}

// responsesInput flattens prior turns and the current prompt into the
// single-string input the Responses surface accepts.
func responsesInput(run runSpec) string {
	if len(run.turns) == 0 {
		return run.prompt
	}
	var b strings.Builder
	for _, turn := range run.turns {
		if turn.Role == "assistant" {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(turn.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(run.prompt)
	return b.String()
}

func (s *openaiStrategy) classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return classifyStatus(s.provider(), apierr.StatusCode, err)
	}
	return classify(s.provider(), err, "")
}
