package engine

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/hupe1980/taskmesh/core"
)

// claudeStrategy runs the claude CLI as a detached subprocess. Short
// exchanges use plain --print output; long-running tasks switch to the
// stream-json format so text deltas can be extracted while raw output keeps
// flowing to the sink and the log.
type claudeStrategy struct {
	runner *cliRunner
	binary string
}

func (s *claudeStrategy) provider() core.Provider { return core.ProviderClaude }

func (s *claudeStrategy) keyName() string { return "ANTHROPIC_API_KEY" }

func (s *claudeStrategy) validate(core.AgentConfig) error { return nil }

func (s *claudeStrategy) launch(ctx context.Context, run runSpec, key string, emit core.OutputSink) (*attempt, error) {
	args := s.buildArgs(run)

	var acc accumulator
	if run.longRunning {
		acc = newStreamJSONAccumulator(run.maxBytes)
	}
	return s.runner.run(ctx, s.provider(), s.binary, args, keyEnv(s.keyName(), key), run, emit, acc)
}

// buildArgs constructs the claude argument vector: model selection, print
// mode, the workspace trust flag, optional streaming flags, and the
// human-turn-formatted prompt as one final non-interpreted argument.
func (s *claudeStrategy) buildArgs(run runSpec) []string {
	var args []string
	if run.model != "" {
		args = append(args, "--model", run.model)
	}
	args = append(args, "--print", "--dangerously-skip-permissions")
	if run.longRunning {
		args = append(args, "--verbose", "--output-format", "stream-json")
	}
	return append(args, conversationPrompt(run.system, run.turns, run.prompt))
}

// streamJSONAccumulator extracts assistant text from the claude CLI's
// stream-json output: one JSON object per line, with assistant message
// events during the run and a final result event carrying the full answer.
type streamJSONAccumulator struct {
	pending    bytes.Buffer
	transcript *boundedBuffer
	result     string
	sawResult  bool
}

func newStreamJSONAccumulator(limit int) *streamJSONAccumulator {
	return &streamJSONAccumulator{transcript: newBoundedBuffer(limit)}
}

type streamJSONLine struct {
	Type    string `json:"type"`
	Result  string `json:"result"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

func (a *streamJSONAccumulator) feed(chunk []byte) {
	a.pending.Write(chunk)
	for {
		line, rest, found := bytes.Cut(a.pending.Bytes(), []byte("\n"))
		if !found {
			return
		}
		a.consume(line)
		remainder := append([]byte(nil), rest...)
		a.pending.Reset()
		a.pending.Write(remainder)
	}
}

func (a *streamJSONAccumulator) consume(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	var ev streamJSONLine
	if err := json.Unmarshal(line, &ev); err != nil {
		return // non-JSON noise (progress bars, warnings) is sink-only
	}
	switch ev.Type {
	case "assistant":
		for _, part := range ev.Message.Content {
			if part.Type == "text" {
				a.transcript.WriteString(part.Text)
			}
		}
	case "result":
		a.result = ev.Result
		a.sawResult = true
	}
}

func (a *streamJSONAccumulator) content() string {
	a.consume(a.pending.Bytes())
	a.pending.Reset()
	if a.sawResult {
		return a.result
	}
	return a.transcript.String()
}
