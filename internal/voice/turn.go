package voice

import (
	"context"
	"strings"
	"time"

	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/pkg/llm"
	"github.com/haulvox/haulvox/pkg/tts"
	"github.com/haulvox/haulvox/pkg/types"
)

// maxToolRounds caps how many tool-call/response cycles one turn may run
// before the model is forced to answer with text.
const maxToolRounds = 4

// startTurn enters the single-flight turn queue: the in-flight turn, if any,
// is aborted, the message is committed to history, and a fresh turn goroutine
// takes over. Used for spoken input, typed input, and injected system events
// alike.
func (s *Session) startTurn(msg types.Message) {
	s.mu.Lock()
	if s.ended || s.sharedCh == nil {
		s.mu.Unlock()
		return
	}
	prev := s.turnCancel
	s.turnID++
	id := s.turnID
	ctx, cancel := context.WithCancel(context.Background())
	s.turnCancel = cancel
	s.history = append(s.history, msg)
	history := append([]types.Message(nil), s.history...)
	ch := s.sharedCh
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	s.setState(StateThinking)
	go s.runTurn(ctx, id, ch, history)
}

// isCurrent reports whether the given turn is still the live one. Stale turn
// goroutines use it to go silent instead of mutating session state.
func (s *Session) isCurrent(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnID == id && !s.ended
}

// runTurn drives one complete LLM exchange: stream the completion, feed text
// deltas into sentence synthesis, execute requested tools and loop with their
// results, then commit the assistant reply. It owns no session state directly;
// everything it publishes is gated on isCurrent.
func (s *Session) runTurn(ctx context.Context, id int, ch tts.Channel, history []types.Message) {
	pipe := tts.NewSentencePipeline(ctx, ch, tts.PipelineConfig{
		OnAudioChunk: func(buf []byte, sourceText string) {
			if s.cfg.Events.OnAudioChunk != nil {
				s.cfg.Events.OnAudioChunk(buf, sourceText)
			}
		},
		OnDone: func() {
			if s.isCurrent(id) {
				s.setState(StateListening)
			}
		},
	})

	var defs []types.ToolDefinition
	if s.cfg.Registry != nil {
		defs = s.cfg.Registry.Definitions()
	}

	var (
		reply        strings.Builder
		fillerPlayed bool
		speaking     bool
		turnMsgs     []types.Message
	)

	for round := 0; round < maxToolRounds; round++ {
		start := time.Now()
		stream, err := s.cfg.LLM.StreamCompletion(ctx, llm.CompletionRequest{
			Messages: history,
			Tools:    defs,
		})
		if err != nil {
			if ctx.Err() == nil {
				s.emitError(err)
			}
			pipe.Abort()
			if s.isCurrent(id) {
				s.setState(StateListening)
			}
			return
		}

		var calls []types.ToolCall
		finish := ""
		for chunk := range stream {
			if chunk.Text != "" {
				if !fillerPlayed {
					s.playFiller("")
					fillerPlayed = true
				}
				if !speaking && s.isCurrent(id) {
					s.setState(StateSpeaking)
					speaking = true
				}
				reply.WriteString(chunk.Text)
				pipe.FeedText(chunk.Text)
			}
			if len(chunk.ToolCalls) > 0 {
				calls = append(calls, chunk.ToolCalls...)
			}
			if chunk.FinishReason != "" {
				finish = chunk.FinishReason
			}
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
		}
		if ctx.Err() != nil {
			// Aborted mid-stream; the pipeline was already torn down by the
			// context and the interrupter owns the state transition.
			return
		}
		if finish == "error" {
			break
		}
		if finish != "tool_calls" || len(calls) == 0 {
			break
		}

		assistant := types.Message{Role: "assistant", ToolCalls: calls}
		history = append(history, assistant)
		turnMsgs = append(turnMsgs, assistant)
		for _, call := range calls {
			if !fillerPlayed {
				s.playFiller(call.Name)
				fillerPlayed = true
			}
			toolMsg := s.executeTool(ctx, id, call)
			history = append(history, toolMsg)
			turnMsgs = append(turnMsgs, toolMsg)
		}
	}

	pipe.Finish()
	if !s.isCurrent(id) {
		return
	}

	text := strings.TrimSpace(reply.String())
	s.mu.Lock()
	s.history = append(s.history, turnMsgs...)
	if text != "" {
		s.history = append(s.history, types.Message{Role: "assistant", Content: text})
	}
	s.mu.Unlock()
	if text != "" {
		s.appendTranscript("assistant", text)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordTurn(ctx, "browser")
	}
	// The transition back to listening rides on the pipeline's OnDone, which
	// fires once the queued audio has all been delivered.
}

// executeTool runs one requested tool through the registry, emits the derived
// action item when the result maps to one, and returns the tool-role message
// for the conversation history.
func (s *Session) executeTool(ctx context.Context, id int, call types.ToolCall) types.Message {
	start := time.Now()
	var (
		out string
		err error
	)
	if s.cfg.Registry != nil {
		out, err = s.cfg.Registry.Execute(ctx, call.Name, call.Arguments)
	} else {
		out, err = "", tools.ErrUnknownTool
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.cfg.Metrics.RecordToolCall(ctx, call.Name, status)
	}

	res := types.ToolResult{Call: call, Result: out, Err: err}
	if item, ok := tools.ExtractActionItem(res); ok && s.isCurrent(id) {
		s.mu.Lock()
		s.actionItems = append(s.actionItems, item)
		s.mu.Unlock()
		if s.cfg.Events.OnActionItem != nil {
			s.cfg.Events.OnActionItem(item)
		}
	}

	content := out
	if err != nil {
		s.log.Warn("tool execution failed", "tool", call.Name, "error", err)
		content = `{"error":"the tool call failed, tell the user you could not look that up"}`
	}
	return types.Message{Role: "tool", Content: content, ToolCallID: call.ID}
}

// playFiller emits the pre-rendered latency-masking cue for the turn, once.
// Tool-specific cues take precedence over the generic one.
func (s *Session) playFiller(toolName string) {
	if s.cfg.Events.OnAudioChunk == nil {
		return
	}
	buf, ok := s.cfg.Fillers[toolName]
	if !ok {
		buf = s.cfg.Fillers[""]
	}
	if len(buf) == 0 {
		return
	}
	s.cfg.Events.OnAudioChunk(buf, "")
}
