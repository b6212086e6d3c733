package call

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/haulvox/haulvox/pkg/llm"
	"github.com/haulvox/haulvox/pkg/tts"
)

// segmentedChannel wraps a synthesis channel with the per-request text limit
// of the telephone transport: sentences longer than the limit are split on
// clause boundaries and synthesized back to back on the inner channel, with
// their audio merged into one ordered stream.
type segmentedChannel struct {
	inner tts.Channel
	limit int
}

func (s *segmentedChannel) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	segs := tts.SplitForTransport(text, s.limit)
	if len(segs) <= 1 {
		return s.inner.Synthesize(ctx, text)
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		for _, seg := range segs {
			audio, err := s.inner.Synthesize(ctx, seg)
			if err != nil {
				return
			}
			for chunk := range audio {
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *segmentedChannel) Close() error { return s.inner.Close() }

var _ tts.Channel = (*segmentedChannel)(nil)

// noopChannel stands in when no synthesis channel is open, so a turn that
// races teardown still drains its text safely.
type noopChannel struct{}

func (noopChannel) Synthesize(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (noopChannel) Close() error { return nil }

// parseAnalysis extracts the structured outcome from the analysis completion,
// tolerating surrounding prose and markdown fences.
func parseAnalysis(resp *llm.CompletionResponse, err error) (analysisOutcome, error) {
	var out analysisOutcome
	if err != nil {
		return out, err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return out, errEmptyAnalysis
	}
	content := resp.Content
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return out, errEmptyAnalysis
	}
	if uerr := json.Unmarshal([]byte(content[start:end+1]), &out); uerr != nil {
		return out, uerr
	}
	return out, nil
}
