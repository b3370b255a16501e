package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient fails the first n calls with err, then returns {}.
type scriptedClient struct {
	mu    sync.Mutex
	fails int
	err   error
	calls int
	times []time.Time
}

func (s *scriptedClient) Name() string { return "scripted" }
func (s *scriptedClient) Close() error { return nil }
func (s *scriptedClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.times = append(s.times, time.Now())
	if s.calls <= s.fails {
		return nil, s.err
	}
	return json.RawMessage(`{}`), nil
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	inner := &scriptedClient{fails: 2, err: errors.New("503")}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	raw, err := cli.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	inner := &scriptedClient{fails: 5, err: Permanent(errors.New("bad key"))}
	cli := Wrap(inner, Retry(5, time.Millisecond))

	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	var pErr *PermanentError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, 1, inner.calls)
}

func TestTimeoutBoundsSlowCalls(t *testing.T) {
	slow := &blockingClient{}
	cli := Wrap(slow, Timeout(20*time.Millisecond))

	start := time.Now()
	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

type blockingClient struct{}

func (b *blockingClient) Name() string { return "blocking" }
func (b *blockingClient) Close() error { return nil }
func (b *blockingClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRateLimitSpacesRequests(t *testing.T) {
	inner := &scriptedClient{}
	cli := Wrap(inner, RateLimit(20, 1))
	t.Cleanup(func() { _ = cli.Close() })

	for i := 0; i < 3; i++ {
		_, err := cli.GenerateJSON(context.Background(), "p", nil)
		require.NoError(t, err)
	}
	require.Len(t, inner.times, 3)
	assert.GreaterOrEqual(t, inner.times[2].Sub(inner.times[0]), 80*time.Millisecond)
}

func TestLoggingAndObserve(t *testing.T) {
	var buf bytes.Buffer
	var phases []string
	inner := &scriptedClient{fails: 1, err: errors.New("boom")}
	cli := Wrap(inner,
		Observe(func(phase string, err error, _ time.Duration) { phases = append(phases, phase) }),
		WithLogging(log.New(&buf, "", 0)),
	)

	ctx := WithPhase(context.Background(), "evaluate")
	_, err := cli.GenerateJSON(ctx, "p", map[string]any{"a": 1})
	require.Error(t, err)

	assert.Equal(t, []string{"evaluate"}, phases)
	assert.Contains(t, buf.String(), "LLM request (evaluate via scripted)")
	assert.Contains(t, buf.String(), "LLM error (evaluate): boom")
}

type recordingHook struct {
	before, after int
}

func (h *recordingHook) Before(ctx context.Context, phase, prompt string, input any) { h.before++ }
func (h *recordingHook) After(ctx context.Context, phase string, raw json.RawMessage, err error) {
	h.after++
}

func TestHooksFromContext(t *testing.T) {
	hook := &recordingHook{}
	cli := Wrap(&scriptedClient{}, WithHooks())

	_, err := cli.GenerateJSON(WithHook(context.Background(), hook), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hook.before)
	assert.Equal(t, 1, hook.after)
}

func TestCleanJSONStripsFences(t *testing.T) {
	raw, err := CleanJSON("```json\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	_, err = CleanJSON("not json")
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestFakeClientPhasesAndOverrides(t *testing.T) {
	f := NewFakeClient()
	f.Errors["plan"] = errors.New("down")

	_, err := f.GenerateJSON(WithPhase(context.Background(), "plan"), "p", nil)
	require.Error(t, err)

	raw, err := f.GenerateJSON(WithPhase(context.Background(), "evaluate"), "p", nil)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "hallucination_control")
	assert.Equal(t, 1, f.Calls("plan"))
}
