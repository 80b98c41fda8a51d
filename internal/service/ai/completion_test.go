package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReply struct {
	text string
	err  error
}

type scriptedProvider struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int
	tokens  []int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(_ context.Context, _ []*schema.Message, maxTokens int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, maxTokens)
	r := p.replies[min(p.calls, len(p.replies)-1)]
	p.calls++
	return r.text, r.err
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

var lookAround = []*schema.Message{schema.UserMessage("Look around")}

func rateLimited() scriptedReply {
	return scriptedReply{err: ErrRateLimited}
}

func TestCompleteRetriesRateLimits(t *testing.T) {
	p := &scriptedProvider{replies: []scriptedReply{rateLimited(), rateLimited(), {text: "A cave.\nOptions:\n- Enter"}}}
	rec := &sleepRecorder{}
	c := NewClient(p, ClientConfig{}, WithSleep(rec.sleep))

	got, err := c.Complete(context.Background(), lookAround)
	require.NoError(t, err)

	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
	assert.Equal(t, []int{250, 250, 250}, p.tokens)
}

func TestCompleteExhaustsRetryBudget(t *testing.T) {
	p := &scriptedProvider{replies: []scriptedReply{rateLimited()}}
	rec := &sleepRecorder{}
	c := NewClient(p, ClientConfig{MaxAttempts: 3, BaseDelay: time.Second}, WithSleep(rec.sleep))

	got, err := c.Complete(context.Background(), lookAround)

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestCompleteBackoffDoublesEachAttempt(t *testing.T) {
	p := &scriptedProvider{replies: []scriptedReply{rateLimited()}}
	rec := &sleepRecorder{}
	c := NewClient(p, ClientConfig{MaxAttempts: 4, BaseDelay: time.Second}, WithSleep(rec.sleep))

	_, err := c.Complete(context.Background(), lookAround)

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestCompleteDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("401 unauthorized")
	p := &scriptedProvider{replies: []scriptedReply{{err: boom}, {text: "never"}}}
	rec := &sleepRecorder{}
	c := NewClient(p, ClientConfig{}, WithSleep(rec.sleep))

	got, err := c.Complete(context.Background(), lookAround)

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, rec.delays)
}

func TestCompleteTreatsEmptyTextAsFailure(t *testing.T) {
	p := &scriptedProvider{replies: []scriptedReply{{text: ""}, {text: "late"}}}
	rec := &sleepRecorder{}
	c := NewClient(p, ClientConfig{}, WithSleep(rec.sleep))

	got, err := c.Complete(context.Background(), lookAround)

	assert.ErrorIs(t, err, ErrEmptyCompletion)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Empty(t, got.Text)
	assert.Equal(t, 1, p.calls)
}

type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Generate(ctx context.Context, _ []*schema.Message, _ int) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestCompleteAppliesPerAttemptTimeout(t *testing.T) {
	rec := &sleepRecorder{}
	c := NewClient(blockingProvider{}, ClientConfig{Timeout: 10 * time.Millisecond}, WithSleep(rec.sleep))

	got, err := c.Complete(context.Background(), lookAround)

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, got.Attempts)
	assert.Empty(t, rec.delays)
}

func TestCompleteStopsWhenBackoffIsCancelled(t *testing.T) {
	p := &scriptedProvider{replies: []scriptedReply{rateLimited()}}
	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(p, ClientConfig{}, WithSleep(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}))

	_, err := c.Complete(ctx, lookAround)

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
