package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient returns canned outcomes in order, recording concurrency.
type scriptedClient struct {
	mu       sync.Mutex
	outcomes []outcome
	calls    int

	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

type outcome struct {
	resp *Response
	err  error
}

func (c *scriptedClient) Complete(ctx context.Context, _ Request) (*Response, error) {
	cur := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		prev := c.maxActive.Load()
		if cur <= prev || c.maxActive.CompareAndSwap(prev, cur) {
			break
		}
	}

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.outcomes) == 0 {
		return &Response{Content: "ok", Model: "test-model"}, nil
	}
	out := c.outcomes[0]
	c.outcomes = c.outcomes[1:]
	return out.resp, out.err
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fastRetry keeps tests quick.
var fastRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	BackoffFactor:  2.0,
}

// TestGateway_Success tests the plain happy path.
func TestGateway_Success(t *testing.T) {
	client := &scriptedClient{outcomes: []outcome{
		{resp: &Response{Content: "hello", Model: "test-model"}},
	}}
	g := NewGateway(client, WithRetry(fastRetry))

	out, err := g.Generate(context.Background(), Request{Messages: []Message{UserMessage("hi")}})

	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, client.callCount())
}

// TestGateway_SerializesConcurrentCallers tests the single-slot rule: many
// concurrent callers, never more than one outstanding request.
func TestGateway_SerializesConcurrentCallers(t *testing.T) {
	client := &scriptedClient{delay: 5 * time.Millisecond}
	g := NewGateway(client, WithRetry(fastRetry))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(context.Background(), Request{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), client.maxActive.Load(),
		"more than one request was in flight at once")
	assert.Equal(t, 8, client.callCount())
}

// TestGateway_RetriesThrottling tests recovery from rate limiting: two 429
// responses, then success, all within one Generate call.
func TestGateway_RetriesThrottling(t *testing.T) {
	throttle := &openai.Error{StatusCode: 429}
	client := &scriptedClient{outcomes: []outcome{
		{err: throttle},
		{err: throttle},
		{resp: &Response{Content: "third time lucky", Model: "test-model"}},
	}}
	g := NewGateway(client, WithRetry(fastRetry))

	out, err := g.Generate(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, "third time lucky", out)
	assert.Equal(t, 3, client.callCount())
}

// TestGateway_ExhaustedRetriesReportAttempts tests that persistent
// throttling surfaces after the attempt budget with the count attached.
func TestGateway_ExhaustedRetriesReportAttempts(t *testing.T) {
	throttle := &openai.Error{StatusCode: 429}
	client := &scriptedClient{outcomes: []outcome{
		{err: throttle}, {err: throttle}, {err: throttle},
	}}
	g := NewGateway(client, WithRetry(fastRetry))

	_, err := g.Generate(context.Background(), Request{})

	require.Error(t, err)
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindThrottled, genErr.Kind)
	assert.True(t, genErr.Transient)
	assert.Equal(t, 3, genErr.Attempts)
	assert.Equal(t, 3, client.callCount())
}

// TestGateway_AuthFailureIsNotRetried tests that an invalid credential
// fails on the first attempt.
func TestGateway_AuthFailureIsNotRetried(t *testing.T) {
	client := &scriptedClient{outcomes: []outcome{
		{err: &openai.Error{StatusCode: 401}},
	}}
	g := NewGateway(client, WithRetry(fastRetry))

	_, err := g.Generate(context.Background(), Request{})

	require.Error(t, err)
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindAuthInvalid, genErr.Kind)
	assert.False(t, genErr.Transient)
	assert.Equal(t, 1, client.callCount())
}

// TestGateway_MalformedRequestIsNotRetried tests permanent 4xx handling.
func TestGateway_MalformedRequestIsNotRetried(t *testing.T) {
	client := &scriptedClient{outcomes: []outcome{
		{err: &openai.Error{StatusCode: 400}},
	}}
	g := NewGateway(client, WithRetry(fastRetry))

	_, err := g.Generate(context.Background(), Request{})

	require.Error(t, err)
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindMalformed, genErr.Kind)
	assert.Equal(t, 1, client.callCount())
}

// TestGateway_TimeoutRetried tests that a per-attempt timeout counts as
// transient: the slow first attempt is abandoned, the second succeeds.
func TestGateway_TimeoutRetried(t *testing.T) {
	client := &slowFirstClient{}
	g := NewGateway(client, WithRetry(fastRetry), WithTimeout(10*time.Millisecond))

	out, err := g.Generate(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), client.calls.Load())
}

// slowFirstClient blocks the first call until its context expires, then
// answers promptly.
type slowFirstClient struct {
	calls atomic.Int32
}

func (c *slowFirstClient) Complete(ctx context.Context, _ Request) (*Response, error) {
	if c.calls.Add(1) == 1 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &Response{Content: "recovered", Model: "test-model"}, nil
}

// TestGateway_SlotHeldAcrossRetries tests that a retrying caller keeps the
// slot: the second caller's request starts only after the first caller's
// full retry sequence completes.
func TestGateway_SlotHeldAcrossRetries(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(tag string) {
		mu.Lock()
		order = append(order, tag)
		mu.Unlock()
	}

	throttle := &openai.Error{StatusCode: 429}
	client := &trackingClient{record: record, outcomes: []outcome{
		{err: throttle},
		{resp: &Response{Content: "first"}},
		{resp: &Response{Content: "second"}},
	}}
	g := NewGateway(client, WithRetry(fastRetry))

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		out, err := g.Generate(context.Background(), Request{})
		assert.NoError(t, err)
		assert.Equal(t, "first", out)
	}()

	// Give the first caller time to take the slot and hit the throttle.
	time.Sleep(2 * time.Millisecond)

	out, err := g.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", out)
	<-firstDone

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, []string{"call", "call", "call"}, order)
	// The decisive check: outcomes were consumed in order, so the second
	// caller saw "second", proving it did not slip in during the first
	// caller's backoff.
}

// trackingClient records each call and pops scripted outcomes.
type trackingClient struct {
	mu       sync.Mutex
	record   func(string)
	outcomes []outcome
}

func (c *trackingClient) Complete(_ context.Context, _ Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("call")
	if len(c.outcomes) == 0 {
		return nil, errors.New("script exhausted")
	}
	out := c.outcomes[0]
	c.outcomes = c.outcomes[1:]
	return out.resp, out.err
}

// TestGateway_CancelledWhileWaitingForSlot tests that a caller blocked on
// the slot honors context cancellation.
func TestGateway_CancelledWhileWaitingForSlot(t *testing.T) {
	client := &scriptedClient{delay: 50 * time.Millisecond}
	g := NewGateway(client, WithRetry(fastRetry))

	// Occupy the slot.
	go func() { _, _ = g.Generate(context.Background(), Request{}) }()
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, Request{})

	require.Error(t, err)
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, context.Canceled)
}
