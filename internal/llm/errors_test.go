package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
)

// TestClassify tests the error-to-kind mapping used by retry decisions.
func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      Kind
		wantTransient bool
	}{
		{"nil", nil, KindUnknown, false},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout, true},
		{"cancelled", context.Canceled, KindUnknown, false},
		{"rate limited", &openai.Error{StatusCode: 429}, KindThrottled, true},
		{"unauthorized", &openai.Error{StatusCode: 401}, KindAuthInvalid, false},
		{"forbidden", &openai.Error{StatusCode: 403}, KindAuthInvalid, false},
		{"bad request", &openai.Error{StatusCode: 400}, KindMalformed, false},
		{"not found", &openai.Error{StatusCode: 404}, KindMalformed, false},
		{"unprocessable", &openai.Error{StatusCode: 422}, KindMalformed, false},
		{"server error", &openai.Error{StatusCode: 500}, KindThrottled, true},
		{"bad gateway", &openai.Error{StatusCode: 502}, KindThrottled, true},
		{"teapot", &openai.Error{StatusCode: 418}, KindUnknown, false},
		{"plain error", errors.New("weird"), KindUnknown, false},
		{"wrapped api error", fmt.Errorf("call: %w", &openai.Error{StatusCode: 429}), KindThrottled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, transient := Classify(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantTransient, transient)
		})
	}
}

// TestClassify_AlreadyClassified tests that a pre-classified error keeps
// its kind.
func TestClassify_AlreadyClassified(t *testing.T) {
	err := &Error{Kind: KindThrottled, Transient: true, Err: errors.New("x")}

	kind, transient := Classify(fmt.Errorf("wrapped: %w", err))

	assert.Equal(t, KindThrottled, kind)
	assert.True(t, transient)
}

// TestError_Message tests the attempt count in the message.
func TestError_Message(t *testing.T) {
	one := &Error{Kind: KindAuthInvalid, Attempts: 1, Err: errors.New("denied")}
	many := &Error{Kind: KindThrottled, Attempts: 3, Err: errors.New("busy")}

	assert.NotContains(t, one.Error(), "attempts")
	assert.Contains(t, many.Error(), "attempts: 3")
	assert.Contains(t, many.Error(), "throttled")
}

// TestKind_String tests kind names.
func TestKind_String(t *testing.T) {
	assert.Equal(t, "throttled", KindThrottled.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "auth_invalid", KindAuthInvalid.String())
	assert.Equal(t, "malformed", KindMalformed.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
