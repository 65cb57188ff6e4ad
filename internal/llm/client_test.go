package llm

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.False(t, c.hasKey)
}

func TestComplete_MissingCredential(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Complete(context.Background(), "any prompt")
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &openai.Error{StatusCode: 429}, true},
		{"server error", &openai.Error{StatusCode: 503}, true},
		{"bad request", &openai.Error{StatusCode: 400}, false},
		{"unauthorized", &openai.Error{StatusCode: 401}, false},
		{"network failure", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
