package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production", ""} {
		l, err := New(env)
		require.NoError(t, err, env)
		assert.NotNil(t, l)
	}
}

func TestEnsureLogger(t *testing.T) {
	assert.IsType(t, &NoOpLogger{}, EnsureLogger(nil))

	l, err := New("development")
	require.NoError(t, err)
	assert.Same(t, l, EnsureLogger(l))

	// never panics
	EnsureLogger(nil).With("k", "v").Info("ignored")
}
