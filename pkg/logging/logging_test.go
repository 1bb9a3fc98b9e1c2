package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, z, err := New("debug", true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, z.Core().Enabled(-1))
	logger.WithField("component", "test").Debug("hello")

	_, z, err = New("warn", false)
	require.NoError(t, err)
	assert.False(t, z.Core().Enabled(0))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New("loud", false)
	assert.ErrorContains(t, err, "invalid log level")
}
