package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyDSNIsNoop(t *testing.T) {
	tr, err := New("", "test")
	require.NoError(t, err)
	assert.IsType(t, Noop{}, tr)

	tr.CaptureError(context.Background(), errors.New("boom"), map[string]string{"side": "put"})
	tr.Flush(time.Millisecond)
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New("not a dsn", "test")
	assert.Error(t, err)
}
