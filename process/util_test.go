package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsTimeAcceptsNativeAndStringEncodings(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	got, err := asTime(now)
	require.NoError(t, err)
	assert.True(t, now.Equal(got))

	got, err = asTime(now.Format(time.RFC3339Nano))
	require.NoError(t, err)
	assert.True(t, now.Equal(got))

	_, err = asTime(12345)
	assert.Error(t, err)
}

func TestAsInt64AcceptsNumericShapes(t *testing.T) {
	assert.Equal(t, int64(5), asInt64(int64(5)))
	assert.Equal(t, int64(5), asInt64(5))
	assert.Equal(t, int64(5), asInt64(float64(5)))
	assert.Equal(t, int64(0), asInt64("not-a-number"))
}
