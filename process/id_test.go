package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProcessIDIsValidAndUnique(t *testing.T) {
	a := NewProcessID()
	b := NewProcessID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.True(t, ValidProcessID(a))
	assert.True(t, ValidProcessID(b))
}

func TestValidProcessIDRejectsMalformed(t *testing.T) {
	assert.False(t, ValidProcessID(""))
	assert.False(t, ValidProcessID("not-an-object-id"))
	assert.False(t, ValidProcessID("DEADBEEF"))
}
