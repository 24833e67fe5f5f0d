package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventBeforeOrdersByOccurredAtThenSeq(t *testing.T) {
	t0 := time.Now()
	t1 := t0.Add(time.Millisecond)

	earlier := Event{OccurredAt: t0, Seq: 5}
	later := Event{OccurredAt: t1, Seq: 1}
	assert.True(t, earlier.Before(later))
	assert.False(t, later.Before(earlier))

	tieA := Event{OccurredAt: t0, Seq: 1}
	tieB := Event{OccurredAt: t0, Seq: 2}
	assert.True(t, tieA.Before(tieB))
	assert.False(t, tieB.Before(tieA))
	assert.False(t, tieA.Before(tieA))
}

func TestEventIsTerminal(t *testing.T) {
	assert.False(t, Event{State: StateProcessing}.IsTerminal())
	assert.True(t, Event{State: "terminated"}.IsTerminal())
	assert.True(t, Event{State: StateHTTPError}.IsTerminal())
	assert.True(t, Event{State: StateUnhandledError}.IsTerminal())
	assert.True(t, Event{State: "idle"}.IsTerminal())
}
