package monitoring

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertLogRaise(t *testing.T) {
	l := NewAlertLog(10)

	id := l.Raise(SeverityCritical, CategorySafety, "tracker", "fall detected")
	assert.NotEqual(t, uuid.Nil, id)

	active := l.Active()
	require.Len(t, active, 1)
	assert.Equal(t, SeverityCritical, active[0].Severity)
	assert.Equal(t, CategorySafety, active[0].Category)
	assert.Equal(t, "tracker", active[0].Component)
	assert.False(t, active[0].Acknowledged)
	assert.False(t, active[0].Resolved)
}

func TestAlertLogBound(t *testing.T) {
	l := NewAlertLog(3)

	for i := 0; i < 5; i++ {
		l.Raise(SeverityInfo, CategorySystem, "test", fmt.Sprintf("alert %d", i))
	}

	recent := l.Recent(0)
	require.Len(t, recent, 3)
	// Oldest entries fall off first.
	assert.Equal(t, "alert 2", recent[0].Message)
	assert.Equal(t, "alert 4", recent[2].Message)
}

func TestAlertLogRecent(t *testing.T) {
	l := NewAlertLog(10)
	for i := 0; i < 4; i++ {
		l.Raise(SeverityInfo, CategorySystem, "test", fmt.Sprintf("alert %d", i))
	}

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "alert 2", recent[0].Message)
	assert.Equal(t, "alert 3", recent[1].Message)
}

func TestAlertLogAcknowledge(t *testing.T) {
	l := NewAlertLog(10)
	id := l.Raise(SeverityWarning, CategoryHardware, "ld2450", "sensor offline")

	assert.True(t, l.Acknowledge(id))
	assert.False(t, l.Acknowledge(uuid.New()))

	active := l.Active()
	require.Len(t, active, 1)
	assert.True(t, active[0].Acknowledged)
}

func TestAlertLogResolve(t *testing.T) {
	l := NewAlertLog(10)
	id := l.Raise(SeverityWarning, CategoryHardware, "ld2450", "sensor offline")
	keep := l.Raise(SeverityInfo, CategorySystem, "scan", "still running")

	assert.True(t, l.Resolve(id))

	active := l.Active()
	require.Len(t, active, 1)
	assert.Equal(t, keep, active[0].ID)
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("hello %d", 42)
	assert.Equal(t, "hello 42", captured)

	SetLogger(nil)
	Logf("must not panic")
}
