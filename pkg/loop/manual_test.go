package loop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var got []string

	m.AfterFunc(300*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 250*time.Millisecond, m.Now())

	m.Advance(50 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_StoppedTimerNeverFires(t *testing.T) {
	m := NewManual()
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop(), "second stop reports inactive")

	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManual_EveryUntilStopped(t *testing.T) {
	m := NewManual()
	count := 0
	var tm Timer
	tm = m.Every(100*time.Millisecond, func() {
		count++
		if count == 3 {
			tm.Stop()
		}
	})

	m.Advance(time.Second)
	assert.Equal(t, 3, count)
}

func TestManual_PostedTasksRunBeforeLaterTimers(t *testing.T) {
	m := NewManual()
	var got []string

	m.AfterFunc(10*time.Millisecond, func() {
		got = append(got, "timer")
		m.Post(func() { got = append(got, "posted-from-timer") })
	})
	m.AfterFunc(20*time.Millisecond, func() { got = append(got, "later") })
	m.Post(func() { got = append(got, "posted") })

	m.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"posted", "timer", "posted-from-timer", "later"}, got)
}
