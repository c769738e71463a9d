package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageOrder(t *testing.T) {
	tests := []struct {
		stage Stage
		next  Stage
		ok    bool
	}{
		{Welcome, Face, true},
		{Face, Fingerprint, true},
		{Fingerprint, Countdown, true},
		{Countdown, Launch, true},
		{Launch, Complete, true},
		{Complete, Complete, false},
		{Stage("bogus"), Stage("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			next, ok := tt.stage.Next()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.next, next)
		})
	}
	assert.Equal(t, 0, Welcome.Index())
	assert.Equal(t, 5, Complete.Index())
	assert.False(t, Stage("").Valid())
}
