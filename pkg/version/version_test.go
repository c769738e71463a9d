package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.Go)
	assert.LessOrEqual(t, len(info.Revision), 12)
}

func TestGet_LinkTimeOverride(t *testing.T) {
	prev := Version
	Version = "v9.9.9-test"
	defer func() { Version = prev }()

	assert.Equal(t, "v9.9.9-test", Get().Version)
}
