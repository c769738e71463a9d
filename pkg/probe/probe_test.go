package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestRun_KeepsOrder(t *testing.T) {
	report := Run(context.Background(), []Probe{
		{Name: "slow", Check: func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		}},
		{Name: "broken", Check: fail("minor issue")},
		{Name: "fast", Check: pass},
	})

	require.Len(t, report, 3)
	assert.Equal(t, "slow", report[0].Probe.Name)
	assert.NoError(t, report[0].Error)
	assert.GreaterOrEqual(t, report[0].Duration, 20*time.Millisecond)
	assert.EqualError(t, report[1].Error, "minor issue")
	assert.Equal(t, "fast", report[2].Probe.Name)
	report.Log()
}

func TestRun_Timeout(t *testing.T) {
	report := Run(context.Background(), []Probe{{
		Name:    "hangs",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})
	assert.ErrorIs(t, report[0].Error, context.DeadlineExceeded)
}

func TestReport_Err(t *testing.T) {
	tests := []struct {
		name    string
		report  Report
		wantErr string
	}{
		{"all pass", Report{{Probe: Probe{Name: "db", Critical: true}}}, ""},
		{"optional failure", Report{{Probe: Probe{Name: "voices"}, Error: errors.New("offline")}}, ""},
		{
			"critical failures joined",
			Report{
				{Probe: Probe{Name: "voices"}, Error: errors.New("offline")},
				{Probe: Probe{Name: "db", Critical: true}, Error: errors.New("read-only")},
				{Probe: Probe{Name: "temp", Critical: true}, Error: errors.New("full")},
			},
			"db: read-only\ntemp: full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.report.Err()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestDirWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	require.NoError(t, DirWritable(dir)(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe left files behind")

	assert.NoError(t, ParentWritable(filepath.Join(dir, "authflow.db"))(context.Background()))
}
