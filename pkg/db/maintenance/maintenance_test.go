package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/pkg/db"
)

func seed(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "maint_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	ago := func(days int) string {
		return time.Now().Add(-time.Duration(days) * 24 * time.Hour).UTC().Format(db.TimeFormat)
	}
	_, err = d.Exec("INSERT INTO cache (key, value, created_at) VALUES ('old', 'x', ?), ('new', 'x', ?)", ago(40), ago(1))
	require.NoError(t, err)
	_, err = d.Exec("INSERT INTO runs (id, started_at) VALUES ('run-a', ?), ('run-b', ?)", ago(40), ago(100))
	require.NoError(t, err)
	return d
}

func count(t *testing.T, d *db.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, d.QueryRow(query).Scan(&n))
	return n
}

func TestRun(t *testing.T) {
	d := seed(t)

	removed := Run(context.Background(), d, DefaultRetention)

	assert.EqualValues(t, 2, removed)
	assert.Equal(t, 0, count(t, d, "SELECT count(*) FROM cache WHERE key = 'old'"))
	assert.Equal(t, 1, count(t, d, "SELECT count(*) FROM cache WHERE key = 'new'"))
	// 40 days is inside the 90 day run retention
	assert.Equal(t, 1, count(t, d, "SELECT count(*) FROM runs"))
}

func TestRun_ZeroKeepsEverything(t *testing.T) {
	d := seed(t)

	assert.Zero(t, Run(context.Background(), d, Retention{}))
	assert.Equal(t, 2, count(t, d, "SELECT count(*) FROM cache"))
}

func TestRun_Canceled(t *testing.T) {
	d := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Zero(t, Run(ctx, d, DefaultRetention))
	assert.Equal(t, 2, count(t, d, "SELECT count(*) FROM runs"))
}
