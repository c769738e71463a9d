package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	voices []Descriptor
	err    error
}

func (s *stubSource) Voices(ctx context.Context) ([]Descriptor, error) {
	return s.voices, s.err
}

func TestCatalog_RefreshNotifiesOnlyOnChange(t *testing.T) {
	src := &stubSource{}
	c := NewCatalog(src)

	var notified [][]Descriptor
	c.OnChange(func(v []Descriptor) { notified = append(notified, v) })

	changed, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed, "empty to empty is not a change")
	assert.Empty(t, c.Snapshot())

	// Voices arrive late, as some backends load them asynchronously.
	src.voices = []Descriptor{{ID: "a", Name: "A", Locale: "en-US"}}
	changed, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, notified, 1)
	assert.Equal(t, "a", notified[0][0].ID)

	// Same set again: no notification.
	src.voices = []Descriptor{{ID: "a", Name: "A", Locale: "en-US"}}
	changed, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, notified, 1)
}

func TestCatalog_SnapshotIsACopy(t *testing.T) {
	src := &stubSource{voices: []Descriptor{{ID: "a"}, {ID: "b"}}}
	c := NewCatalog(src)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	snap := c.Snapshot()
	snap[0].ID = "mutated"
	assert.Equal(t, "a", c.Snapshot()[0].ID)
}

func TestCatalog_RefreshError(t *testing.T) {
	src := &stubSource{voices: []Descriptor{{ID: "a"}}}
	c := NewCatalog(src)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	src.err = errors.New("offline")
	_, err = c.Refresh(context.Background())
	assert.Error(t, err)
	assert.Len(t, c.Snapshot(), 1, "failed refresh keeps the previous set")
}
