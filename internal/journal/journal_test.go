package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/hotword/pkg/wake"
)

func openTestJournal(t *testing.T, retain int) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), retain)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := openTestJournal(t, 0)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		_, err := j.Record(ctx, wake.Trigger{
			Phrase:   "hey jacq",
			Fragment: "well hey jacq",
			Distance: i,
			At:       base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, 2, entries[0].Distance)
	assert.Equal(t, 0, entries[2].Distance)
	assert.Equal(t, "hey jacq", entries[0].Phrase)
	assert.Equal(t, "well hey jacq", entries[0].Fragment)
	assert.NotEmpty(t, entries[0].ID)
	assert.WithinDuration(t, base.Add(2*time.Second), entries[0].TriggeredAt, time.Second)
}

func TestJournal_RecentLimit(t *testing.T) {
	j := openTestJournal(t, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := j.Record(ctx, wake.Trigger{Phrase: "hey jacq", At: time.Now()})
		require.NoError(t, err)
	}

	entries, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestJournal_RetainPrunesOldest(t *testing.T) {
	j := openTestJournal(t, 3)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := j.Record(ctx, wake.Trigger{
			Phrase:   "hey jacq",
			Fragment: "fragment",
			At:       base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// The oldest two are gone.
	assert.WithinDuration(t, base.Add(4*time.Minute), entries[0].TriggeredAt, time.Second)
	assert.WithinDuration(t, base.Add(2*time.Minute), entries[2].TriggeredAt, time.Second)
}

func TestJournal_ZeroTriggerTimeDefaults(t *testing.T) {
	j := openTestJournal(t, 0)

	e, err := j.Record(context.Background(), wake.Trigger{Phrase: "hey jacq"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), e.TriggeredAt, time.Second)
}

func TestJournal_EmptyRecent(t *testing.T) {
	j := openTestJournal(t, 0)

	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path, 0)
	require.NoError(t, err)
	_, err = j.Record(ctx, wake.Trigger{Phrase: "hey jacq", At: time.Now()})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
