package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// process is one store with its own connection and broadcaster, as a
// separate auditsmart process would have.
type process struct {
	db          DBService
	broadcaster *Broadcaster
	store       SessionStore
	feed        *ChangeFeed
}

func newProcess(t *testing.T, path string) *process {
	t.Helper()
	db, err := NewSqliteDBService(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	broadcaster := NewBroadcaster()
	p := &process{
		db:          db,
		broadcaster: broadcaster,
		store:       NewSessionStore(db.GetDB(), broadcaster, nil),
		feed:        NewChangeFeed(db.GetDB(), broadcaster, WithFeedInterval(10*time.Millisecond)),
	}
	require.NoError(t, p.feed.Start(context.Background()))
	t.Cleanup(p.feed.Close)
	return p
}

// recorder collects the changes delivered to one subscription.
type recorder struct {
	mu      sync.Mutex
	changes []FieldChange
}

func (r *recorder) record(change FieldChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recorder) all() []FieldChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FieldChange(nil), r.changes...)
}

func subscribe(t *testing.T, store SessionStore, sessionID string) *recorder {
	t.Helper()
	r := &recorder{}
	t.Cleanup(store.Subscribe(sessionID, r.record))
	return r
}

func TestChangeFeed_DeliversWritesFromOtherProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditsmart.db")
	serve := newProcess(t, path)
	cli := newProcess(t, path)

	received := subscribe(t, serve.store, "s1")

	require.NoError(t, cli.store.SetMany("s1", map[models.SessionField]*string{
		models.FieldPastedCode: strPtr(`"contract A {}"`),
		models.FieldResults:    strPtr(`{"vulnerabilities":[]}`),
	}))
	require.Eventually(t, func() bool { return len(received.all()) == 2 }, 5*time.Second, 10*time.Millisecond)

	changes := received.all()
	assert.Equal(t, models.FieldPastedCode, changes[0].Field)
	assert.Equal(t, models.FieldResults, changes[1].Field)
	require.NotNil(t, changes[1].Value)
	assert.Equal(t, `{"vulnerabilities":[]}`, *changes[1].Value)
	assert.Equal(t, cli.store.Origin(), changes[1].Origin)

	require.NoError(t, cli.store.Clear("s1"))
	require.Eventually(t, func() bool { return len(received.all()) == 4 }, 5*time.Second, 10*time.Millisecond)
	for _, change := range received.all()[2:] {
		assert.Nil(t, change.Value, "field %s", change.Field)
	}
}

func TestChangeFeed_SameProcessWritesAreNotRepeated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditsmart.db")
	serve := newProcess(t, path)
	tab := NewSessionStore(serve.db.GetDB(), serve.broadcaster, nil)

	received := subscribe(t, tab, "s1")
	require.NoError(t, serve.store.Set("s1", models.FieldMintingAvailable, strPtr("true")))

	require.Eventually(t, func() bool { return len(received.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(received.all()) > 1 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestChangeFeed_StartSkipsEarlierChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditsmart.db")
	cli := newProcess(t, path)
	require.NoError(t, cli.store.Set("s1", models.FieldPastedCode, strPtr(`"old"`)))

	serve := newProcess(t, path)
	received := subscribe(t, serve.store, "s1")
	require.NoError(t, cli.store.Set("s1", models.FieldPastedCode, strPtr(`"new"`)))

	require.Eventually(t, func() bool { return len(received.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, `"new"`, *received.all()[0].Value)
}

func TestChangeFeed_Advance(t *testing.T) {
	f := &ChangeFeed{cursor: 5}

	f.advance(6)
	assert.EqualValues(t, 6, f.cursor)

	// 7 is not committed yet
	f.advance(8)
	assert.EqualValues(t, 6, f.cursor)
	assert.False(t, f.gapSince.IsZero())

	f.advance(7)
	assert.EqualValues(t, 7, f.cursor)
	f.advance(8)
	assert.EqualValues(t, 8, f.cursor)
	assert.True(t, f.gapSince.IsZero())

	// A gap that never fills is skipped after the timeout
	f.advance(10)
	assert.EqualValues(t, 8, f.cursor)
	f.gapSince = time.Now().Add(-feedGapTimeout)
	f.advance(10)
	assert.EqualValues(t, 10, f.cursor)
}

func TestChangeFeed_DeliversPastGapOnce(t *testing.T) {
	db, err := NewSqliteDBService(":memory:")
	require.NoError(t, err)
	defer db.Close()

	remote := models.SessionChange{SessionID: "s1", Field: models.FieldResults, Node: "other", Origin: "tab"}
	for _, id := range []uint{1, 3} {
		change := remote
		change.ID = id
		require.NoError(t, db.GetDB().Create(&change).Error)
	}

	broadcaster := NewBroadcaster()
	received := &recorder{}
	t.Cleanup(broadcaster.Subscribe("local", received.record))

	f := NewChangeFeed(db.GetDB(), broadcaster)
	require.NoError(t, f.poll(context.Background()))
	require.NoError(t, f.poll(context.Background()))

	assert.EqualValues(t, 1, f.cursor)
	assert.Eventually(t, func() bool { return len(received.all()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(received.all()) > 2 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestChangeFeed_Prune(t *testing.T) {
	db, err := NewSqliteDBService(":memory:")
	require.NoError(t, err)
	defer db.Close()

	old := models.SessionChange{SessionID: "s1", Field: models.FieldResults, Node: "n", Origin: "o", CreatedAt: time.Now().Add(-time.Hour)}
	recent := models.SessionChange{SessionID: "s1", Field: models.FieldResults, Node: "n", Origin: "o"}
	require.NoError(t, db.GetDB().Create(&old).Error)
	require.NoError(t, db.GetDB().Create(&recent).Error)

	f := NewChangeFeed(db.GetDB(), NewBroadcaster(), WithFeedRetention(time.Minute))
	require.NoError(t, f.prune(context.Background()))

	var remaining []models.SessionChange
	require.NoError(t, db.GetDB().Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, recent.ID, remaining[0].ID)
}

func strPtr(v string) *string {
	return &v
}
