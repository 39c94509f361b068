package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"commlink/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// StoreSuite runs the Store contract against one implementation.
type StoreSuite struct {
	suite.Suite
	open  func(t *testing.T) Store
	store Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
}

func (s *StoreSuite) TearDownTest() {
	_ = s.store.Close()
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store { return NewMemoryStore() }})
}

func TestSQLStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store {
		st, err := NewSQLStore("sqlite", ":memory:")
		require.NoError(t, err)
		return st
	}})
}

var ignoreVolatile = cmpopts.IgnoreFields(types.Utterance{}, "ID", "CreatedAt")

func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func (s *StoreSuite) TestAppendAssignsIncreasingSeq() {
	a, err := s.store.AppendUtterance(s.ctx, types.Utterance{Sender: "u1", Text: "first"})
	s.Require().NoError(err)
	b, err := s.store.AppendUtterance(s.ctx, types.Utterance{Sender: types.SenderBot, Text: "second"})
	s.Require().NoError(err)

	s.Greater(b.Seq, a.Seq)
	s.NotEmpty(a.ID)
	s.NotEqual(a.ID, b.ID)
	s.False(a.CreatedAt.IsZero())
}

func (s *StoreSuite) TestCompressedUtteranceRoundTrip() {
	_, err := s.store.AppendUtterance(s.ctx, types.Utterance{Sender: "u1", TokenIndex: types.IntPtr(0)})
	s.Require().NoError(err)
	_, err = s.store.AppendUtterance(s.ctx, types.Utterance{Sender: "u1", Text: "plain"})
	s.Require().NoError(err)

	got, err := s.store.ListUtterances(s.ctx, 0)
	s.Require().NoError(err)

	want := []types.Utterance{
		{Sender: "u1", TokenIndex: types.IntPtr(0), Seq: got[0].Seq},
		{Sender: "u1", Text: "plain", Seq: got[1].Seq},
	}
	if diff := cmp.Diff(want, got, ignoreVolatile); diff != "" {
		s.Failf("history mismatch", "(-want +got):\n%s", diff)
	}
}

func (s *StoreSuite) TestListUtterancesLimitKeepsNewest() {
	for _, text := range []string{"a", "b", "c", "d"} {
		_, err := s.store.AppendUtterance(s.ctx, types.Utterance{Sender: "u1", Text: text})
		s.Require().NoError(err)
	}

	got, err := s.store.ListUtterances(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("c", got[0].Text)
	s.Equal("d", got[1].Text)

	all, err := s.store.ListUtterances(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(all, 4)
}

func (s *StoreSuite) TestSubscribeDeliversInitialAndLatest() {
	_, err := s.store.AppendUtterance(s.ctx, types.Utterance{Sender: "u1", Text: "before"})
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ch, err := s.store.Subscribe(ctx)
	s.Require().NoError(err)

	initial := <-ch
	s.Require().Len(initial, 1)
	s.Equal("before", initial[0].Text)

	for _, text := range []string{"x", "y"} {
		_, err := s.store.AppendUtterance(s.ctx, types.Utterance{Sender: "u1", Text: text})
		s.Require().NoError(err)
	}

	// The unread "x" snapshot was replaced by the newer one.
	latest := <-ch
	s.Require().Len(latest, 3)
	s.Equal("y", latest[2].Text)

	cancel()
	s.Eventually(func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func (s *StoreSuite) TestCloseClosesSubscribers() {
	ch, err := s.store.Subscribe(s.ctx)
	s.Require().NoError(err)
	<-ch

	s.Require().NoError(s.store.Close())
	_, ok := <-ch
	s.False(ok)
}

func (s *StoreSuite) TestCloseReleasesUncancelledSubscriber() {
	defer goleak.VerifyNone(s.T(), goleak.IgnoreCurrent())

	ch, err := s.store.Subscribe(context.Background())
	s.Require().NoError(err)
	<-ch

	s.Require().NoError(s.store.Close())
	_, ok := <-ch
	s.False(ok)
}

func (s *StoreSuite) TestCompressedUtteranceDropsText() {
	got, err := s.store.AppendUtterance(s.ctx, types.Utterance{Sender: "u1", Text: "hello", TokenIndex: types.IntPtr(0)})
	s.Require().NoError(err)
	s.Empty(got.Text)
	s.Require().NotNil(got.TokenIndex)
	s.Equal(0, *got.TokenIndex)

	history, err := s.store.ListUtterances(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Empty(history[0].Text)
	s.True(history[0].IsCompressed())
}

func (s *StoreSuite) TestRemindersDueOrderingAndLimit() {
	now := time.UnixMilli(10_000)
	records := []types.ReminderRecord{
		{ID: "late", DueAt: 20_000, Message: "later"},
		{ID: "b", DueAt: 9_000, Message: "second"},
		{ID: "a", DueAt: 5_000, Message: "first"},
		{ID: "edge", DueAt: 10_000, Message: "exactly now"},
	}
	for _, r := range records {
		s.Require().NoError(s.store.InsertReminder(s.ctx, r))
	}

	due, err := s.store.DueReminders(s.ctx, now, 10)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b", "edge"}, reminderIDs(due))

	limited, err := s.store.DueReminders(s.ctx, now, 2)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, reminderIDs(limited))

	all, err := s.store.ListReminders(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b", "edge", "late"}, reminderIDs(all))
}

func (s *StoreSuite) TestDeleteReminderIsIdempotent() {
	s.Require().NoError(s.store.InsertReminder(s.ctx, types.ReminderRecord{ID: "r1", DueAt: 1, Message: "m"}))

	s.NoError(s.store.DeleteReminder(s.ctx, "r1"))
	s.NoError(s.store.DeleteReminder(s.ctx, "r1"))
	s.NoError(s.store.DeleteReminder(s.ctx, "never-existed"))

	all, err := s.store.ListReminders(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *StoreSuite) TestDuplicateReminderIsStoreError() {
	r := types.ReminderRecord{ID: "dup", DueAt: 1, Message: "m"}
	s.Require().NoError(s.store.InsertReminder(s.ctx, r))

	err := s.store.InsertReminder(s.ctx, r)
	s.Require().Error(err)
	s.True(errors.Is(err, types.ErrStore))
}

func (s *StoreSuite) TestOperationsAfterCloseFail() {
	s.Require().NoError(s.store.Close())

	_, err := s.store.AppendUtterance(s.ctx, types.Utterance{Sender: "u1", Text: "late"})
	s.Require().Error(err)
	s.True(errors.Is(err, types.ErrStore))
}

func reminderIDs(rs []types.ReminderRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestSQLStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "commlink.db")

	st, err := NewSQLStore("sqlite", path)
	require.NoError(t, err)
	_, err = st.AppendUtterance(ctx, types.Utterance{Sender: "u1", Text: "kept"})
	require.NoError(t, err)
	require.NoError(t, st.InsertReminder(ctx, types.ReminderRecord{ID: "r", DueAt: 42, Message: "m"}))
	require.NoError(t, st.Close())

	reopened, err := NewSQLStore("sqlite", path)
	require.NoError(t, err)
	defer reopened.Close()

	history, err := reopened.ListUtterances(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "kept", history[0].Text)

	next, err := reopened.AppendUtterance(ctx, types.Utterance{Sender: "u1", Text: "next"})
	require.NoError(t, err)
	assert.Greater(t, next.Seq, history[0].Seq)

	reminders, err := reopened.ListReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r"}, reminderIDs(reminders))
}

func TestOpen(t *testing.T) {
	st, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	_, err = Open("postgres", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStore))
}
