package session

import (
	"testing"
	"time"

	"market-chat/domain"

	"github.com/stretchr/testify/require"
)

func message(id int64, at time.Time) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: "conv-1",
		SenderID:       "bob",
		Body:           "m",
		CreatedAt:      at,
	}
}

func TestTimeline_Merge_SortsOutOfOrderArrivals(t *testing.T) {
	req := require.New(t)
	base := time.Now().UTC()
	var tl timeline

	// Live events land before the history load and out of order.
	tl.merge(message(3, base.Add(3*time.Second)))
	tl.merge(message(1, base.Add(1*time.Second)))
	tl.merge(message(2, base.Add(2*time.Second)), message(4, base.Add(4*time.Second)))

	snapshot := tl.snapshot()
	req.Len(snapshot, 4)
	for i, m := range snapshot {
		req.Equal(int64(i+1), m.ID)
	}
}

func TestTimeline_Merge_ReplayIsIdempotent(t *testing.T) {
	req := require.New(t)
	base := time.Now().UTC()
	var tl timeline

	tl.merge(message(1, base))
	tl.merge(message(1, base))
	tl.merge(message(1, base))

	req.Equal(1, tl.len())
}

func TestTimeline_Replace_MatchesByTemporaryID(t *testing.T) {
	req := require.New(t)
	base := time.Now().UTC()
	var tl timeline

	pendingA := domain.Message{ID: -1, SenderID: "alice", Body: "a", CreatedAt: base, Pending: true}
	pendingB := domain.Message{ID: -2, SenderID: "alice", Body: "b", CreatedAt: base.Add(time.Millisecond), Pending: true}
	tl.merge(pendingA)
	tl.merge(pendingB)

	// Confirmations arrive in reverse order; order must stay a then b.
	confirmedB := domain.Message{ID: 12, SenderID: "alice", Body: "b", CreatedAt: base.Add(time.Millisecond)}
	confirmedA := domain.Message{ID: 11, SenderID: "alice", Body: "a", CreatedAt: base}
	tl.replace(-2, confirmedB)
	tl.replace(-1, confirmedA)

	snapshot := tl.snapshot()
	req.Len(snapshot, 2)
	req.Equal("a", snapshot[0].Body)
	req.Equal("b", snapshot[1].Body)
	req.False(snapshot[0].Pending)

	// The stream echo for an already reconciled id changes nothing.
	tl.merge(confirmedA)
	req.Equal(2, tl.len())
}

func TestTimeline_Replace_AfterPlaceholderGone_MergesInstead(t *testing.T) {
	req := require.New(t)
	var tl timeline

	confirmed := message(7, time.Now().UTC())
	tl.replace(-5, confirmed)

	req.Equal(1, tl.len())
	req.True(tl.contains(7))
}

func TestTimeline_Remove_And_MergeBack_RestoresPosition(t *testing.T) {
	req := require.New(t)
	base := time.Now().UTC()
	var tl timeline

	tl.merge(message(1, base), message(2, base.Add(time.Second)), message(3, base.Add(2*time.Second)))

	removed, ok := tl.remove(2)
	req.True(ok)
	req.Equal(2, tl.len())

	// A failed deletion re-fetches and merges back: middle, not end.
	tl.merge(removed)
	snapshot := tl.snapshot()
	req.Equal(int64(1), snapshot[0].ID)
	req.Equal(int64(2), snapshot[1].ID)
	req.Equal(int64(3), snapshot[2].ID)
}

func TestTimeline_MarkInboundRead_SkipsOwnMessages(t *testing.T) {
	req := require.New(t)
	base := time.Now().UTC()
	var tl timeline

	own := domain.Message{ID: 1, SenderID: "alice", CreatedAt: base}
	inbound := domain.Message{ID: 2, SenderID: "bob", CreatedAt: base.Add(time.Second)}
	tl.merge(own, inbound)

	marked := tl.markInboundRead("alice", base.Add(time.Minute))
	req.Equal(1, marked)

	snapshot := tl.snapshot()
	req.True(snapshot[0].Unread())
	req.False(snapshot[1].Unread())

	// Second pass finds nothing left to mark.
	req.Zero(tl.markInboundRead("alice", base.Add(2*time.Minute)))
}
