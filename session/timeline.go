// Package session holds the per-user messaging state: the active
// conversation timeline, the unread counter, and the optimistic send
// pipeline. One Session is built at sign-in and closed at sign-out;
// there is no ambient global.
package session

import (
	"sort"
	"time"

	"market-chat/domain"
)

// timeline is the ordered message list of the active conversation.
// Order is re-established by an explicit stable sort after every
// mutation, never assumed from event arrival. Not safe for concurrent
// use; the owning Session serializes access.
type timeline struct {
	messages []domain.Message
}

func (t *timeline) reset() {
	t.messages = nil
}

func (t *timeline) len() int {
	return len(t.messages)
}

// snapshot returns a copy so the UI can render without holding the
// session lock.
func (t *timeline) snapshot() []domain.Message {
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *timeline) contains(id int64) bool {
	for _, m := range t.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// merge inserts or updates messages by id, then restores order.
// Replaying an insert for an id already present overwrites in place,
// so duplicates never grow the list.
func (t *timeline) merge(messages ...domain.Message) {
	for _, incoming := range messages {
		replaced := false
		for i, existing := range t.messages {
			if existing.ID == incoming.ID {
				t.messages[i] = incoming
				replaced = true
				break
			}
		}
		if !replaced {
			t.messages = append(t.messages, incoming)
		}
	}
	t.sort()
}

// replace swaps the pending entry matched by its temporary id for the
// confirmed record. The placeholder is dropped first because the echo
// event may have merged the confirmed record already; going through
// merge keeps the outcome identical either way, with no duplicate.
func (t *timeline) replace(tempID int64, confirmed domain.Message) {
	t.remove(tempID)
	t.merge(confirmed)
}

// remove drops the entry by id and returns it for potential restore.
func (t *timeline) remove(id int64) (domain.Message, bool) {
	for i, existing := range t.messages {
		if existing.ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return existing, true
		}
	}
	return domain.Message{}, false
}

// markInboundRead stamps every unread message not sent by userID and
// returns how many transitioned.
func (t *timeline) markInboundRead(userID string, at time.Time) int {
	marked := 0
	for i := range t.messages {
		if t.messages[i].Unread() && t.messages[i].InboundFor(userID) {
			t.messages[i].MarkRead(at)
			marked++
		}
	}
	return marked
}

// sort orders ascending by creation time. The sort is stable so
// pending entries sharing a timestamp keep compose order.
func (t *timeline) sort() {
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
}
