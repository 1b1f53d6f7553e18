package app

import (
	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// Snapshot is the observable state of a coordinator. Version increases with
// every published change.
type Snapshot struct {
	Version      uint64                          `json:"version"`
	State        domain.SessionState             `json:"state"`
	Reason       string                          `json:"reason,omitempty"`
	Placement    domain.PlacementMode            `json:"placement"`
	Status       string                          `json:"status"`
	Downloading  bool                            `json:"downloading"`
	UserPosition *domain.Vec3                    `json:"user_position,omitempty"`
	Anchors      map[uuid.UUID]domain.AnchorInfo `json:"anchors"`
}

// PlaceResult is returned by a successful placement.
type PlaceResult struct {
	LocalID    uuid.UUID `json:"local_id"`
	AnchorData string    `json:"anchor_data"`
}

// DownloadReport summarizes a download. Failed holds the ids of records that
// could not be fetched or resolved.
type DownloadReport struct {
	Requested int      `json:"requested"`
	Resolved  int      `json:"resolved"`
	Failed    []string `json:"failed"`
}

// subscribers fans snapshots out with latest-wins delivery. Only the actor
// goroutine touches it.
type subscribers struct {
	next int
	subs map[int]chan Snapshot
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[int]chan Snapshot)}
}

func (s *subscribers) add(initial Snapshot) (int, chan Snapshot) {
	ch := make(chan Snapshot, 1)
	ch <- initial
	s.next++
	s.subs[s.next] = ch
	return s.next, ch
}

func (s *subscribers) remove(id int) {
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *subscribers) publish(snap Snapshot) {
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot; this goroutine is the only sender.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *subscribers) closeAll() {
	for id := range s.subs {
		s.remove(id)
	}
}

func (s *subscribers) len() int { return len(s.subs) }
