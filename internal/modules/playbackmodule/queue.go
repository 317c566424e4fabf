package playbackmodule

import (
	"math/rand"
	"sync"
)

// Queue holds the ordered set of track IDs playback walks through. Shuffle
// is a stable permutation: it is drawn once when toggled on or when the
// track set changes, not on every advance, so next/prev walk a fixed order.
type Queue struct {
	mu      sync.Mutex
	order   []string // library order
	active  []string // order actually walked; a permutation of order when shuffled
	shuffle bool
	repeat  RepeatMode
	pos     int // index into active, -1 when nothing is selected
}

func NewQueue() *Queue {
	return &Queue{pos: -1, repeat: RepeatOff}
}

// SetTracks replaces the queue content. The currently selected track stays
// selected when it survives the replacement; shuffle draws a fresh
// permutation.
func (q *Queue) SetTracks(ids []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	current := q.currentLocked()
	q.order = append([]string(nil), ids...)
	q.rebuildActiveLocked(current)
}

// Select makes id the current track. It reports false when id is not in the
// queue.
func (q *Queue) Select(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, candidate := range q.active {
		if candidate == id {
			q.pos = i
			return true
		}
	}
	return false
}

// Current returns the selected track ID, if any.
func (q *Queue) Current() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.currentLocked()
	return id, id != ""
}

// Next advances for an explicit user action. It always wraps, regardless of
// repeat mode; repeat only governs what happens when a track ends on its
// own.
func (q *Queue) Next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.active) == 0 {
		return "", false
	}
	q.pos = (q.pos + 1) % len(q.active)
	return q.active[q.pos], true
}

// Prev steps back for an explicit user action, wrapping at the front.
func (q *Queue) Prev() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.active) == 0 {
		return "", false
	}
	if q.pos <= 0 {
		q.pos = len(q.active) - 1
	} else {
		q.pos--
	}
	return q.active[q.pos], true
}

// Advance moves to the track that should follow a natural track end, per
// the repeat mode. It reports false when playback should stop.
func (q *Queue) Advance() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.active) == 0 || q.pos < 0 {
		return "", false
	}

	switch q.repeat {
	case RepeatOne:
		return q.active[q.pos], true
	case RepeatAll:
		q.pos = (q.pos + 1) % len(q.active)
		return q.active[q.pos], true
	default:
		if q.pos+1 >= len(q.active) {
			return "", false
		}
		q.pos++
		return q.active[q.pos], true
	}
}

// SetShuffle toggles shuffle. Turning it on draws one permutation and moves
// the current track to its head; turning it off restores library order with
// the current track still selected.
func (q *Queue) SetShuffle(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuffle == on {
		return
	}
	q.shuffle = on
	q.rebuildActiveLocked(q.currentLocked())
}

func (q *Queue) Shuffle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffle
}

func (q *Queue) SetRepeat(mode RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch mode {
	case RepeatOff, RepeatOne, RepeatAll:
		q.repeat = mode
	}
}

func (q *Queue) Repeat() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// Tracks returns a copy of the order playback currently walks.
func (q *Queue) Tracks() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.active...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

func (q *Queue) currentLocked() string {
	if q.pos < 0 || q.pos >= len(q.active) {
		return ""
	}
	return q.active[q.pos]
}

// rebuildActiveLocked recomputes the walk order, keeping current selected.
// Caller holds the mutex.
func (q *Queue) rebuildActiveLocked(current string) {
	q.active = append([]string(nil), q.order...)
	if q.shuffle {
		rand.Shuffle(len(q.active), func(i, j int) {
			q.active[i], q.active[j] = q.active[j], q.active[i]
		})
	}

	q.pos = -1
	for i, id := range q.active {
		if id == current {
			q.pos = i
			break
		}
	}
	if q.pos < 0 {
		return
	}
	if q.shuffle && q.pos != 0 {
		// The current track heads the permutation so the full set plays
		// before any repeat-all wrap revisits it.
		q.active[0], q.active[q.pos] = q.active[q.pos], q.active[0]
		q.pos = 0
	}
}
