package playlist

import (
	"errors"
	"math/rand"
	"time"
)

// Boundary results returned by Next and Previous. These are expected
// terminal conditions, not faults: callers branch on them to decide
// whether playback stops.
var (
	ErrEmpty   = errors.New("playlist is empty")
	ErrAtEnd   = errors.New("end of playlist")
	ErrAtStart = errors.New("start of playlist")
)

// Track represents a single playable item from the media catalog.
type Track struct {
	ID        string // catalog ID, stable across rescans
	Title     string
	Artist    string
	Album     string
	URI       string // file path or URL handed to the playback backend
	Duration  time.Duration
	Thumbnail string // path to extracted cover art, empty if none
}

// State is a snapshot of the play order. Tracks is a copy and safe to
// retain.
type State struct {
	Tracks  []Track // current order (shuffled when Shuffle is set)
	Index   int     // -1 if nothing selected
	Shuffle bool
	Repeat  bool
}

// Current returns the selected track, or nil if none.
func (s State) Current() *Track {
	if s.Index < 0 || s.Index >= len(s.Tracks) {
		return nil
	}
	return &s.Tracks[s.Index]
}

// Controller owns the play order: the track sequence, the pristine
// pre-shuffle sequence, the current index, and the shuffle/repeat
// flags. It resolves which track plays next but never starts playback
// itself.
//
// Not safe for concurrent use. The playback session serializes access.
type Controller struct {
	order    []Track
	original []Track // pristine order, restored when shuffle is disabled
	current  int     // index into order, -1 if nothing selected
	shuffle  bool
	repeat   bool // single-track repeat; there is no repeat-all
	rng      *rand.Rand
}

// New creates an empty controller.
func New() *Controller {
	return &Controller{
		current: -1,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Replace installs tracks as both the play order and the pristine
// order, selecting startIndex clamped into range. An empty slice
// clears the selection. Shuffle and repeat flags are left untouched;
// the installed sequence is taken verbatim.
func (c *Controller) Replace(tracks []Track, startIndex int) {
	c.order = append([]Track(nil), tracks...)
	c.original = append([]Track(nil), tracks...)

	if len(c.order) == 0 {
		c.current = -1
		return
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(c.order) {
		startIndex = len(c.order) - 1
	}
	c.current = startIndex
}

// Restore reinstates a previously saved snapshot verbatim: order,
// selection and flags, with no reshuffling. The saved order also
// becomes the pristine order, since the pre-shuffle sequence does not
// survive a restart; disabling shuffle afterwards keeps the restored
// order.
func (c *Controller) Restore(st State) {
	c.order = append([]Track(nil), st.Tracks...)
	c.original = append([]Track(nil), st.Tracks...)
	c.shuffle = st.Shuffle
	c.repeat = st.Repeat

	c.current = st.Index
	if len(c.order) == 0 || c.current < -1 {
		c.current = -1
	}
	if c.current >= len(c.order) {
		c.current = len(c.order) - 1
	}
}

// JumpTo selects the track at the given index.
// Returns false and leaves state untouched if index is out of bounds.
func (c *Controller) JumpTo(index int) (Track, bool) {
	if index < 0 || index >= len(c.order) {
		return Track{}, false
	}
	c.current = index
	return c.order[index], true
}

// JumpToID selects the track with the given ID.
// Returns false and leaves state untouched if the ID is not present.
func (c *Controller) JumpToID(id string) (Track, bool) {
	for i, t := range c.order {
		if t.ID == id {
			c.current = i
			return t, true
		}
	}
	return Track{}, false
}

// Next resolves the track that plays after the current one. With
// repeat set it returns the current track unchanged; the caller
// restarts it. Otherwise it advances the index. Past the last index it
// returns ErrAtEnd: the play order never wraps around.
func (c *Controller) Next() (Track, error) {
	if len(c.order) == 0 {
		return Track{}, ErrEmpty
	}
	if c.current < 0 {
		c.current = 0
		return c.order[0], nil
	}
	if c.repeat {
		return c.order[c.current], nil
	}
	if c.current+1 >= len(c.order) {
		return Track{}, ErrAtEnd
	}
	c.current++
	return c.order[c.current], nil
}

// Previous steps back one track. At index 0 it returns ErrAtStart:
// the play order never wraps around.
func (c *Controller) Previous() (Track, error) {
	if len(c.order) == 0 {
		return Track{}, ErrEmpty
	}
	if c.current <= 0 {
		return Track{}, ErrAtStart
	}
	c.current--
	return c.order[c.current], nil
}

// SetShuffle enables or disables shuffle. Enabling keeps the current
// track as the new first element and applies a Fisher-Yates
// permutation to the rest. Disabling restores the pristine order and
// relocates the current track by ID, falling back to index 0 if the
// ID is no longer present. The current track's identity never changes
// across either transition.
func (c *Controller) SetShuffle(on bool) {
	if on == c.shuffle {
		return
	}
	if on {
		c.shuffleOrder()
	} else {
		c.restoreOrder()
	}
	c.shuffle = on
}

// ToggleShuffle flips shuffle and returns the new value.
func (c *Controller) ToggleShuffle() bool {
	c.SetShuffle(!c.shuffle)
	return c.shuffle
}

// SetRepeat enables or disables single-track repeat.
func (c *Controller) SetRepeat(on bool) {
	c.repeat = on
}

// ToggleRepeat flips repeat and returns the new value.
func (c *Controller) ToggleRepeat() bool {
	c.repeat = !c.repeat
	return c.repeat
}

// Deselect clears the selection while keeping the tracks. The next
// call to Next selects the first track again.
func (c *Controller) Deselect() {
	c.current = -1
}

// Current returns the selected track, or nil if none.
func (c *Controller) Current() *Track {
	if c.current < 0 || c.current >= len(c.order) {
		return nil
	}
	return &c.order[c.current]
}

// CurrentIndex returns the index of the selected track (-1 if none).
func (c *Controller) CurrentIndex() int {
	return c.current
}

// HasNext returns true if Next would resolve a track.
func (c *Controller) HasNext() bool {
	if len(c.order) == 0 {
		return false
	}
	if c.current < 0 || c.repeat {
		return true
	}
	return c.current < len(c.order)-1
}

// Len returns the number of tracks.
func (c *Controller) Len() int {
	return len(c.order)
}

// IsEmpty returns true if there are no tracks.
func (c *Controller) IsEmpty() bool {
	return len(c.order) == 0
}

// Shuffle returns the shuffle flag.
func (c *Controller) Shuffle() bool {
	return c.shuffle
}

// Repeat returns the repeat flag.
func (c *Controller) Repeat() bool {
	return c.repeat
}

// Tracks returns a copy of the play order.
func (c *Controller) Tracks() []Track {
	return append([]Track(nil), c.order...)
}

// State returns a snapshot of the play order.
func (c *Controller) State() State {
	return State{
		Tracks:  c.Tracks(),
		Index:   c.current,
		Shuffle: c.shuffle,
		Repeat:  c.repeat,
	}
}

// shuffleOrder moves the current track to index 0 and shuffles the
// remaining tracks.
func (c *Controller) shuffleOrder() {
	if len(c.order) < 2 {
		return
	}

	rest := make([]Track, 0, len(c.order))
	var head []Track
	for i := range c.order {
		if i == c.current {
			head = []Track{c.order[i]}
			continue
		}
		rest = append(rest, c.order[i])
	}
	c.rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	c.order = append(head, rest...)
	if c.current >= 0 {
		c.current = 0
	}
}

// restoreOrder reinstates the pristine order and relocates the current
// track by ID.
func (c *Controller) restoreOrder() {
	cur := c.Current()
	c.order = append([]Track(nil), c.original...)

	if cur == nil || len(c.order) == 0 {
		if len(c.order) == 0 {
			c.current = -1
		}
		return
	}

	c.current = 0
	for i, t := range c.order {
		if t.ID == cur.ID {
			c.current = i
			return
		}
	}
}
