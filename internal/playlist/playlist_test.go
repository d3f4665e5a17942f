//nolint:goconst // test file with repeated string literals
package playlist

import (
	"errors"
	"testing"
)

func makeTracks(ids ...string) []Track {
	tracks := make([]Track, len(ids))
	for i, id := range ids {
		tracks[i] = Track{ID: id, Title: "Track " + id, URI: "/music/" + id + ".mp3"}
	}
	return tracks
}

func TestNew(t *testing.T) {
	c := New()

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if c.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", c.CurrentIndex())
	}
	if c.Current() != nil {
		t.Error("Current() should be nil for empty controller")
	}
}

func TestController_Replace(t *testing.T) {
	tests := []struct {
		name       string
		tracks     []Track
		startIndex int
		wantIndex  int
		wantID     string
	}{
		{"start at zero", makeTracks("a", "b", "c"), 0, 0, "a"},
		{"start in middle", makeTracks("a", "b", "c"), 1, 1, "b"},
		{"start at last", makeTracks("a", "b", "c"), 2, 2, "c"},
		{"negative clamps to zero", makeTracks("a", "b"), -3, 0, "a"},
		{"past end clamps to last", makeTracks("a", "b"), 7, 1, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Replace(tt.tracks, tt.startIndex)

			if c.CurrentIndex() != tt.wantIndex {
				t.Errorf("CurrentIndex() = %d, want %d", c.CurrentIndex(), tt.wantIndex)
			}
			cur := c.Current()
			if cur == nil || cur.ID != tt.wantID {
				t.Errorf("Current() = %v, want ID %q", cur, tt.wantID)
			}
		})
	}
}

func TestController_Replace_Empty(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b"), 1)

	c.Replace(nil, 0)

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if c.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", c.CurrentIndex())
	}
	if c.Current() != nil {
		t.Error("Current() should be nil after replacing with empty slice")
	}
}

func TestController_Replace_KeepsFlags(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b"), 0)
	c.SetRepeat(true)

	c.Replace(makeTracks("x", "y"), 0)

	if !c.Repeat() {
		t.Error("Repeat() should survive Replace")
	}
}

func TestController_JumpTo(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c"), 0)

	track, ok := c.JumpTo(2)

	if !ok {
		t.Fatal("JumpTo(2) should succeed")
	}
	if track.ID != "c" {
		t.Errorf("JumpTo returned ID %q, want c", track.ID)
	}
	if c.CurrentIndex() != 2 {
		t.Errorf("CurrentIndex() = %d, want 2", c.CurrentIndex())
	}
}

func TestController_JumpTo_Invalid(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b"), 1)

	_, ok := c.JumpTo(5)

	if ok {
		t.Error("JumpTo with invalid index should return false")
	}
	if c.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1 (unchanged)", c.CurrentIndex())
	}
}

func TestController_JumpToID(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c"), 0)

	track, ok := c.JumpToID("b")

	if !ok {
		t.Fatal("JumpToID(b) should succeed")
	}
	if track.ID != "b" || c.CurrentIndex() != 1 {
		t.Errorf("JumpToID = %q at index %d, want b at 1", track.ID, c.CurrentIndex())
	}
}

func TestController_JumpToID_NotFound(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b"), 0)

	_, ok := c.JumpToID("missing")

	if ok {
		t.Error("JumpToID with unknown ID should return false")
	}
	if c.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0 (unchanged)", c.CurrentIndex())
	}
}

func TestController_Next(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c"), 0)

	track, err := c.Next()

	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if track.ID != "b" || c.CurrentIndex() != 1 {
		t.Errorf("Next() = %q at index %d, want b at 1", track.ID, c.CurrentIndex())
	}
}

func TestController_Next_AtEnd(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b"), 1)

	_, err := c.Next()

	if !errors.Is(err, ErrAtEnd) {
		t.Errorf("Next() at last index error = %v, want ErrAtEnd", err)
	}
	// Never wraps to index 0.
	if c.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1 (unchanged)", c.CurrentIndex())
	}
}

func TestController_Next_Repeat(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b"), 1)
	c.SetRepeat(true)

	track, err := c.Next()

	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if track.ID != "b" || c.CurrentIndex() != 1 {
		t.Errorf("Next() with repeat = %q at %d, want current track b at 1", track.ID, c.CurrentIndex())
	}
}

func TestController_Next_Empty(t *testing.T) {
	c := New()

	if _, err := c.Next(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Next() on empty error = %v, want ErrEmpty", err)
	}
}

func TestController_Previous(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c"), 2)

	track, err := c.Previous()

	if err != nil {
		t.Fatalf("Previous() error = %v", err)
	}
	if track.ID != "b" || c.CurrentIndex() != 1 {
		t.Errorf("Previous() = %q at index %d, want b at 1", track.ID, c.CurrentIndex())
	}
}

func TestController_Previous_AtStart(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b"), 0)

	_, err := c.Previous()

	if !errors.Is(err, ErrAtStart) {
		t.Errorf("Previous() at index 0 error = %v, want ErrAtStart", err)
	}
	// Never wraps to the last index.
	if c.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0 (unchanged)", c.CurrentIndex())
	}
}

func TestController_SetShuffle_CurrentFirst(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c", "d", "e"), 2)

	c.SetShuffle(true)

	if c.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0 after enabling shuffle", c.CurrentIndex())
	}
	cur := c.Current()
	if cur == nil || cur.ID != "c" {
		t.Errorf("Current() = %v, want c (identity preserved)", cur)
	}
	if c.Len() != 5 {
		t.Errorf("Len() = %d, want 5", c.Len())
	}

	// Every original track is still present exactly once.
	seen := make(map[string]int)
	for _, tr := range c.Tracks() {
		seen[tr.ID]++
	}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if seen[id] != 1 {
			t.Errorf("track %q appears %d times after shuffle, want 1", id, seen[id])
		}
	}
}

func TestController_ShuffleRoundTrip(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c", "d", "e"), 3)

	c.ToggleShuffle()
	c.ToggleShuffle()

	// Order restored to the pre-shuffle sequence.
	tracks := c.Tracks()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		if tracks[i].ID != id {
			t.Errorf("tracks[%d].ID = %q, want %q", i, tracks[i].ID, id)
		}
	}
	// Current track identity survived both toggles.
	if c.CurrentIndex() != 3 {
		t.Errorf("CurrentIndex() = %d, want 3", c.CurrentIndex())
	}
	cur := c.Current()
	if cur == nil || cur.ID != "d" {
		t.Errorf("Current() = %v, want d", cur)
	}
}

func TestController_ShuffleAfterNavigation(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c", "d"), 0)
	c.SetShuffle(true)

	// Walk somewhere into the shuffled order, then disable: the index
	// must point at the same track within the pristine order.
	if _, err := c.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	want := c.Current().ID

	c.SetShuffle(false)

	cur := c.Current()
	if cur == nil || cur.ID != want {
		t.Errorf("Current() after disable = %v, want %q", cur, want)
	}
	if c.CurrentIndex() < 0 || c.Tracks()[c.CurrentIndex()].ID != want {
		t.Errorf("index %d does not point at %q", c.CurrentIndex(), want)
	}
}

func TestController_SetShuffle_NoSelection(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c"), 0)
	c.Replace(nil, 0)

	c.SetShuffle(true)
	c.SetShuffle(false)

	if c.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1 (no selection invented)", c.CurrentIndex())
	}
}

func TestController_SetShuffle_Idempotent(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c"), 1)
	c.SetShuffle(true)
	order := c.Tracks()

	c.SetShuffle(true)

	after := c.Tracks()
	for i := range order {
		if after[i].ID != order[i].ID {
			t.Fatalf("repeated SetShuffle(true) reshuffled the order")
		}
	}
}

func TestController_ToggleRepeat(t *testing.T) {
	c := New()

	if c.Repeat() {
		t.Error("initial Repeat() should be false")
	}
	if got := c.ToggleRepeat(); !got {
		t.Error("ToggleRepeat() should return true")
	}
	if got := c.ToggleRepeat(); got {
		t.Error("second ToggleRepeat() should return false")
	}
}

func TestController_Deselect(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b", "c"), 2)

	c.Deselect()

	if c.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", c.CurrentIndex())
	}
	if c.Current() != nil {
		t.Error("Current() should be nil after Deselect")
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want tracks kept", c.Len())
	}

	// Next after deselect starts over from the first track.
	got, err := c.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got.ID != "a" {
		t.Errorf("Next() = %q, want a", got.ID)
	}
}

func TestController_HasNext(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Controller)
		want  bool
	}{
		{"empty", func(_ *Controller) {}, false},
		{"at start", func(c *Controller) { c.Replace(makeTracks("a", "b"), 0) }, true},
		{"at end", func(c *Controller) { c.Replace(makeTracks("a", "b"), 1) }, false},
		{"at end with repeat", func(c *Controller) {
			c.Replace(makeTracks("a", "b"), 1)
			c.SetRepeat(true)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			tt.setup(c)

			if got := c.HasNext(); got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestController_State_Isolated(t *testing.T) {
	c := New()
	c.Replace(makeTracks("a", "b"), 1)

	st := c.State()
	st.Tracks[0].ID = "mutated"

	if c.Tracks()[0].ID != "a" {
		t.Error("State() snapshot should not alias controller storage")
	}
	if st.Index != 1 || st.Current() == nil || st.Current().ID != "b" {
		t.Errorf("State() = index %d current %v, want index 1 current b", st.Index, st.Current())
	}
}

func TestController_Restore(t *testing.T) {
	c := New()
	c.Restore(State{
		Tracks:  makeTracks("b", "a", "c"),
		Index:   1,
		Shuffle: true,
		Repeat:  true,
	})

	if c.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", c.CurrentIndex())
	}
	if cur := c.Current(); cur == nil || cur.ID != "a" {
		t.Errorf("Current() = %v, want ID %q", cur, "a")
	}
	if !c.Shuffle() || !c.Repeat() {
		t.Errorf("Shuffle() = %v, Repeat() = %v, want both true", c.Shuffle(), c.Repeat())
	}

	// Disabling shuffle keeps the restored order: the pre-shuffle
	// sequence did not survive, so the snapshot is the pristine order.
	c.SetShuffle(false)
	got := c.Tracks()
	want := []string{"b", "a", "c"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Tracks()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if cur := c.Current(); cur == nil || cur.ID != "a" {
		t.Errorf("Current() after unshuffle = %v, want ID %q", cur, "a")
	}
}

func TestController_Restore_ClampsIndex(t *testing.T) {
	tests := []struct {
		name      string
		st        State
		wantIndex int
	}{
		{"empty snapshot", State{}, -1},
		{"index past end", State{Tracks: makeTracks("a", "b"), Index: 9}, 1},
		{"negative index keeps no selection", State{Tracks: makeTracks("a"), Index: -1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Restore(tt.st)
			if c.CurrentIndex() != tt.wantIndex {
				t.Errorf("CurrentIndex() = %d, want %d", c.CurrentIndex(), tt.wantIndex)
			}
		})
	}
}
