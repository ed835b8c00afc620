package deadlock

import (
	"os"

	gojson "github.com/goccy/go-json"
)

// ReplayLog records every mutating Stack call as a structured line, so that
// if SetDescendants ever panics on an internal-consistency check, the
// recorded sequence can be replayed against a fresh Stack to reproduce the
// failure outside of a full search run (deadlocks.py keeps the equivalent
// trail in self.debug_data and dumps it to bug.log on the same trigger).
type ReplayLog struct {
	path    string
	records []replayRecord
	ids     map[*Deadlock]int
	nextID  int
	flushed bool
}

type replayRecord struct {
	Op          string  `json:"op"`
	Deadlock    int     `json:"deadlock,omitempty"`
	StackIndex  *int    `json:"stack_index,omitempty"`
	Deadlocks   []int   `json:"deadlocks,omitempty"`
	Descendants []int   `json:"descendants,omitempty"`
	Pushes      []Action `json:"pushes,omitempty"`
}

// NewReplayLog creates a replay log that, if flushed, writes newline
// delimited JSON records to path.
func NewReplayLog(path string) *ReplayLog {
	return &ReplayLog{path: path, ids: make(map[*Deadlock]int)}
}

func (r *ReplayLog) idOf(dl *Deadlock) int {
	if id, ok := r.ids[dl]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.ids[dl] = id
	return id
}

func (r *ReplayLog) idsOf(dls []*Deadlock) []int {
	out := make([]int, len(dls))
	for i, dl := range dls {
		out[i] = r.idOf(dl)
	}
	return out
}

// Add records a Stack.Add call.
func (r *ReplayLog) Add(dl *Deadlock, stackIndex int) {
	r.records = append(r.records, replayRecord{Op: "add", Deadlock: r.idOf(dl), StackIndex: &stackIndex})
}

// Remove records a Stack.Remove call.
func (r *ReplayLog) Remove(dls []*Deadlock) {
	r.records = append(r.records, replayRecord{Op: "remove", Deadlocks: r.idsOf(dls)})
}

// SetDescendants records a Stack.SetDescendants call.
func (r *ReplayLog) SetDescendants(dl *Deadlock, pushes []Action, descendants []*Deadlock) {
	r.records = append(r.records, replayRecord{
		Op:          "set_descendants",
		Deadlock:    r.idOf(dl),
		Pushes:      pushes,
		Descendants: r.idsOf(descendants),
	})
}

// Flush writes every recorded entry to the log path as newline-delimited
// JSON, once. Subsequent calls are no-ops, mirroring the original's
// one-shot debug_fname handling (it sets self.debug_fname = None after the
// first write so later failures in the same process don't overwrite it).
func (r *ReplayLog) Flush() error {
	if r.flushed {
		return nil
	}
	r.flushed = true

	f, err := os.Create(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := gojson.NewEncoder(f)
	for _, rec := range r.records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
