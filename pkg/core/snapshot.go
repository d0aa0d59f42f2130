// pkg/core/snapshot.go
package core

import (
	"bytes"
	"errors"
	"sort"
	"time"
)

// ErrSnapshotNotFound is returned by snapshot stores when no snapshot exists for a turn.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotVersion is bumped whenever the fragment layout of the kernel's own state changes.
const SnapshotVersion = 1

// WorldFragment is the fragment name under which the simulation world is captured.
const WorldFragment = "world"

// Snapshot is a self-contained checkpoint at a turn boundary. Fragments are opaque
// blobs owned by their capturers and stored verbatim.
type Snapshot struct {
	ID          string            `json:"id"`
	Turn        uint32            `json:"turn"`
	LastEventID EventID           `json:"lastEventId"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"createdAt"`
	Fragments   map[string][]byte `json:"fragments"`
}

// FragmentNames returns the fragment keys in sorted order.
func (s *Snapshot) FragmentNames() []string {
	names := make([]string, 0, len(s.Fragments))
	for name := range s.Fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size is the total fragment payload in bytes.
func (s *Snapshot) Size() int {
	n := 0
	for _, f := range s.Fragments {
		n += len(f)
	}
	return n
}

// Equal compares identity fields and fragment bytes. CreatedAt is ignored.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.ID != o.ID || s.Turn != o.Turn || s.LastEventID != o.LastEventID || s.Version != o.Version {
		return false
	}
	if len(s.Fragments) != len(o.Fragments) {
		return false
	}
	for name, f := range s.Fragments {
		g, ok := o.Fragments[name]
		if !ok || !bytes.Equal(f, g) {
			return false
		}
	}
	return true
}
