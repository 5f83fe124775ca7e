package sandbox

import (
	"github.com/google/uuid"

	"github.com/microvm-js/sandbox/internal/vm"
)

// Snapshot is an opaque, immutable capture of a HandlersLoaded sandbox's
// complete vCPU and guest-engine state, produced by Snapshot and consumed
// by Restore. A Snapshot may be restored any number of times and remains
// valid for reuse after each restore.
//
// Every Snapshot carries a unique handle ID, assigned at capture time,
// for correlating a Restore call with the Snapshot call that produced it
// in logs — the ID has no bearing on the captured state itself.
type Snapshot struct {
	id    uuid.UUID
	inner vm.Snapshot
}

func newSnapshot(inner vm.Snapshot) Snapshot {
	return Snapshot{id: uuid.New(), inner: inner}
}

// ID returns this snapshot's handle identifier, or the empty string for
// the zero-value Snapshot.
func (s Snapshot) ID() string {
	if s.inner == nil {
		return ""
	}
	return s.id.String()
}
