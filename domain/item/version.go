package item

import (
	"slices"
	"sort"
	"time"
)

// Well-known ref names.
const (
	RefLatest    = "latest"
	RefPublished = "published"
)

// Refs maps ref names to version ids. A name points to one version at a time.
type Refs map[string]string

// Clone returns a copy of the refs.
func (r Refs) Clone() Refs {
	c := make(Refs, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Names returns the ref names pointing at version, sorted.
func (r Refs) Names(version string) []string {
	var out []string
	for name, v := range r {
		if v == version {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Advance returns the refs after action a created version.
// "latest" always moves; "published" moves on publish and is cleared on
// unpublish.
func (r Refs) Advance(a Action, version string) Refs {
	c := r.Clone()
	c[RefLatest] = version
	switch a {
	case ActionPublish:
		c[RefPublished] = version
	case ActionUnpublish:
		delete(c, RefPublished)
	}
	return c
}

// Version is an immutable snapshot of an item. Refs lists the ref names
// pointing at it when it was read.
type Version struct {
	ID        string
	ItemID    string
	Parents   []string
	Refs      []string
	Action    Action
	Value     Item
	CreatedAt time.Time
}

// Head is the current version pointer and refs of an item.
type Head struct {
	ItemID  string
	Version string
	Refs    Refs
	Deleted bool
}

// Exists returns true if a version has been appended for the item.
func (h Head) Exists() bool {
	return h.Version != ""
}

// Check returns a *ConflictError unless expected is the head version.
func (h Head) Check(expected string) error {
	if h.Deleted {
		return ErrDeleted
	}
	if expected != h.Version {
		return &ConflictError{ItemID: h.ItemID, Expected: expected, Head: h.Version}
	}
	return nil
}

// Commit builds the version recording next as the result of a applied on top
// of head, and the refs after it. The new version's parents are the prior
// head, or empty for the first version. next.Status is set by the status
// machine from the head snapshot's status.
func Commit(head Head, current Item, next Item, a Action, versionID string, now time.Time) (Version, Refs, error) {
	if head.Deleted {
		return Version{}, nil, ErrDeleted
	}
	from := current.Status
	status, err := Transition(from, a)
	if err != nil {
		return Version{}, nil, err
	}

	snap := next.Clone()
	snap.Status = status
	snap.Version = versionID
	snap.UpdatedAt = now
	if a == ActionCreate {
		snap.CreatedAt = now
	}

	var parents []string
	if head.Exists() {
		parents = []string{head.Version}
	}
	refs := head.Refs.Advance(a, versionID)
	return Version{
		ID:        versionID,
		ItemID:    snap.ID,
		Parents:   parents,
		Refs:      refs.Names(versionID),
		Action:    a,
		Value:     snap,
		CreatedAt: now,
	}, refs, nil
}

// Lineage reports whether versions form a single chain from the first one,
// each version's only parent being its predecessor.
func Lineage(versions []Version) bool {
	for i, v := range versions {
		if i == 0 {
			if len(v.Parents) != 0 {
				return false
			}
			continue
		}
		if !slices.Equal(v.Parents, []string{versions[i-1].ID}) {
			return false
		}
	}
	return true
}
