package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Revision identifies a point-in-time change-set in a source repository.
// Revisions increase monotonically and never change once assigned.
type Revision int64

// NoRevision denotes the position before the first revision.
const NoRevision Revision = 0

// String returns the decimal form used in migration action versions.
func (r Revision) String() string {
	return strconv.FormatInt(int64(r), 10)
}

// ParseRevision parses the decimal form of a revision.
func ParseRevision(s string) (Revision, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NoRevision, fmt.Errorf("%w: revision %q", ErrInvalidInput, s)
	}
	return Revision(v), nil
}

// ItemType classifies a versioned item.
type ItemType string

// Item types.
const (
	ItemFile    ItemType = "file"
	ItemFolder  ItemType = "folder"
	ItemUnknown ItemType = "unknown"
)

// IsKnown returns true for file and folder.
func (t ItemType) IsKnown() bool {
	return t == ItemFile || t == ItemFolder
}

// ChangeKind is the primitive action recorded for a path in a change-set.
type ChangeKind string

// Change kinds.
const (
	// ChangeAdd creates an item without history.
	ChangeAdd ChangeKind = "add"

	// ChangeModify changes the content of an existing item.
	ChangeModify ChangeKind = "modify"

	// ChangeDelete removes an item and everything below it.
	ChangeDelete ChangeKind = "delete"

	// ChangeCopy creates an item from another path and revision (branch or rename).
	ChangeCopy ChangeKind = "copy"

	// ChangeReplace deletes an item and re-creates it in the same revision,
	// optionally with history.
	ChangeReplace ChangeKind = "replace"

	// ChangeUnknown is any kind the repository layer could not classify.
	ChangeUnknown ChangeKind = "unknown"
)

// Change is one primitive event within a ChangeSet.
type Change struct {
	// Path is the full server path of the affected item.
	Path string

	// ItemType is the type of the affected item.
	ItemType ItemType

	// Kind is the primitive action.
	Kind ChangeKind

	// Revision is the revision of the owning change-set.
	Revision Revision

	// CopyFromPath is the copy source for Copy and Replace-with-history.
	CopyFromPath string

	// CopyFromRevision is the revision of the copy source.
	CopyFromRevision Revision
}

// HasCopySource returns true if the change carries history.
func (c *Change) HasCopySource() bool {
	return c.CopyFromPath != ""
}

// Validate checks the structural invariants of a change.
func (c *Change) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: change without path", ErrInvalidInput)
	}
	if c.Kind == ChangeCopy && !c.HasCopySource() {
		return fmt.Errorf("%w: copy of %s has no copy source", ErrInvalidInput, c.Path)
	}
	if c.HasCopySource() && c.CopyFromRevision <= NoRevision {
		return fmt.Errorf("%w: copy of %s has no copy source revision", ErrInvalidInput, c.Path)
	}
	return nil
}

// ChangeSet is one committed unit of change. It is read-only to vcsbridge.
type ChangeSet struct {
	// Revision identifies the change-set.
	Revision Revision

	// Author is the committer's user name.
	Author string

	// Comment is the commit message.
	Comment string

	// Time is when the change-set was committed.
	Time time.Time

	// RepositoryID identifies the source repository.
	RepositoryID string

	// Changes are the primitive events, in repository order.
	Changes []Change
}

// Item is a versioned file or folder returned by repository listings.
type Item struct {
	// Path is the full server path.
	Path string

	// ItemType is file or folder.
	ItemType ItemType

	// Revision is the revision the item was listed at.
	Revision Revision

	// ContentID is an opaque content identity (hash). Equal IDs mean equal content.
	ContentID string
}
