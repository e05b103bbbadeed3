package domain

import (
	"encoding/json"
	"fmt"
)

// ActionKind is the provider-neutral operation of a MigrationAction.
type ActionKind string

// Action kinds.
const (
	ActionAdd      ActionKind = "Add"
	ActionEdit     ActionKind = "Edit"
	ActionDelete   ActionKind = "Delete"
	ActionBranch   ActionKind = "Branch"
	ActionRename   ActionKind = "Rename"
	ActionUndelete ActionKind = "Undelete"
	ActionMerge    ActionKind = "Merge"
	ActionLabel    ActionKind = "Label"
	ActionEncoding ActionKind = "Encoding"
)

// IsValid returns true if the kind is recognised.
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionAdd, ActionEdit, ActionDelete, ActionBranch, ActionRename,
		ActionUndelete, ActionMerge, ActionLabel, ActionEncoding:
		return true
	default:
		return false
	}
}

// CreatesItem returns true for kinds that bring an item into existence at Path.
func (k ActionKind) CreatesItem() bool {
	return k == ActionAdd || k == ActionBranch || k == ActionRename || k == ActionUndelete
}

// SourceItem describes the source-side item an action was derived from.
// Target-side apply steps use it to download content without re-reading history.
type SourceItem struct {
	RepositoryID string   `json:"repository_id"`
	Path         string   `json:"path"`
	Revision     Revision `json:"revision"`
	ItemType     ItemType `json:"item_type"`
}

// Encode serialises the descriptor.
func (s SourceItem) Encode() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeSourceItem deserialises a descriptor produced by Encode.
func DecodeSourceItem(s string) (SourceItem, error) {
	var item SourceItem
	if err := json.Unmarshal([]byte(s), &item); err != nil {
		return SourceItem{}, fmt.Errorf("%w: source item: %v", ErrInvalidInput, err)
	}
	return item, nil
}

// MigrationAction is one translated operation owned by a ChangeGroup.
type MigrationAction struct {
	// Order is the position of the action within its group.
	Order int

	// Kind is the operation.
	Kind ActionKind

	// SourcePath is the from-path for Branch, Rename and Merge. Empty otherwise.
	SourcePath string

	// Path is the destination path.
	Path string

	// Version is the source revision the action reads. For Branch and Rename
	// it is the copy-source revision; for all other kinds the change revision.
	Version string

	// MergeVersionTo is the upper bound of a merge range. Empty otherwise.
	MergeVersionTo string

	// ItemType is the type of the affected item.
	ItemType ItemType

	// SourceItem is the serialised SourceItem descriptor.
	SourceItem string
}
