// Package gitrepo reads history from a local git repository with go-git.
//
// Git has no revision numbers, so the connector numbers the first-parent
// chain of the configured ref: revision 1 is the root commit and the head
// commit is the latest revision. Merge commits contribute the diff against
// their first parent. Git does not track folders; folder adds and deletes
// are synthesised from the directories of consecutive trees.
package gitrepo
