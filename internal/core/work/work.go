// Package work defines the annotation work item shared by producers
// (reconcilers) and the batch processor
package work

import "fmt"

// Kind tags what an item points at
type Kind string

// Item kinds
const (
	KindRepo  Kind = "repo"
	KindIssue Kind = "issue"
)

// Priority hints; higher is served first where the backend can order
const (
	PriorityChanged = 0
	PriorityNew     = 1
)

// Item is one unit of annotation work. Delivery is at-least-once
type Item struct {
	// ID is the backend's handle (row id or stream id); empty until pulled
	ID       string
	Kind     Kind
	EntityID int64
	Priority int
	Attempts int
}

// Valid reports whether the kind is known and the entity id is set
func (i Item) Valid() bool {
	return (i.Kind == KindRepo || i.Kind == KindIssue) && i.EntityID > 0
}

// String renders kind:entity for logs
func (i Item) String() string { return fmt.Sprintf("%s:%d", i.Kind, i.EntityID) }
