package realtime

import (
	"errors"
	"strings"
)

// Op is the kind of write a Change describes.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is emitted by a repository after a write commits. Before and After
// carry the indexed fields of the document (the ones a Query may filter on).
// A nil Before means the prior state is unknown.
type Change struct {
	Collection string            `json:"collection"`
	DocumentID string            `json:"documentId"`
	Op         Op                `json:"op"`
	Before     map[string]string `json:"before,omitempty"`
	After      map[string]string `json:"after,omitempty"`
}

// Query describes a live result set: either one document or an equality
// filtered slice of a collection.
type Query struct {
	Collection string
	DocumentID string
	Filters    map[string]string
	OrderBy    string
	Descending bool
}

var errCollectionRequired = errors.New("query collection is required")

func (q Query) validate() error {
	if strings.TrimSpace(q.Collection) == "" {
		return errCollectionRequired
	}
	return nil
}

// Matches reports whether c can affect the result set of q. It errs on the
// side of re-querying when the prior state of a document is unknown.
func (q Query) Matches(c Change) bool {
	if c.Collection != q.Collection {
		return false
	}
	if q.DocumentID != "" {
		return c.DocumentID == q.DocumentID
	}
	if len(q.Filters) == 0 {
		return true
	}
	switch c.Op {
	case OpCreate:
		return q.matchesFields(c.After)
	case OpDelete:
		return c.Before == nil || q.matchesFields(c.Before)
	default:
		if c.Before == nil {
			return true
		}
		return q.matchesFields(c.Before) || q.matchesFields(c.After)
	}
}

func (q Query) matchesFields(fields map[string]string) bool {
	if fields == nil {
		return false
	}
	for key, want := range q.Filters {
		if got, ok := fields[key]; !ok || got != want {
			return false
		}
	}
	return true
}
