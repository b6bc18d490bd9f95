package store

import (
	"fmt"
	"strings"
)

// GraphWriteError is returned when an upsert fails. Writes issued before the
// failure are not rolled back.
type GraphWriteError struct {
	Op  string
	Key string
	Err error
}

func (e *GraphWriteError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("graph write failed (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("graph write failed (%s %s): %v", e.Op, e.Key, e.Err)
}

func (e *GraphWriteError) Unwrap() error { return e.Err }

// RelationshipResolutionWarning describes a relationship that was dropped
// because an endpoint name matched no entity of the batch.
type RelationshipResolutionWarning struct {
	RelationshipID string
	SourceName     string
	TargetName     string
	Type           string
	Missing        []string
}

func (w RelationshipResolutionWarning) Error() string {
	return fmt.Sprintf("relationship %s (%s -[%s]-> %s) dropped: unresolved %s",
		w.RelationshipID, w.SourceName, w.Type, w.TargetName, strings.Join(w.Missing, ", "))
}
