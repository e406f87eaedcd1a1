package db

import "fmt"

type Kind string

const (
	KindAccount Kind = "account"
	KindFarm    Kind = "farm"
	KindLog     Kind = "log"
)

// NotFoundError reports a lookup of a record that does not exist.
type NotFoundError struct {
	Kind Kind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// ValidationError reports caller-supplied data that fails a precondition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
