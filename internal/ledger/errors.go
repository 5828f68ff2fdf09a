package ledger

import "fmt"

// ValidationError reports a record that breaks the field rules for its kind.
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("record %s: field %s: %s", id, e.Field, e.Reason)
}

func invalid(id, field, reason string) *ValidationError {
	return &ValidationError{RecordID: id, Field: field, Reason: reason}
}
