package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record id does not exist in its collection.
type ErrNotFound struct {
	Collection CollectionName
	ID         string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Collection, e.ID)
}

// ErrDuplicate is returned when an insert would collide with an existing id.
type ErrDuplicate struct {
	Collection CollectionName
	ID         string
}

func (e ErrDuplicate) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Collection, e.ID)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// IsDuplicate reports whether err wraps ErrDuplicate.
func IsDuplicate(err error) bool {
	var dup ErrDuplicate
	return errors.As(err, &dup)
}
