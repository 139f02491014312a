package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStorage wraps persistence-layer faults.
	ErrStorage = errors.New("storage failure")
)

// wrapStorage normalises driver errors into the repository error kinds.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}
