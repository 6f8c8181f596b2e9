package domain

import (
	"strings"
	"time"
)

// Location is a stock-holding place such as a shop floor or back room.
type Location struct {
	ID        string
	Name      string
	Primary   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLocation constructs a location.
func NewLocation(id, name string, primary bool, now time.Time) (Location, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Location{}, ErrInvalidID
	}
	if name == "" {
		return Location{}, ErrInvalidName
	}
	return Location{
		ID:        id,
		Name:      name,
		Primary:   primary,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}
