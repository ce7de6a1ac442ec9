package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"proxichat/broker/internal/geo"

	"github.com/google/uuid"
)

// ErrInvalidStatus is returned when a presence status is not one of the known values
var ErrInvalidStatus = errors.New("invalid presence status")

// PresenceStatus represents a user's visibility state
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

// ParseStatus converts a raw string into a PresenceStatus
func ParseStatus(raw string) (PresenceStatus, error) {
	switch status := PresenceStatus(raw); status {
	case StatusOnline, StatusAway, StatusOffline:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// IsOnline reports whether the status counts as reachable for contact views
func (s PresenceStatus) IsOnline() bool {
	return s != StatusOffline
}

// UnmarshalJSON rejects unknown statuses
func (s *PresenceStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// User represents a registered account
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	IsOnline  bool      `json:"isOnline" db:"is_online"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Location returns the last known coordinate of the account
func (u *User) Location() geo.Coordinate {
	return geo.Coordinate{Latitude: u.Latitude, Longitude: u.Longitude}
}

// UserResponse is what we send to clients after register or login
type UserResponse struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
	Status   PresenceStatus `json:"status"`
	Token    string         `json:"token,omitempty"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse(status PresenceStatus) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Name:     u.Name,
		Location: u.Location(),
		Status:   status,
	}
}
