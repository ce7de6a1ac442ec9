// Package broker implements the request/response operations clients call
// besides the live websocket channel.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"proxichat/broker/internal/geo"
	"proxichat/broker/internal/history"
	"proxichat/broker/internal/models"
	"proxichat/broker/internal/queue"
	"proxichat/broker/internal/registry"
	"proxichat/broker/internal/users"
	"proxichat/broker/internal/websocket"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// UnknownName is shown for users that never told us their name
const UnknownName = "Unknown"

// ErrInvalidName is returned for blank display names
var ErrInvalidName = errors.New("name must not be blank")

// SyncRequest is the input of SyncContacts
type SyncRequest struct {
	UserID   uuid.UUID
	Name     *string
	Location geo.Coordinate
	Radius   float64
	// Push also delivers the filtered list over the caller's live channel
	Push bool
}

type Service struct {
	registry      *registry.Registry
	hub           *websocket.Hub
	queue         queue.Queue
	history       history.Store
	users         users.Store
	defaultRadius float64
	log           *slog.Logger
}

func NewService(reg *registry.Registry, hub *websocket.Hub, q queue.Queue, h history.Store, u users.Store, defaultRadius float64, log *slog.Logger) *Service {
	return &Service{
		registry:      reg,
		hub:           hub,
		queue:         q,
		history:       h,
		users:         u,
		defaultRadius: defaultRadius,
		log:           log,
	}
}

// RegisterOrLogin announces the user to the registry with the default radius
func (s *Service) RegisterOrLogin(userID uuid.UUID, name string, location geo.Coordinate) models.PresenceStatus {
	return s.registry.Update(userID, NormalizeName(name), location, s.defaultRadius)
}

// Register creates a new account and announces it
func (s *Service) Register(ctx context.Context, name string, location geo.Coordinate) (models.UserResponse, error) {
	name = NormalizeName(name)
	if name == "" {
		return models.UserResponse{}, ErrInvalidName
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.New(),
		Name:      name,
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
		IsOnline:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return models.UserResponse{}, err
	}

	status := s.RegisterOrLogin(user.ID, user.Name, location)
	s.log.Info("User registered", "user_id", user.ID, "name", user.Name)
	return user.ToResponse(status), nil
}

// Login looks up an existing account by name and refreshes its location
func (s *Service) Login(ctx context.Context, name string, location geo.Coordinate) (models.UserResponse, error) {
	name = NormalizeName(name)
	if name == "" {
		return models.UserResponse{}, ErrInvalidName
	}

	user, err := s.users.FindByName(ctx, name)
	if err != nil {
		return models.UserResponse{}, err
	}
	if err := s.users.UpdatePresence(ctx, user.ID, location, true); err != nil {
		return models.UserResponse{}, err
	}
	user.Latitude, user.Longitude, user.IsOnline = location.Latitude, location.Longitude, true

	status := s.RegisterOrLogin(user.ID, user.Name, location)
	s.log.Info("User logged in", "user_id", user.ID, "name", user.Name)
	return user.ToResponse(status), nil
}

// SyncContacts stores the caller's position and radius, returns the contacts
// within that radius nearest first, and pushes the global roster to everyone.
func (s *Service) SyncContacts(ctx context.Context, in SyncRequest) ([]models.Contact, error) {
	name := s.resolveName(ctx, in.UserID, in.Name)
	s.registry.Update(in.UserID, name, in.Location, in.Radius)
	contacts := s.registry.ContactsNear(in.UserID)

	if err := s.hub.BroadcastContacts(ctx); err != nil {
		return nil, fmt.Errorf("broadcast contacts: %w", err)
	}
	if in.Push {
		if err := s.hub.SendContacts(ctx, contacts, in.UserID); err != nil {
			return nil, fmt.Errorf("send contacts to %s: %w", in.UserID, err)
		}
	}

	s.log.Info("Synced contacts", "user_id", in.UserID, "radius", in.Radius, "count", len(contacts))
	return contacts, nil
}

// resolveName picks the provided name, then the account name, then the
// registry name and finally UnknownName
func (s *Service) resolveName(ctx context.Context, userID uuid.UUID, provided *string) string {
	if provided != nil {
		if name := NormalizeName(*provided); name != "" {
			return name
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	switch {
	case err == nil:
		return user.Name
	case !errors.Is(err, users.ErrNotFound):
		s.log.Warn("Failed to look up account name", "user_id", userID, "error", err)
	}

	if name, ok := s.registry.NameOf(userID); ok {
		return name
	}
	s.log.Warn("Could not resolve name for user, defaulting to Unknown", "user_id", userID)
	return UnknownName
}

// SetStatus changes the user's presence and pushes the roster to everyone
func (s *Service) SetStatus(ctx context.Context, userID uuid.UUID, status models.PresenceStatus) error {
	s.registry.SetStatus(userID, status)
	if err := s.hub.BroadcastContacts(ctx); err != nil {
		return fmt.Errorf("broadcast contacts: %w", err)
	}
	s.log.Info("Status updated", "user_id", userID, "status", status)
	return nil
}

// FetchQueue drains the user's offline messages
func (s *Service) FetchQueue(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	messages, err := s.queue.FetchAndClear(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Fetched offline queue", "user_id", userID, "count", len(messages))
	return messages, nil
}

// FetchHistory returns the conversation between two users
func (s *Service) FetchHistory(ctx context.Context, user1, user2 uuid.UUID) ([]models.Message, error) {
	return s.history.History(ctx, user1, user2)
}

// NormalizeName trims a display name and puts it in Unicode NFC form so the
// same name typed on different keyboards maps to one account.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
