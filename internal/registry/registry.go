// Package registry tracks where users are, how far they want to see and
// whether they are reachable, and derives contact views from that state.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"proxichat/broker/internal/geo"
	"proxichat/broker/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type entry struct {
	location geo.Coordinate
	radius   float64
	status   models.PresenceStatus
	name     string
}

// Registry holds one entry per user seen since process start.
// Entries are never evicted.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	// insertion order, gives contact views a stable iteration order
	order []uuid.UUID
	log   *slog.Logger
}

// New creates an empty registry
func New(log *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]*entry),
		log:     log,
	}
}

// Update upserts the user's entry and marks them online.
func (r *Registry) Update(userID uuid.UUID, name string, location geo.Coordinate, radius float64) models.PresenceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Debug("Update location",
		"user_id", userID,
		"radius", radius,
		"lat", location.Latitude,
		"lon", location.Longitude)

	e := r.lookupOrCreate(userID)
	e.location = location
	e.radius = radius
	e.name = name
	e.status = models.StatusOnline
	return e.status
}

// SetStatus changes the status only. Unknown users get a placeholder entry at
// the zero coordinate with a zero radius until Update is called for them.
func (r *Registry) SetStatus(userID uuid.UUID, status models.PresenceStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Debug("Status update", "user_id", userID, "status", status)
	r.lookupOrCreate(userID).status = status
}

// SetOnline is a shorthand for SetStatus with online or offline
func (r *Registry) SetOnline(userID uuid.UUID, online bool) {
	if online {
		r.SetStatus(userID, models.StatusOnline)
		return
	}
	r.SetStatus(userID, models.StatusOffline)
}

// ContactsNear returns every other user within the requesting user's own
// radius, closest first. The candidates' radii are not considered.
func (r *Registry) ContactsNear(userID uuid.UUID) []models.Contact {
	r.mu.Lock()
	defer r.mu.Unlock()

	me, ok := r.entries[userID]
	if !ok {
		return []models.Contact{}
	}

	contacts := lo.FilterMap(r.order, func(id uuid.UUID, _ int) (models.Contact, bool) {
		if id == userID {
			return models.Contact{}, false
		}
		e := r.entries[id]
		distance := geo.Distance(me.location, e.location)
		// written so that a NaN distance never passes
		if !(distance <= me.radius) {
			return models.Contact{}, false
		}
		c := toContact(id, e)
		c.Distance = lo.ToPtr(distance)
		return c, true
	})

	sort.SliceStable(contacts, func(i, j int) bool {
		return *contacts[i].Distance < *contacts[j].Distance
	})
	return contacts
}

// AllContacts returns every known user without distance, used for presence broadcast
func (r *Registry) AllContacts() []models.Contact {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Map(r.order, func(id uuid.UUID, _ int) models.Contact {
		return toContact(id, r.entries[id])
	})
}

// StatusOf returns the user's status, false if the user is unknown
func (r *Registry) StatusOf(userID uuid.UUID) (models.PresenceStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return "", false
	}
	return e.status, true
}

// NameOf returns the user's display name, false if the user is unknown
func (r *Registry) NameOf(userID uuid.UUID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return "", false
	}
	return e.name, true
}

// Len returns the number of known users
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// lookupOrCreate must be called with r.mu held
func (r *Registry) lookupOrCreate(userID uuid.UUID) *entry {
	if e, ok := r.entries[userID]; ok {
		return e
	}
	e := &entry{name: userID.String()}
	r.entries[userID] = e
	r.order = append(r.order, userID)
	return e
}

func toContact(id uuid.UUID, e *entry) models.Contact {
	return models.Contact{
		ID:       id,
		Name:     e.name,
		Location: e.location,
		IsOnline: e.status.IsOnline(),
	}
}
