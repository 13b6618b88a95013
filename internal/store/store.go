package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"zapwheel/internal/models"
)

// RecoveredSessionName is used when a session is materialized by
// EnsureSession instead of an explicit create.
const RecoveredSessionName = "Recovered Session"

// Store is the authoritative in-memory mapping from identifier to
// entity for sessions, registrants and payout records.
//
// Each collection has its own guard. Operations that need more than one
// collection acquire them in a fixed order (sessions, then registrants,
// then payouts) and never hold two write locks at once.
type Store struct {
	sessionsMu sync.RWMutex
	sessions   map[string]*models.Session

	registrantsMu   sync.RWMutex
	registrants     map[string]*models.Registrant
	registrantOrder []string

	payoutsMu   sync.RWMutex
	payouts     map[string]*models.PayoutRecord
	payoutOrder []string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sessions:    make(map[string]*models.Session),
		registrants: make(map[string]*models.Registrant),
		payouts:     make(map[string]*models.PayoutRecord),
	}
}

// CreateSession inserts a new active session under the given id.
// Callers that want idempotent creation must use EnsureSession instead.
func (s *Store) CreateSession(id, name string) (models.Session, error) {
	if strings.TrimSpace(id) == "" {
		return models.Session{}, fmt.Errorf("session id is empty: %w", ErrInvalidInput)
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return models.Session{}, fmt.Errorf("session %q: %w", id, ErrAlreadyExists)
	}

	session := &models.Session{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		Active:    true,
	}
	s.sessions[id] = session
	return *session, nil
}

// EnsureSession returns the session for id, creating it with the
// fallback name if it does not exist yet. This is the recovery
// primitive: any path that addresses a session by a link-supplied id
// routes through it, so a valid link is always resolvable even after a
// stateless restart. It never fails.
func (s *Store) EnsureSession(id, fallbackName string) models.Session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return *session
	}

	logger.Infof("auto-creating missing session %s", id)
	if fallbackName == "" {
		fallbackName = RecoveredSessionName
	}
	session := &models.Session{
		ID:        id,
		Name:      fallbackName,
		CreatedAt: time.Now(),
		Active:    true,
	}
	s.sessions[id] = session
	return *session
}

// GetSession returns the session for id.
func (s *Store) GetSession(id string) (models.Session, error) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return *session, nil
}

// ListSessions returns a snapshot of all sessions.
func (s *Store) ListSessions() []models.Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	sessions := make([]models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, *session)
	}
	return sessions
}

// DeactivateSession soft-closes a session. Deactivating an already
// inactive session is not an error; once inactive it never reactivates.
func (s *Store) DeactivateSession(id string) error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	session.Active = false
	return nil
}

// RegisterParticipant enters a viewer into a session's pool. The
// session is ensured first, so registration against a link that
// outlived a restart still succeeds. The generated id embeds the
// session id and a uuid, so it is unique even under concurrent
// same-millisecond registrations.
func (s *Store) RegisterParticipant(sessionID, name, payoutAddress string) (models.Registrant, error) {
	if strings.TrimSpace(name) == "" {
		return models.Registrant{}, fmt.Errorf("registrant name is empty: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(payoutAddress) == "" {
		return models.Registrant{}, fmt.Errorf("payout address is empty: %w", ErrInvalidInput)
	}

	s.EnsureSession(sessionID, "")

	s.registrantsMu.Lock()
	defer s.registrantsMu.Unlock()

	registrant := &models.Registrant{
		ID:            sessionID + "-" + uuid.NewString(),
		SessionID:     sessionID,
		Name:          name,
		PayoutAddress: payoutAddress,
		RegisteredAt:  time.Now(),
	}
	s.registrants[registrant.ID] = registrant
	s.registrantOrder = append(s.registrantOrder, registrant.ID)
	return *registrant, nil
}

// RemoveParticipant drops a registrant from the pool. Payout records
// referencing them are kept; history outlives the pool entry.
func (s *Store) RemoveParticipant(registrantID string) error {
	s.registrantsMu.Lock()
	defer s.registrantsMu.Unlock()

	if _, ok := s.registrants[registrantID]; !ok {
		return fmt.Errorf("registrant %q: %w", registrantID, ErrNotFound)
	}
	delete(s.registrants, registrantID)
	for i, id := range s.registrantOrder {
		if id == registrantID {
			s.registrantOrder = append(s.registrantOrder[:i], s.registrantOrder[i+1:]...)
			break
		}
	}
	return nil
}

// GetParticipant returns the registrant for id.
func (s *Store) GetParticipant(registrantID string) (models.Registrant, error) {
	s.registrantsMu.RLock()
	defer s.registrantsMu.RUnlock()

	registrant, ok := s.registrants[registrantID]
	if !ok {
		return models.Registrant{}, fmt.Errorf("registrant %q: %w", registrantID, ErrNotFound)
	}
	return *registrant, nil
}

// ListParticipants returns the session's pool in registration order.
func (s *Store) ListParticipants(sessionID string) []models.Registrant {
	s.registrantsMu.RLock()
	defer s.registrantsMu.RUnlock()

	return s.participantsLocked(sessionID)
}

func (s *Store) participantsLocked(sessionID string) []models.Registrant {
	var pool []models.Registrant
	for _, id := range s.registrantOrder {
		if registrant := s.registrants[id]; registrant.SessionID == sessionID {
			pool = append(pool, *registrant)
		}
	}
	return pool
}

// RecordPayout writes the outcome of one selection event. The winner is
// not required to still be registered: removing a past winner must not
// invalidate history.
func (s *Store) RecordPayout(sessionID, registrantID string, amount int64, status models.PayoutStatus) (models.PayoutRecord, error) {
	if amount <= 0 {
		return models.PayoutRecord{}, fmt.Errorf("payout amount %d: %w", amount, ErrInvalidAmount)
	}

	s.payoutsMu.Lock()
	defer s.payoutsMu.Unlock()

	record := &models.PayoutRecord{
		ID:           sessionID + "-" + uuid.NewString(),
		SessionID:    sessionID,
		RegistrantID: registrantID,
		Amount:       amount,
		Status:       status,
		RecordedAt:   time.Now(),
	}
	s.payouts[record.ID] = record
	s.payoutOrder = append(s.payoutOrder, record.ID)
	return *record, nil
}

// ListPayouts returns the session's payout records in recording order.
func (s *Store) ListPayouts(sessionID string) []models.PayoutRecord {
	s.payoutsMu.RLock()
	defer s.payoutsMu.RUnlock()

	var records []models.PayoutRecord
	for _, id := range s.payoutOrder {
		if record := s.payouts[id]; record.SessionID == sessionID {
			records = append(records, *record)
		}
	}
	return records
}

// SessionStats folds the live registrant and payout collections into
// the session's derived aggregates.
func (s *Store) SessionStats(sessionID string) models.SessionStats {
	stats := models.SessionStats{
		ParticipantCount: len(s.ListParticipants(sessionID)),
	}
	for _, record := range s.ListPayouts(sessionID) {
		stats.PayoutCount++
		stats.TotalAmount += record.Amount
		switch record.Status {
		case models.PayoutCompleted:
			stats.CompletedCount++
		case models.PayoutFailed:
			stats.FailedCount++
		}
	}
	return stats
}

// Status reports collection sizes for diagnostics.
func (s *Store) Status() models.StoreStatus {
	s.sessionsMu.RLock()
	sessionCount := len(s.sessions)
	s.sessionsMu.RUnlock()

	s.registrantsMu.RLock()
	registrantCount := len(s.registrants)
	s.registrantsMu.RUnlock()

	s.payoutsMu.RLock()
	payoutCount := len(s.payouts)
	s.payoutsMu.RUnlock()

	return models.StoreStatus{
		SessionCount:    sessionCount,
		RegistrantCount: registrantCount,
		PayoutCount:     payoutCount,
	}
}
