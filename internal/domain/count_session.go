package domain

import (
	"slices"
	"strings"
	"time"
)

// CountKind distinguishes whole-location counts from product subsets.
type CountKind string

// CountKind values.
const (
	CountKindFull    CountKind = "full"
	CountKindPartial CountKind = "partial"
)

// SessionStatus is the lifecycle state of a count session.
type SessionStatus string

// SessionStatus values.
const (
	SessionStatusDraft      SessionStatus = "draft"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

var validCountKinds = []CountKind{CountKindFull, CountKindPartial}

var validSessionStatuses = []SessionStatus{
	SessionStatusDraft,
	SessionStatusInProgress,
	SessionStatusCompleted,
	SessionStatusCancelled,
}

// CountSession is a physical stock count bound to one location.
type CountSession struct {
	ID          string
	Name        string
	Description string
	Kind        CountKind
	LocationID  string
	Status      SessionStatus
	CreatedBy   string
	Notes       string
	TotalItems  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// CountSessionInput holds values for NewCountSession.
type CountSessionInput struct {
	ID          string
	Name        string
	Description string
	Kind        CountKind
	LocationID  string
	CreatedBy   string
	Notes       string
}

// NewCountSession constructs a draft session. TotalItems is set once items are seeded.
func NewCountSession(in CountSessionInput, now time.Time) (CountSession, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.LocationID = strings.TrimSpace(in.LocationID)
	if in.ID == "" {
		return CountSession{}, ErrInvalidID
	}
	if in.Name == "" {
		return CountSession{}, ErrInvalidName
	}
	if in.LocationID == "" {
		return CountSession{}, ErrInvalidLocationID
	}
	kind := NormalizeCountKind(in.Kind)
	if kind == "" {
		kind = CountKindFull
	}
	if !slices.Contains(validCountKinds, kind) {
		return CountSession{}, ErrInvalidKind
	}
	return CountSession{
		ID:          in.ID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Kind:        kind,
		LocationID:  in.LocationID,
		Status:      SessionStatusDraft,
		CreatedBy:   strings.TrimSpace(in.CreatedBy),
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// NormalizeCountKind lowercases and trims a count kind.
func NormalizeCountKind(kind CountKind) CountKind {
	return CountKind(strings.TrimSpace(strings.ToLower(string(kind))))
}

// ParseSessionStatus validates a raw status value.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	status := SessionStatus(strings.TrimSpace(strings.ToLower(raw)))
	if !slices.Contains(validSessionStatuses, status) {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Start moves a draft session to in_progress. Starting an in-progress session is a no-op.
func (s *CountSession) Start(now time.Time) error {
	switch s.Status {
	case SessionStatusDraft, SessionStatusInProgress:
	case SessionStatusCompleted:
		return ErrSessionCompleted
	default:
		return ErrSessionCancelled
	}
	s.Status = SessionStatusInProgress
	if s.StartedAt == nil {
		ts := now.UTC()
		s.StartedAt = &ts
	}
	s.UpdatedAt = now.UTC()
	return nil
}

// Reopen returns a session in any status to in_progress. Item state is left alone.
func (s *CountSession) Reopen(now time.Time) {
	ts := now.UTC()
	s.Status = SessionStatusInProgress
	if s.StartedAt == nil {
		s.StartedAt = &ts
	}
	s.CompletedAt = nil
	s.CancelledAt = nil
	s.UpdatedAt = ts
}

// Complete stamps completion on an in-progress session.
func (s *CountSession) Complete(now time.Time) error {
	if s.Status != SessionStatusInProgress {
		return ErrSessionNotStarted
	}
	ts := now.UTC()
	s.Status = SessionStatusCompleted
	s.CompletedAt = &ts
	s.UpdatedAt = ts
	return nil
}

// Cancel abandons a session that has not been completed.
func (s *CountSession) Cancel(now time.Time) error {
	switch s.Status {
	case SessionStatusCompleted:
		return ErrSessionCompleted
	case SessionStatusCancelled:
		return nil
	}
	ts := now.UTC()
	s.Status = SessionStatusCancelled
	s.CancelledAt = &ts
	s.UpdatedAt = ts
	return nil
}

// CheckDeletable rejects deletion of completed sessions, whose items are audit history.
func (s CountSession) CheckDeletable() error {
	if s.Status == SessionStatusCompleted {
		return ErrSessionCompleted
	}
	return nil
}

// AcceptsCounts reports whether item counts may be recorded against the session.
func (s CountSession) AcceptsCounts() error {
	switch s.Status {
	case SessionStatusInProgress:
		return nil
	case SessionStatusCompleted:
		return ErrSessionCompleted
	case SessionStatusCancelled:
		return ErrSessionCancelled
	default:
		return ErrSessionNotStarted
	}
}

// AcceptsReconciliation reports whether variances may be reconciled.
func (s CountSession) AcceptsReconciliation() error {
	switch s.Status {
	case SessionStatusInProgress, SessionStatusCompleted:
		return nil
	case SessionStatusCancelled:
		return ErrSessionCancelled
	default:
		return ErrSessionNotStarted
	}
}
