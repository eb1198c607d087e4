// Package locks implements the lock lifecycle: resolution by id or access
// code, the checklist-gated assign/release transitions, administrative
// status overrides, and soft deletion. Every state change commits together
// with exactly one audit event.
package locks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lototrak/internal/storage"
)

// Number of attempts at generating a collision-free access code before
// giving up. Collisions on a 31^6 space are practically seed data only.
const maxCodeAttempts = 5

type Manager struct {
	store  storage.Provider
	logger *slog.Logger
}

func NewManager(store storage.Provider) *Manager {
	return &Manager{
		store:  store,
		logger: slog.With("component", "locks"),
	}
}

// Resolve locates a lock by primary id, falling back to access code lookup
// when the identifier matches the code format. Soft-deleted locks do not
// resolve.
func (m *Manager) Resolve(ctx context.Context, identifier string) (*storage.Lock, error) {
	lock, err := m.store.GetLock(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) && ValidAccessCode(identifier) {
		lock, err = m.store.GetLockByCode(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lock.Deleted {
		return nil, ErrNotFound
	}
	return lock, nil
}

// Assign puts an available lock into use by actor after verifying the
// safety checklist. The status change and the LOCK_ASSIGNED event commit
// atomically; a racing assign loses on the store's status guard.
func (m *Manager) Assign(ctx context.Context, identifier string, actor *storage.User, completedChecks []string) (*storage.Lock, error) {
	lock, err := m.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if lock.Status != storage.StatusAvailable {
		return nil, newStateError(lock.Status, "lock is not available (current status: %s)", lock.Status)
	}

	if len(lock.SafetyProcedures) == 0 {
		return nil, ErrNoProcedures
	}

	if missing := missingChecks(lock.SafetyProcedures, completedChecks); len(missing) > 0 {
		return nil, &ChecklistError{Missing: missing}
	}

	location := lock.Location
	event := storage.Event{
		ID:           uuid.NewString(),
		Type:         storage.EventLockAssigned,
		Details:      "Lock assigned after safety checks",
		Location:     &location,
		SafetyChecks: storage.StringList(completedChecks),
		LockID:       &lock.ID,
		UserID:       actor.ID,
		CreatedAt:    time.Now().UTC(),
	}

	rows, err := m.store.AssignLock(ctx, lock.ID, actor.ID, event)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost the race: somebody took the lock between the read and the
		// guarded update. Re-read so the error names the current status.
		return nil, m.staleStateError(ctx, lock.ID, "lock is not available (current status: %s)")
	}

	m.logger.Info("Lock assigned", "lock", lock.ID, "user", actor.ID, "checks", len(completedChecks))

	return m.store.GetLock(ctx, lock.ID)
}

// Release returns a lock held by actor to the available pool. Only the
// assigned user may release; administrative paths go through ChangeStatus.
func (m *Manager) Release(ctx context.Context, lockID string, actor *storage.User) (*storage.Lock, error) {
	lock, err := m.store.GetLock(ctx, lockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lock.Deleted {
		return nil, ErrNotFound
	}

	if lock.Status != storage.StatusInUse {
		return nil, newStateError(lock.Status, "lock is not in use")
	}

	if lock.AssignedUserID == nil || *lock.AssignedUserID != actor.ID {
		return nil, ErrForbidden
	}

	event := storage.Event{
		ID:        uuid.NewString(),
		Type:      storage.EventLockReleased,
		Details:   "Lock released",
		LockID:    &lock.ID,
		UserID:    actor.ID,
		CreatedAt: time.Now().UTC(),
	}

	rows, err := m.store.ReleaseLock(ctx, lock.ID, actor.ID, event)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, m.staleStateError(ctx, lock.ID, "lock is not in use (current status: %s)")
	}

	m.logger.Info("Lock released", "lock", lock.ID, "user", actor.ID)

	return m.store.GetLock(ctx, lock.ID)
}

// ChangeStatus is the administrative override path. Entering IN_USE is
// rejected so the checklist gate cannot be bypassed; leaving IN_USE clears
// the assignment and is audited as an emergency override.
func (m *Manager) ChangeStatus(ctx context.Context, lockID string, newStatus storage.LockStatus, actor *storage.User) (*storage.Lock, *storage.Event, error) {
	if !storage.ValidLockStatus(newStatus) {
		return nil, nil, ErrInvalidStatus
	}

	lock, err := m.store.GetLock(ctx, lockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if lock.Deleted {
		return nil, nil, ErrNotFound
	}

	if newStatus == storage.StatusInUse {
		return nil, nil, newStateError(lock.Status, "locks enter use through assignment, not a status change")
	}

	override := lock.Status == storage.StatusInUse
	eventType := storage.EventStatusChanged
	details := fmt.Sprintf("Status changed from %s to %s at %s", lock.Status, newStatus, lock.Location)
	if override {
		eventType = storage.EventEmergencyOverride
		details = fmt.Sprintf("Emergency override: status changed from %s to %s at %s", lock.Status, newStatus, lock.Location)
	}

	location := lock.Location
	event := storage.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Details:   details,
		Location:  &location,
		LockID:    &lock.ID,
		UserID:    actor.ID,
		CreatedAt: time.Now().UTC(),
	}

	rows, err := m.store.SetLockStatus(ctx, lock.ID, newStatus, override, event)
	if err != nil {
		return nil, nil, err
	}
	if rows == 0 {
		return nil, nil, ErrNotFound
	}

	m.logger.Info("Lock status changed", "lock", lock.ID, "from", lock.Status, "to", newStatus, "user", actor.ID, "override", override)

	updated, err := m.store.GetLock(ctx, lock.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, &event, nil
}

// CreateInput holds the administrative lock creation payload. Code is
// optional; a short scannable code is generated when empty.
type CreateInput struct {
	Name             string
	Location         string
	Code             string
	SafetyProcedures []string
}

func (m *Manager) Create(ctx context.Context, input CreateInput, actor *storage.User) (*storage.Lock, error) {
	if input.Name == "" || input.Location == "" {
		return nil, ErrMissingFields
	}

	code := input.Code
	if code != "" {
		if !ValidAccessCode(code) {
			return nil, ErrInvalidCode
		}
		inUse, err := m.store.CodeInUse(ctx, code, "")
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, ErrCodeInUse
		}
	} else {
		var err error
		code, err = m.freshCode(ctx)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	lock := storage.Lock{
		ID:               uuid.NewString(),
		Name:             input.Name,
		Location:         input.Location,
		Status:           storage.StatusAvailable,
		AccessCode:       code,
		SafetyProcedures: storage.StringList(input.SafetyProcedures),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := m.store.CreateLock(ctx, lock); err != nil {
		return nil, err
	}

	m.logger.Info("Lock created", "lock", lock.ID, "code", lock.AccessCode, "user", actor.ID)

	return &lock, nil
}

// UpdateInput holds the administrative edit payload. Edits are not audited.
type UpdateInput struct {
	Name             string
	Location         string
	Code             string // empty keeps the current code
	SafetyProcedures []string
}

func (m *Manager) Update(ctx context.Context, lockID string, input UpdateInput, actor *storage.User) (*storage.Lock, error) {
	if input.Name == "" || input.Location == "" {
		return nil, ErrMissingFields
	}

	lock, err := m.store.GetLock(ctx, lockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lock.Deleted {
		return nil, ErrNotFound
	}

	if input.Code != "" && input.Code != lock.AccessCode {
		if !ValidAccessCode(input.Code) {
			return nil, ErrInvalidCode
		}
		inUse, err := m.store.CodeInUse(ctx, input.Code, lock.ID)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, ErrCodeInUse
		}
		lock.AccessCode = input.Code
	}

	lock.Name = input.Name
	lock.Location = input.Location
	lock.SafetyProcedures = storage.StringList(input.SafetyProcedures)

	if err := m.store.UpdateLock(ctx, *lock); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return m.store.GetLock(ctx, lock.ID)
}

// SoftDelete retires a lock permanently. Only AVAILABLE and RETIRED locks
// can be deleted; the access code is never freed for reuse and historical
// events keep their lock reference.
func (m *Manager) SoftDelete(ctx context.Context, lockID string, actor *storage.User) error {
	lock, err := m.store.GetLock(ctx, lockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if lock.Deleted {
		return ErrNotFound
	}

	if lock.Status != storage.StatusAvailable && lock.Status != storage.StatusRetired {
		return newStateError(lock.Status, "cannot delete lock %q because it is %s, only available or retired locks can be deleted", lock.Name, lock.Status)
	}

	location := lock.Location
	event := storage.Event{
		ID:        uuid.NewString(),
		Type:      storage.EventMaintenance,
		Details:   "Lock marked as deleted",
		Location:  &location,
		LockID:    &lock.ID,
		UserID:    actor.ID,
		CreatedAt: time.Now().UTC(),
	}

	rows, err := m.store.SoftDeleteLock(ctx, lock.ID, event)
	if err != nil {
		return err
	}
	if rows == 0 {
		return m.staleStateError(ctx, lock.ID, "cannot delete lock (current status: %s)")
	}

	m.logger.Info("Lock deleted", "lock", lock.ID, "user", actor.ID)

	return nil
}

func (m *Manager) List(ctx context.Context) ([]storage.Lock, error) {
	return m.store.ListLocks(ctx)
}

func (m *Manager) ListAssigned(ctx context.Context, actor *storage.User) ([]storage.Lock, error) {
	return m.store.ListAssignedLocks(ctx, actor.ID)
}

func (m *Manager) Events(ctx context.Context, filter storage.EventFilter) ([]storage.Event, error) {
	return m.store.ListEvents(ctx, filter)
}

// missingChecks returns required procedures absent from completed, preserving
// required order. Labels compare by exact equality.
func missingChecks(required []string, completed []string) []string {
	done := make(map[string]struct{}, len(completed))
	for _, c := range completed {
		done[c] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := done[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// staleStateError re-reads the lock after a guarded update matched no rows,
// so the returned error names the status that blocked the transition.
func (m *Manager) staleStateError(ctx context.Context, lockID string, format string) error {
	lock, err := m.store.GetLock(ctx, lockID)
	if err != nil {
		return err
	}
	return newStateError(lock.Status, format, lock.Status)
}

func (m *Manager) freshCode(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code, err := generateAccessCode()
		if err != nil {
			return "", err
		}
		inUse, err := m.store.CodeInUse(ctx, code, "")
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique access code after %d attempts", maxCodeAttempts)
}
