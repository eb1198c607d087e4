package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lototrak/internal/storage"
)

// stubStore is an in-memory storage.Provider for manager tests. Transition
// methods apply the same status guards as the SQL implementation and report
// zero rows when a guard does not match.
type stubStore struct {
	locks  map[string]*storage.Lock
	users  map[string]*storage.User
	events []storage.Event

	// Called at the start of AssignLock, before the guard check. Lets tests
	// race a status change between the manager's read and the update.
	beforeAssign func()
}

func newStubStore() *stubStore {
	return &stubStore{
		locks: make(map[string]*storage.Lock),
		users: make(map[string]*storage.User),
	}
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) GetSchemaVersion(ctx context.Context) (int, error) { return 1, nil }

func (s *stubStore) GetLock(ctx context.Context, id string) (*storage.Lock, error) {
	lock, ok := s.locks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *lock
	return &copied, nil
}

func (s *stubStore) GetLockByCode(ctx context.Context, code string) (*storage.Lock, error) {
	for _, lock := range s.locks {
		if lock.AccessCode == code {
			copied := *lock
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubStore) ListLocks(ctx context.Context) ([]storage.Lock, error) {
	var out []storage.Lock
	for _, lock := range s.locks {
		if !lock.Deleted {
			out = append(out, *lock)
		}
	}
	return out, nil
}

func (s *stubStore) ListAssignedLocks(ctx context.Context, userID string) ([]storage.Lock, error) {
	var out []storage.Lock
	for _, lock := range s.locks {
		if !lock.Deleted && lock.Status == storage.StatusInUse && lock.AssignedUserID != nil && *lock.AssignedUserID == userID {
			out = append(out, *lock)
		}
	}
	return out, nil
}

func (s *stubStore) CreateLock(ctx context.Context, lock storage.Lock) error {
	s.locks[lock.ID] = &lock
	return nil
}

func (s *stubStore) UpdateLock(ctx context.Context, lock storage.Lock) error {
	existing, ok := s.locks[lock.ID]
	if !ok || existing.Deleted {
		return storage.ErrNotFound
	}
	existing.Name = lock.Name
	existing.Location = lock.Location
	existing.AccessCode = lock.AccessCode
	existing.SafetyProcedures = lock.SafetyProcedures
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *stubStore) CodeInUse(ctx context.Context, code string, excludeID string) (bool, error) {
	for _, lock := range s.locks {
		if lock.AccessCode == code && lock.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) AssignLock(ctx context.Context, lockID string, userID string, event storage.Event) (int64, error) {
	if s.beforeAssign != nil {
		s.beforeAssign()
	}
	lock, ok := s.locks[lockID]
	if !ok || lock.Deleted || lock.Status != storage.StatusAvailable {
		return 0, nil
	}
	lock.Status = storage.StatusInUse
	lock.AssignedUserID = &userID
	s.events = append(s.events, event)
	return 1, nil
}

func (s *stubStore) ReleaseLock(ctx context.Context, lockID string, userID string, event storage.Event) (int64, error) {
	lock, ok := s.locks[lockID]
	if !ok || lock.Deleted || lock.Status != storage.StatusInUse || lock.AssignedUserID == nil || *lock.AssignedUserID != userID {
		return 0, nil
	}
	lock.Status = storage.StatusAvailable
	lock.AssignedUserID = nil
	s.events = append(s.events, event)
	return 1, nil
}

func (s *stubStore) SetLockStatus(ctx context.Context, lockID string, status storage.LockStatus, clearAssignment bool, event storage.Event) (int64, error) {
	lock, ok := s.locks[lockID]
	if !ok || lock.Deleted {
		return 0, nil
	}
	lock.Status = status
	if clearAssignment {
		lock.AssignedUserID = nil
	}
	s.events = append(s.events, event)
	return 1, nil
}

func (s *stubStore) SoftDeleteLock(ctx context.Context, lockID string, event storage.Event) (int64, error) {
	lock, ok := s.locks[lockID]
	if !ok || lock.Deleted {
		return 0, nil
	}
	if lock.Status != storage.StatusAvailable && lock.Status != storage.StatusRetired {
		return 0, nil
	}
	lock.Deleted = true
	lock.Status = storage.StatusRetired
	lock.AssignedUserID = nil
	s.events = append(s.events, event)
	return 1, nil
}

func (s *stubStore) CreateUser(ctx context.Context, user storage.User) error {
	s.users[user.ID] = &user
	return nil
}

func (s *stubStore) GetUser(ctx context.Context, id string) (*storage.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *stubStore) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubStore) ListUsers(ctx context.Context) ([]storage.User, error) {
	var out []storage.User
	for _, user := range s.users {
		out = append(out, *user)
	}
	return out, nil
}

func (s *stubStore) UpdateUserRole(ctx context.Context, userID string, role storage.Role) error {
	user, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	user.Role = role
	return nil
}

func (s *stubStore) CountUsersByRole(ctx context.Context, role storage.Role) (int, error) {
	count := 0
	for _, user := range s.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (s *stubStore) ListEvents(ctx context.Context, filter storage.EventFilter) ([]storage.Event, error) {
	var out []storage.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if filter.LockID != "" && (e.LockID == nil || *e.LockID != filter.LockID) {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) CreateNonce(ctx context.Context, nonce string, expiresAt time.Time) error {
	return nil
}
func (s *stubStore) ExistsNonce(ctx context.Context, nonce string) (bool, error) { return false, nil }
func (s *stubStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) { return false, nil }
func (s *stubStore) ExpireNonces(ctx context.Context, now time.Time) error        { return nil }

var _ storage.Provider = (*stubStore)(nil)

func testUser(id string) *storage.User {
	return &storage.User{ID: id, Email: id + "@example.com", Role: storage.RoleUser}
}

func addLock(s *stubStore, id string, status storage.LockStatus, procedures ...string) *storage.Lock {
	lock := &storage.Lock{
		ID:               id,
		Name:             "Breaker " + id,
		Location:         "Panel room",
		Status:           status,
		AccessCode:       "CODE" + id,
		SafetyProcedures: storage.StringList(procedures),
	}
	s.locks[id] = lock
	return lock
}

func TestAssign_CompletedChecklist(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Verify isolation", "Tag panel")
	user := testUser("u1")

	lock, err := m.Assign(context.Background(), "l1", user, []string{"Tag panel", "Verify isolation"})
	require.NoError(t, err)

	assert.Equal(t, storage.StatusInUse, lock.Status)
	require.NotNil(t, lock.AssignedUserID)
	assert.Equal(t, "u1", *lock.AssignedUserID)

	require.Len(t, store.events, 1)
	event := store.events[0]
	assert.Equal(t, storage.EventLockAssigned, event.Type)
	assert.Equal(t, "Lock assigned after safety checks", event.Details)
	require.NotNil(t, event.Location)
	assert.Equal(t, "Panel room", *event.Location)
	assert.ElementsMatch(t, []string{"Tag panel", "Verify isolation"}, []string(event.SafetyChecks))
}

func TestAssign_MissingChecksInRequiredOrder(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Verify isolation", "Tag panel", "Test for zero energy")

	_, err := m.Assign(context.Background(), "l1", testUser("u1"), []string{"Tag panel"})

	var checklistErr *ChecklistError
	require.ErrorAs(t, err, &checklistErr)
	assert.Equal(t, []string{"Verify isolation", "Test for zero energy"}, checklistErr.Missing)
	assert.Empty(t, store.events, "no event on a failed assignment")
}

func TestAssign_NoProcedures(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable)

	_, err := m.Assign(context.Background(), "l1", testUser("u1"), []string{})
	assert.ErrorIs(t, err, ErrNoProcedures)
}

func TestAssign_NotAvailable(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusMaintenance, "Check")

	_, err := m.Assign(context.Background(), "l1", testUser("u1"), []string{"Check"})

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, storage.StatusMaintenance, stateErr.Status)
	assert.Contains(t, stateErr.Reason, "MAINTENANCE")
}

func TestAssign_LostRaceNamesCurrentStatus(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	lock := addLock(store, "l1", storage.StatusAvailable, "Check")

	// Another worker grabs the lock between the manager's read and the
	// guarded update.
	other := "u2"
	store.beforeAssign = func() {
		lock.Status = storage.StatusInUse
		lock.AssignedUserID = &other
	}

	_, err := m.Assign(context.Background(), "l1", testUser("u1"), []string{"Check"})

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, storage.StatusInUse, stateErr.Status)
	assert.Empty(t, store.events, "loser of the race writes nothing")
}

func TestAssign_ByAccessCode(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Check")

	lock, err := m.Assign(context.Background(), "CODEl1", testUser("u1"), []string{"Check"})
	require.NoError(t, err)
	assert.Equal(t, "l1", lock.ID)
}

func TestRelease_ByHolder(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	lock := addLock(store, "l1", storage.StatusInUse, "Check")
	holder := "u1"
	lock.AssignedUserID = &holder

	released, err := m.Release(context.Background(), "l1", testUser("u1"))
	require.NoError(t, err)

	assert.Equal(t, storage.StatusAvailable, released.Status)
	assert.Nil(t, released.AssignedUserID)

	require.Len(t, store.events, 1)
	assert.Equal(t, storage.EventLockReleased, store.events[0].Type)
	assert.Equal(t, "Lock released", store.events[0].Details)
}

func TestRelease_NotHolder(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	lock := addLock(store, "l1", storage.StatusInUse, "Check")
	holder := "u1"
	lock.AssignedUserID = &holder

	_, err := m.Release(context.Background(), "l1", testUser("u2"))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, storage.StatusInUse, lock.Status, "lock stays assigned")
}

func TestRelease_NotInUse(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Check")

	_, err := m.Release(context.Background(), "l1", testUser("u1"))

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "lock is not in use", stateErr.Reason)
}

func TestAssignReleaseCycle_AuditTrail(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Verify isolation", "Tag panel")
	worker := testUser("u1")
	ctx := context.Background()

	// Incomplete checklist blocks the assignment
	_, err := m.Assign(ctx, "l1", worker, []string{"Verify isolation"})
	var checklistErr *ChecklistError
	require.ErrorAs(t, err, &checklistErr)
	assert.Equal(t, []string{"Tag panel"}, checklistErr.Missing)

	// Complete checklist assigns
	lock, err := m.Assign(ctx, "l1", worker, []string{"Verify isolation", "Tag panel"})
	require.NoError(t, err)
	assert.Equal(t, storage.StatusInUse, lock.Status)

	// A second worker cannot release
	_, err = m.Release(ctx, "l1", testUser("u2"))
	assert.ErrorIs(t, err, ErrForbidden)

	// The holder can
	lock, err = m.Release(ctx, "l1", worker)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusAvailable, lock.Status)

	events, err := m.Events(ctx, storage.EventFilter{LockID: "l1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, storage.EventLockReleased, events[0].Type)
	assert.Equal(t, storage.EventLockAssigned, events[1].Type)
}

func TestChangeStatus_RejectsInUseTarget(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Check")

	_, _, err := m.ChangeStatus(context.Background(), "l1", storage.StatusInUse, testUser("admin"))

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Empty(t, store.events)
}

func TestChangeStatus_OverrideClearsAssignment(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	lock := addLock(store, "l1", storage.StatusInUse, "Check")
	holder := "u1"
	lock.AssignedUserID = &holder

	updated, event, err := m.ChangeStatus(context.Background(), "l1", storage.StatusMaintenance, testUser("admin"))
	require.NoError(t, err)

	assert.Equal(t, storage.StatusMaintenance, updated.Status)
	assert.Nil(t, updated.AssignedUserID)
	assert.Equal(t, storage.EventEmergencyOverride, event.Type)
	assert.Contains(t, event.Details, "Emergency override")
}

func TestChangeStatus_RegularChange(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Check")

	updated, event, err := m.ChangeStatus(context.Background(), "l1", storage.StatusMaintenance, testUser("admin"))
	require.NoError(t, err)

	assert.Equal(t, storage.StatusMaintenance, updated.Status)
	assert.Equal(t, storage.EventStatusChanged, event.Type)
}

func TestChangeStatus_InvalidStatus(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Check")

	_, _, err := m.ChangeStatus(context.Background(), "l1", "BROKEN", testUser("admin"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCreate_GeneratesCode(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)

	lock, err := m.Create(context.Background(), CreateInput{
		Name:     "Breaker 7",
		Location: "Hall B",
	}, testUser("admin"))
	require.NoError(t, err)

	assert.Len(t, lock.AccessCode, generatedCodeLength)
	assert.True(t, ValidAccessCode(lock.AccessCode))
	assert.Equal(t, storage.StatusAvailable, lock.Status)
}

func TestCreate_RejectsDuplicateCode(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable)

	_, err := m.Create(context.Background(), CreateInput{
		Name:     "Breaker 7",
		Location: "Hall B",
		Code:     "CODEl1",
	}, testUser("admin"))
	assert.ErrorIs(t, err, ErrCodeInUse)
}

func TestCreate_RejectsInvalidCode(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)

	_, err := m.Create(context.Background(), CreateInput{
		Name:     "Breaker 7",
		Location: "Hall B",
		Code:     "no spaces!",
	}, testUser("admin"))
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestCreate_RequiresNameAndLocation(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)

	_, err := m.Create(context.Background(), CreateInput{Name: "Breaker 7"}, testUser("admin"))
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestUpdate_KeepsCodeWhenEmpty(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Check")

	updated, err := m.Update(context.Background(), "l1", UpdateInput{
		Name:             "Renamed",
		Location:         "Hall C",
		SafetyProcedures: []string{"New step"},
	}, testUser("admin"))
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "CODEl1", updated.AccessCode)
	assert.Equal(t, storage.StringList{"New step"}, updated.SafetyProcedures)
}

func TestUpdate_RejectsCodeCollision(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable)
	addLock(store, "l2", storage.StatusAvailable)

	_, err := m.Update(context.Background(), "l2", UpdateInput{
		Name:     "Breaker",
		Location: "Hall",
		Code:     "CODEl1",
	}, testUser("admin"))
	assert.ErrorIs(t, err, ErrCodeInUse)
}

func TestSoftDelete_BlocksInUse(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	lock := addLock(store, "l1", storage.StatusInUse, "Check")
	holder := "u1"
	lock.AssignedUserID = &holder

	err := m.SoftDelete(context.Background(), "l1", testUser("admin"))

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, storage.StatusInUse, stateErr.Status)
}

func TestSoftDelete_HidesLockButKeepsCode(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	addLock(store, "l1", storage.StatusAvailable, "Check")
	ctx := context.Background()

	require.NoError(t, m.SoftDelete(ctx, "l1", testUser("admin")))

	_, err := m.Resolve(ctx, "l1")
	assert.ErrorIs(t, err, ErrNotFound)

	// The code stays reserved even after deletion
	inUse, err := store.CodeInUse(ctx, "CODEl1", "")
	require.NoError(t, err)
	assert.True(t, inUse)

	require.Len(t, store.events, 1)
	assert.Equal(t, "Lock marked as deleted", store.events[0].Details)
}

func TestResolve_DeletedNotFound(t *testing.T) {
	store := newStubStore()
	m := NewManager(store)
	lock := addLock(store, "l1", storage.StatusAvailable)
	lock.Deleted = true

	_, err := m.Resolve(context.Background(), "l1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Resolve(context.Background(), "CODEl1")
	assert.ErrorIs(t, err, ErrNotFound)
}
