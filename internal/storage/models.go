package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Lock lifecycle status.
type LockStatus string

const (
	StatusAvailable   LockStatus = "AVAILABLE"
	StatusInUse       LockStatus = "IN_USE"
	StatusMaintenance LockStatus = "MAINTENANCE"
	StatusRetired     LockStatus = "RETIRED"
)

// ValidLockStatus reports whether s is one of the four lifecycle statuses.
func ValidLockStatus(s LockStatus) bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusMaintenance, StatusRetired:
		return true
	}
	return false
}

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleUser       Role = "USER"
	RolePending    Role = "PENDING"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleUser, RolePending:
		return true
	}
	return false
}

type EventType string

const (
	EventLockAssigned      EventType = "LOCK_ASSIGNED"
	EventLockReleased      EventType = "LOCK_RELEASED"
	EventStatusChanged     EventType = "STATUS_CHANGED"
	EventMaintenance       EventType = "MAINTENANCE"
	EventEmergencyOverride EventType = "EMERGENCY_OVERRIDE"
)

// StringList is a []string stored as a JSON array in a TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		if v == "" {
			*l = StringList{}
			return nil
		}
		return json.Unmarshal([]byte(v), l)
	case []byte:
		if len(v) == 0 {
			*l = StringList{}
			return nil
		}
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         *string   `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Lock struct {
	ID               string     `db:"id"`
	Name             string     `db:"name"`
	Location         string     `db:"location"`
	Status           LockStatus `db:"status"`
	AccessCode       string     `db:"access_code"`
	SafetyProcedures StringList `db:"safety_procedures"`
	AssignedUserID   *string    `db:"assigned_user_id"`
	Deleted          bool       `db:"deleted"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Event is an append-only audit record. LockID stays set even after the
// referenced lock is soft-deleted.
type Event struct {
	ID           string     `db:"id"`
	Type         EventType  `db:"type"`
	Details      string     `db:"details"`
	Location     *string    `db:"location"`
	SafetyChecks StringList `db:"safety_checks"`
	LockID       *string    `db:"lock_id"`
	UserID       string     `db:"user_id"`
	CreatedAt    time.Time  `db:"created_at"`
}
