package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/google/uuid"
)

// Store holds users and organizations in maps guarded by a mutex.
type Store struct {
	mu    sync.Mutex
	users map[string]*goAccess.User
	orgs  map[string]*goAccess.Organization
}

var _ goAccess.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users: make(map[string]*goAccess.User),
		orgs:  make(map[string]*goAccess.Organization),
	}
}

// PutOrganization inserts or replaces org. An empty ID is assigned a UUID.
func (s *Store) PutOrganization(org goAccess.Organization) goAccess.Organization {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := org
	s.orgs[org.ID] = &cp
	return org
}

// PutUser inserts or replaces user. An empty ID is assigned a UUID.
func (s *Store) PutUser(user goAccess.User) goAccess.User {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := cloneUser(user)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = &cp
	return user
}

// UpdateUser applies fn to the stored user under the lock.
func (s *Store) UpdateUser(userID string, fn func(*goAccess.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, goAccess.ErrRecordNotFound)
	}
	fn(u)
	return nil
}

// UpdateOrganization applies fn to the stored organization under the lock.
func (s *Store) UpdateOrganization(orgID string, fn func(*goAccess.Organization)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return fmt.Errorf("organization %s: %w", orgID, goAccess.ErrRecordNotFound)
	}
	fn(o)
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (*goAccess.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, goAccess.ErrRecordNotFound)
	}
	cp := cloneUser(*u)
	return &cp, nil
}

func (s *Store) GetOrganization(_ context.Context, orgID string) (*goAccess.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, goAccess.ErrRecordNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *Store) PatchUser(_ context.Context, userID string, patch goAccess.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, goAccess.ErrRecordNotFound)
	}
	patch.Apply(u)
	return nil
}

func (s *Store) ConsumeBackupCode(_ context.Context, userID, codeHash string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, false, fmt.Errorf("user %s: %w", userID, goAccess.ErrRecordNotFound)
	}
	for i, h := range u.MFABackupCodes {
		if h == codeHash {
			u.MFABackupCodes = append(u.MFABackupCodes[:i:i], u.MFABackupCodes[i+1:]...)
			return len(u.MFABackupCodes), true, nil
		}
	}
	return len(u.MFABackupCodes), false, nil
}

func (s *Store) RecordMFAFailure(_ context.Context, userID string, now time.Time, policy goAccess.LockoutPolicy) (goAccess.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return goAccess.LockState{}, fmt.Errorf("user %s: %w", userID, goAccess.ErrRecordNotFound)
	}
	state := goAccess.ApplyMFAFailure(goAccess.LockState{
		FailedAttempts: u.MFAFailedAttempts,
		LockedUntil:    u.MFALockedUntil,
	}, now, policy)
	u.MFAFailedAttempts = state.FailedAttempts
	u.MFALockedUntil = state.LockedUntil
	return state, nil
}

func cloneUser(u goAccess.User) goAccess.User {
	out := u
	if u.MFABackupCodes != nil {
		out.MFABackupCodes = append([]string(nil), u.MFABackupCodes...)
	}
	return out
}
