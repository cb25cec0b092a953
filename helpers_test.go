package goAccess

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccess/permission"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

type fakeStore struct {
	mu    sync.Mutex
	users map[string]*User
	orgs  map[string]*Organization

	getUserCalls int
	// getErr, when set, is returned by every read.
	getErr error
	// afterGetUser mutates the stored record once the copy for the caller is
	// taken, standing in for a write that lands between read and decision.
	afterGetUser func(*User)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*User),
		orgs:  make(map[string]*Organization),
	}
}

func (s *fakeStore) putOrg(org Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := org
	s.orgs[org.ID] = &cp
}

func (s *fakeStore) putUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneUser(u)
	s.users[u.ID] = &cp
}

func (s *fakeStore) user(t *testing.T, id string) User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		t.Fatalf("user %s missing from store", id)
	}
	return cloneUser(*u)
}

func (s *fakeStore) update(id string, fn func(*User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.users[id])
}

func (s *fakeStore) GetUser(_ context.Context, userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getUserCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrRecordNotFound)
	}
	cp := cloneUser(*u)
	if s.afterGetUser != nil {
		s.afterGetUser(u)
	}
	return &cp, nil
}

func (s *fakeStore) GetOrganization(_ context.Context, orgID string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	o, ok := s.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, ErrRecordNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) PatchUser(_ context.Context, userID string, patch UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrRecordNotFound
	}
	patch.Apply(u)
	return nil
}

func (s *fakeStore) ConsumeBackupCode(_ context.Context, userID, codeHash string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, false, ErrRecordNotFound
	}
	for i, h := range u.MFABackupCodes {
		if h == codeHash {
			u.MFABackupCodes = append(u.MFABackupCodes[:i:i], u.MFABackupCodes[i+1:]...)
			return len(u.MFABackupCodes), true, nil
		}
	}
	return len(u.MFABackupCodes), false, nil
}

func (s *fakeStore) RecordMFAFailure(_ context.Context, userID string, now time.Time, policy LockoutPolicy) (LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return LockState{}, ErrRecordNotFound
	}
	next := ApplyMFAFailure(u.lockState(), now, policy)
	u.MFAFailedAttempts = next.FailedAttempts
	u.MFALockedUntil = next.LockedUntil
	return next, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	// Fifteen seconds into a TOTP step keeps ±29s inside the skew window.
	return &testClock{now: time.Unix(1_700_000_025, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *Engine
	store  *fakeStore
	clock  *testClock
	sink   *ChannelSink
}

// newTestEnv builds an engine over a seeded store. Organization o1 holds
// two admins and a staff member; o2 holds one admin.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, DefaultConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	store := newFakeStore()
	store.putOrg(Organization{ID: "o1", Name: "Acme", IsActive: true})
	store.putOrg(Organization{ID: "o2", Name: "Globex", IsActive: true})
	store.putUser(User{ID: "u-admin", Email: "ada@acme.test", FirstName: "Ada", LastName: "Admin", Role: permission.RoleAdmin, IsActive: true, OrganizationID: "o1"})
	store.putUser(User{ID: "u-admin2", Email: "bob@acme.test", Role: permission.RoleAdmin, IsActive: true, OrganizationID: "o1"})
	store.putUser(User{ID: "u-staff", Email: "sam@acme.test", Role: permission.RoleStaff, IsActive: true, OrganizationID: "o1"})
	store.putUser(User{ID: "u-globex", Email: "gil@globex.test", Role: permission.RoleAdmin, IsActive: true, OrganizationID: "o2"})

	clock := newTestClock()
	sink := NewChannelSink(256)

	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithAuditSink(sink).
		WithClock(clock.Now).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, clock: clock, sink: sink}
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom failed: %v", err)
	}
	return code
}

// wrongCode returns a six digit code that differs from the current one.
func wrongCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	valid := map[string]bool{
		codeAt(t, secret, at.Add(-30*time.Second)): true,
		codeAt(t, secret, at):                      true,
		codeAt(t, secret, at.Add(30*time.Second)):  true,
	}
	for i := 0; i < 1_000_000; i++ {
		c := fmt.Sprintf("%06d", i)
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no wrong code available")
	return ""
}

// enable enrolls and confirms MFA for userID and returns the secret and the
// plaintext backup codes.
func (env *testEnv) enable(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enrollment, err := env.engine.BeginMFAEnrollment(ctx, userID)
	if err != nil {
		t.Fatalf("BeginMFAEnrollment(%s) failed: %v", userID, err)
	}
	if err := env.engine.ConfirmMFAEnrollment(ctx, userID, codeAt(t, enrollment.Secret, env.clock.Now())); err != nil {
		t.Fatalf("ConfirmMFAEnrollment(%s) failed: %v", userID, err)
	}
	return enrollment.Secret, enrollment.BackupCodes
}

// drainAudit collects events until the sink has been quiet for a moment.
func (env *testEnv) drainAudit(t *testing.T) []AuditEvent {
	t.Helper()
	var out []AuditEvent
	for {
		select {
		case ev := <-env.sink.Events():
			out = append(out, ev)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

func eventTypes(events []AuditEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func findEvent(events []AuditEvent, eventType string) (AuditEvent, bool) {
	for _, ev := range events {
		if ev.EventType == eventType {
			return ev, true
		}
	}
	return AuditEvent{}, false
}
