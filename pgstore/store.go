package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/permission"
)

// Store implements [goAccess.Store] on a *sql.DB.
type Store struct {
	db *sql.DB
}

var _ goAccess.Store = (*Store)(nil)

// Open connects with the pgx driver and applies pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) GetUser(ctx context.Context, userID string) (*goAccess.User, error) {
	var (
		u           goAccess.User
		role        string
		orgID       sql.NullString
		secret      sql.NullString
		lockedUntil sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, email, first_name, last_name, role, is_active, organization_id,
		       mfa_enabled, mfa_secret, mfa_failed_attempts, mfa_locked_until
		from users where id = $1`, userID,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &u.IsActive, &orgID,
		&u.MFAEnabled, &secret, &u.MFAFailedAttempts, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, goAccess.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.Role = permission.Role(role)
	u.OrganizationID = orgID.String
	u.MFASecret = secret.String
	if lockedUntil.Valid {
		u.MFALockedUntil = lockedUntil.Time
	}

	rows, err := s.db.QueryContext(ctx,
		`select code_hash from user_mfa_backup_codes where user_id = $1 order by position`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		u.MFABackupCodes = append(u.MFABackupCodes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetOrganization(ctx context.Context, orgID string) (*goAccess.Organization, error) {
	var o goAccess.Organization
	err := s.db.QueryRowContext(ctx,
		`select id, name, is_active from organizations where id = $1`, orgID,
	).Scan(&o.ID, &o.Name, &o.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", orgID, goAccess.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) PatchUser(ctx context.Context, userID string, patch goAccess.UserPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUser(ctx, tx, userID); err != nil {
		return err
	}

	sets, args := patchAssignments(patch)
	if len(sets) > 0 {
		args = append(args, userID)
		q := `update users set ` + strings.Join(sets, ", ") + ` where id = $` + strconv.Itoa(len(args))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}

	if patch.ReplaceBackupCodes {
		if _, err := tx.ExecContext(ctx, `delete from user_mfa_backup_codes where user_id = $1`, userID); err != nil {
			return err
		}
		for i, h := range patch.MFABackupCodes {
			if _, err := tx.ExecContext(ctx,
				`insert into user_mfa_backup_codes(user_id, position, code_hash) values ($1, $2, $3)`,
				userID, i, h,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ConsumeBackupCode deletes the matching hash and counts the rest in one
// statement. The count runs on the pre-delete snapshot, hence the subtraction.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (int, bool, error) {
	var deleted, total int
	err := s.db.QueryRowContext(ctx, `
		with deleted as (
			delete from user_mfa_backup_codes where user_id = $1 and code_hash = $2 returning 1
		)
		select (select count(*) from deleted), (select count(*) from user_mfa_backup_codes where user_id = $1)`,
		userID, codeHash,
	).Scan(&deleted, &total)
	if err != nil {
		return 0, false, err
	}
	return total - deleted, deleted > 0, nil
}

func (s *Store) RecordMFAFailure(ctx context.Context, userID string, now time.Time, policy goAccess.LockoutPolicy) (goAccess.LockState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goAccess.LockState{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		state       goAccess.LockState
		lockedUntil sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`select mfa_failed_attempts, mfa_locked_until from users where id = $1 for update`, userID,
	).Scan(&state.FailedAttempts, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return goAccess.LockState{}, fmt.Errorf("user %s: %w", userID, goAccess.ErrRecordNotFound)
	}
	if err != nil {
		return goAccess.LockState{}, err
	}
	if lockedUntil.Valid {
		state.LockedUntil = lockedUntil.Time
	}

	next := goAccess.ApplyMFAFailure(state, now, policy)
	if next.FailedAttempts == state.FailedAttempts && next.LockedUntil.Equal(state.LockedUntil) {
		return next, nil
	}

	if _, err := tx.ExecContext(ctx,
		`update users set mfa_failed_attempts = $1, mfa_locked_until = $2 where id = $3`,
		next.FailedAttempts, nullTime(next.LockedUntil), userID,
	); err != nil {
		return goAccess.LockState{}, err
	}
	if err := tx.Commit(); err != nil {
		return goAccess.LockState{}, err
	}
	return next, nil
}

func lockUser(ctx context.Context, tx *sql.Tx, userID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `select id from users where id = $1 for update`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", userID, goAccess.ErrRecordNotFound)
	}
	return err
}

func patchAssignments(p goAccess.UserPatch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if p.MFAEnabled != nil {
		add("mfa_enabled", *p.MFAEnabled)
	}
	if p.MFASecret != nil {
		if *p.MFASecret == "" {
			add("mfa_secret", nil)
		} else {
			add("mfa_secret", *p.MFASecret)
		}
	}
	if p.ResetLockout {
		sets = append(sets, "mfa_failed_attempts = 0", "mfa_locked_until = null")
	}
	return sets, args
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
