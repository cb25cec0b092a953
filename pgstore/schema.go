package pgstore

import "context"

// Schema creates the tables the store reads and writes.
const Schema = `
create table if not exists organizations (
	id         text primary key,
	name       text not null,
	is_active  boolean not null default true
);

create table if not exists users (
	id                  text primary key,
	email               text not null,
	first_name          text not null default '',
	last_name           text not null default '',
	role                text not null,
	is_active           boolean not null default true,
	organization_id     text references organizations(id),
	mfa_enabled         boolean not null default false,
	mfa_secret          text,
	mfa_failed_attempts integer not null default 0,
	mfa_locked_until    timestamptz
);

create table if not exists user_mfa_backup_codes (
	user_id   text not null references users(id) on delete cascade,
	position  integer not null,
	code_hash text not null,
	primary key (user_id, code_hash)
);
`

// Migrate applies [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}
