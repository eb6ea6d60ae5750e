package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// PGStore implements Store using PostgreSQL. Uniqueness of emails, role
// names and assignment pairs is enforced by database constraints, so
// concurrent duplicate writes fail cleanly for all but one caller.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

var _ Store = (*PGStore)(nil)

func (s *PGStore) Identities() IdentityStore    { return &pgIdentities{db: s.db} }
func (s *PGStore) Roles() RoleStore             { return &pgRoles{db: s.db} }
func (s *PGStore) Assignments() AssignmentStore { return &pgAssignments{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// Identity store ------------------------------------------------------------

type pgIdentities struct{ db *sql.DB }

const identityColumns = `id, email, password_hash, first_name, last_name, other_name,
	phone_number, address, gender, refresh_token, refresh_token_expiry, created_at, updated_at`

func scanIdentity(row interface{ Scan(...any) error }) (*Identity, error) {
	var (
		identity      Identity
		refreshToken  sql.NullString
		refreshExpiry sql.NullTime
		gender        string
	)
	err := row.Scan(
		&identity.ID, &identity.Email, &identity.PasswordHash,
		&identity.FirstName, &identity.LastName, &identity.OtherName,
		&identity.PhoneNumber, &identity.Address, &gender,
		&refreshToken, &refreshExpiry,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	identity.Gender = ParseGender(gender)
	if refreshToken.Valid {
		identity.RefreshToken = refreshToken.String
	}
	if refreshExpiry.Valid {
		t := refreshExpiry.Time
		identity.RefreshTokenExpiry = &t
	}
	return &identity, nil
}

func (s *pgIdentities) Create(ctx context.Context, identity *Identity) error {
	row := s.db.QueryRowContext(ctx, `
		insert into identities (id, email, password_hash, first_name, last_name, other_name, phone_number, address, gender)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning created_at, updated_at
	`, identity.ID, identity.Email, identity.PasswordHash,
		identity.FirstName, identity.LastName, identity.OtherName,
		identity.PhoneNumber, identity.Address, string(identity.Gender),
	)
	if err := row.Scan(&identity.CreatedAt, &identity.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *pgIdentities) FindByID(ctx context.Context, id string) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where id = $1`, id))
}

func (s *pgIdentities) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where lower(email) = lower($1)`, email))
}

func (s *pgIdentities) FindByRefreshToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return scanIdentity(s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where refresh_token = $1`, token))
}

func (s *pgIdentities) UpdateProfile(ctx context.Context, identity *Identity) error {
	// The caller's timestamp is persisted as-is so the row matches what the
	// service returns.
	res, err := s.db.ExecContext(ctx, `
		update identities
		set first_name = $2, last_name = $3, other_name = $4, phone_number = $5,
		    address = $6, gender = $7, updated_at = $8
		where id = $1
	`, identity.ID, identity.FirstName, identity.LastName, identity.OtherName,
		identity.PhoneNumber, identity.Address, string(identity.Gender), identity.UpdatedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgIdentities) UpdateRefreshToken(ctx context.Context, identityID, token string, expiry time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update identities
		set refresh_token = $2, refresh_token_expiry = $3, updated_at = now()
		where id = $1
	`, identityID, token, expiry)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgIdentities) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from identities where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgIdentities) List(ctx context.Context) ([]*Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+identityColumns+` from identities order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	return out, rows.Err()
}

// Role store -----------------------------------------------------------------

type pgRoles struct{ db *sql.DB }

func (s *pgRoles) Create(ctx context.Context, role *Role) error {
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, role.ID, role.Name, role.Description)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *pgRoles) FindByID(ctx context.Context, id string) (*Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select id, name, description, created_at, updated_at from roles where id = $1`, id))
}

func (s *pgRoles) FindByName(ctx context.Context, name string) (*Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select id, name, description, created_at, updated_at from roles where lower(name) = lower($1)`, name))
}

func (s *pgRoles) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description, created_at, updated_at from roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (s *pgRoles) Update(ctx context.Context, role *Role) error {
	res, err := s.db.ExecContext(ctx, `
		update roles
		set name = $2, description = $3, updated_at = $4
		where id = $1
	`, role.ID, role.Name, role.Description, role.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return requireRow(res)
}

func (s *pgRoles) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanRole(row interface{ Scan(...any) error }) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// Assignment store -----------------------------------------------------------

type pgAssignments struct{ db *sql.DB }

func (s *pgAssignments) Assign(ctx context.Context, identityID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into identity_roles (identity_id, role_id) values ($1, $2)`,
		identityID, roleID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return ErrConflict
			case pgErrForeignKeyViolation:
				return ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *pgAssignments) Unassign(ctx context.Context, identityID, roleID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from identity_roles where identity_id = $1 and role_id = $2`,
		identityID, roleID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgAssignments) RolesOf(ctx context.Context, identityID string) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.created_at, r.updated_at
		from roles r
		join identity_roles ir on ir.role_id = r.id
		where ir.identity_id = $1
		order by r.name
	`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Role{}
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (s *pgAssignments) CountByRole(ctx context.Context, roleID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from identity_roles where role_id = $1`, roleID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
