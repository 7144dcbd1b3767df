package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrAccountNotFound is returned when no live account matches a lookup.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrConflict is returned when a uniqueness invariant (phone number,
	// phone number id, webhook token) would be violated.
	ErrConflict = errors.New("accounts: account already exists")
)

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists WhatsApp accounts in Postgres. Soft deletes: every query
// filters on deleted_at IS NULL.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

const accountColumns = `
	id, phone_number, phone_number_id, name, business_id, api_token,
	webhook_token, webhook_verify_token, team_id, created_by_user_id,
	user_id, ownership_type, sender_kind, sender_id, is_default, meta,
	created_at, updated_at, deleted_at
`

// Create inserts a new account. Uniqueness violations surface as ErrConflict.
func (s *Store) Create(ctx context.Context, acct *Account) error {
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	if acct.Meta == nil {
		acct.Meta = NewMeta(nil)
	}
	metaJSON, err := json.Marshal(acct.Meta)
	if err != nil {
		return fmt.Errorf("accounts: marshal meta: %w", err)
	}
	query := `
		INSERT INTO whatsapp_accounts (
			id, phone_number, phone_number_id, name, business_id, api_token,
			webhook_token, webhook_verify_token, team_id, created_by_user_id,
			user_id, ownership_type, sender_kind, sender_id, is_default, meta
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at
	`
	err = s.pool.QueryRow(ctx, query,
		acct.ID, acct.PhoneNumber, acct.PhoneNumberID, nullable(acct.Name),
		nullable(acct.BusinessID), nullable(acct.APIToken), acct.WebhookToken,
		acct.WebhookVerifyToken, acct.TeamID, nullable(acct.CreatedByUserID),
		nullable(acct.UserID), string(acct.OwnershipType),
		nullable(acct.SenderKind), nullable(acct.SenderID), acct.IsDefault,
		metaJSON,
	).Scan(&acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
		return fmt.Errorf("accounts: create account: %w", err)
	}
	return nil
}

// FindByID returns one live account by id.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM whatsapp_accounts WHERE id = $1 AND deleted_at IS NULL`
	return s.scanOne(s.pool.QueryRow(ctx, query, id))
}

// FindByPhoneNumberID returns the live account owning a provider phone number id.
func (s *Store) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM whatsapp_accounts WHERE phone_number_id = $1 AND deleted_at IS NULL`
	return s.scanOne(s.pool.QueryRow(ctx, query, phoneNumberID))
}

// FindByBusinessID returns every live account registered under a business.
// A business account can carry many phone numbers, so this is a set.
func (s *Store) FindByBusinessID(ctx context.Context, businessID string) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM whatsapp_accounts WHERE business_id = $1 AND deleted_at IS NULL ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("accounts: find by business id: %w", err)
	}
	defer rows.Close()
	return s.scanMany(rows)
}

// ListByTeam returns every live account owned by a team.
func (s *Store) ListByTeam(ctx context.Context, teamID string) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM whatsapp_accounts WHERE team_id = $1 AND deleted_at IS NULL ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("accounts: list by team: %w", err)
	}
	defer rows.Close()
	return s.scanMany(rows)
}

// UpdateParams are the mutable account fields: name and ownership only.
type UpdateParams struct {
	Name          *string
	OwnershipType *OwnershipType
	UserID        *string
	IsDefault     *bool
}

// Update applies name/ownership changes to a live account.
func (s *Store) Update(ctx context.Context, id uuid.UUID, params UpdateParams) error {
	query := `
		UPDATE whatsapp_accounts
		SET name = COALESCE($2, name),
			ownership_type = COALESCE($3, ownership_type),
			user_id = COALESCE($4, user_id),
			is_default = COALESCE($5, is_default),
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	var ownership *string
	if params.OwnershipType != nil {
		v := string(*params.OwnershipType)
		ownership = &v
	}
	tag, err := s.pool.Exec(ctx, query, id, params.Name, ownership, params.UserID, params.IsDefault)
	if err != nil {
		return fmt.Errorf("accounts: update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Tombstone soft-deletes an account. The row stays recoverable.
func (s *Store) Tombstone(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE whatsapp_accounts SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("accounts: tombstone account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *Store) scanOne(row pgx.Row) (*Account, error) {
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("accounts: scan account: %w", err)
	}
	return acct, nil
}

func (s *Store) scanMany(rows pgx.Rows) ([]Account, error) {
	var out []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("accounts: scan account row: %w", err)
		}
		out = append(out, *acct)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		acct      Account
		name      *string
		business  *string
		token     *string
		createdBy *string
		userID    *string
		sKind     *string
		sID       *string
		ownership string
		metaJSON  []byte
		deletedAt *time.Time
	)
	err := row.Scan(
		&acct.ID, &acct.PhoneNumber, &acct.PhoneNumberID, &name, &business,
		&token, &acct.WebhookToken, &acct.WebhookVerifyToken, &acct.TeamID,
		&createdBy, &userID, &ownership, &sKind, &sID, &acct.IsDefault,
		&metaJSON, &acct.CreatedAt, &acct.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	acct.Name = deref(name)
	acct.BusinessID = deref(business)
	acct.APIToken = deref(token)
	acct.CreatedByUserID = deref(createdBy)
	acct.UserID = deref(userID)
	acct.OwnershipType = OwnershipType(ownership)
	acct.SenderKind = deref(sKind)
	acct.SenderID = deref(sID)
	acct.DeletedAt = deletedAt
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &acct.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	return &acct, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
