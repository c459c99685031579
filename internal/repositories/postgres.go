package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidfriends/friends/internal/db"
	"github.com/vidfriends/friends/internal/models"
)

// pgInvalidText is raised when a malformed identifier reaches a UUID column.
const pgInvalidText = "22P02"

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account record.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (id, username, email, created_at)
        VALUES ($1, $2, $3, $4)
    `, account.ID, account.Username, account.Email, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// FindByID fetches an account by its identifier.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByName fetches an account by its username, ignoring case.
func (r *PostgresAccountRepository) FindByName(ctx context.Context, username string) (models.Account, error) {
	return r.findOne(ctx, "lower(username) = lower($1)", strings.TrimSpace(username))
}

// PublicProfile returns the publicly visible fields for an account.
func (r *PostgresAccountRepository) PublicProfile(ctx context.Context, id string) (models.Profile, error) {
	account, err := r.FindByID(ctx, id)
	if err != nil {
		return models.Profile{}, err
	}
	return models.Profile{AccountID: account.ID, Name: account.Username, Contact: account.Email}, nil
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, predicate string, arg string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, username, email, created_at
        FROM accounts
        WHERE `+predicate, arg)

	var account models.Account
	if err := row.Scan(&account.ID, &account.Username, &account.Email, &account.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgInvalidText {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select account: %w", err)
	}

	return account, nil
}

// PostgresRelationshipStore provides PostgreSQL-backed persistence for relationship records.
type PostgresRelationshipStore struct {
	pool db.Pool
}

// NewPostgresRelationshipStore constructs a relationship store backed by PostgreSQL.
func NewPostgresRelationshipStore(pool db.Pool) *PostgresRelationshipStore {
	return &PostgresRelationshipStore{pool: pool}
}

const relationshipColumns = `id, from_account, to_account, status, created_at, responded_at`

// CreatePending inserts a pending record unless the pair is already linked in
// either direction. Concurrent inserts for the same pair are rejected by the
// pair's unique indexes.
func (s *PostgresRelationshipStore) CreatePending(ctx context.Context, rel models.Relationship) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        INSERT INTO relationships (id, from_account, to_account, status, created_at)
        SELECT $1::UUID, $2::UUID, $3::UUID, 'pending', $4::TIMESTAMPTZ
        WHERE NOT EXISTS (
            SELECT 1 FROM relationships
            WHERE (from_account = $2 AND to_account = $3)
               OR (from_account = $3 AND to_account = $2)
        )
    `, rel.ID, rel.From, rel.To, rel.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ErrConflict
			case pgForeignKeyViolation:
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert relationship: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	return nil
}

// Find loads a relationship record by id.
func (s *PostgresRelationshipStore) Find(ctx context.Context, id string) (models.Relationship, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+relationshipColumns+` FROM relationships WHERE id = $1`, id)
	rel, err := scanRelationship(row)
	if err != nil {
		return models.Relationship{}, mapRowError("select relationship", err)
	}
	return rel, nil
}

// Accept flips the record addressed to addressee and upserts the reciprocal
// accepted record inside a single transaction. The returned flag is true only
// when the record was pending before the call.
func (s *PostgresRelationshipStore) Accept(ctx context.Context, id, addressee, reciprocalID string, at time.Time) (models.Relationship, bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Relationship{}, false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		accepted     models.Relationship
		transitioned bool
	)
	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var prior string
		if err := tx.QueryRow(ctx, `
            SELECT status FROM relationships
            WHERE id = $1 AND to_account = $2
            FOR UPDATE
        `, id, addressee).Scan(&prior); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
            UPDATE relationships
            SET status = 'accepted', responded_at = COALESCE(responded_at, $3)
            WHERE id = $1 AND to_account = $2
            RETURNING `+relationshipColumns, id, addressee, at)

		rel, err := scanRelationship(row)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO relationships (id, from_account, to_account, status, created_at, responded_at)
            VALUES ($1, $2, $3, 'accepted', $4, $4)
            ON CONFLICT (from_account, to_account)
            DO UPDATE SET status = 'accepted', responded_at = COALESCE(relationships.responded_at, EXCLUDED.responded_at)
        `, reciprocalID, rel.To, rel.From, at); err != nil {
			return fmt.Errorf("upsert reciprocal relationship: %w", err)
		}

		accepted = rel
		transitioned = models.RelationshipStatus(prior) == models.StatusPending
		return nil
	})
	if err != nil {
		return models.Relationship{}, false, mapRowError("accept relationship", err)
	}

	return accepted, transitioned, nil
}

// DeletePending removes a pending record owned by party on the requested side.
func (s *PostgresRelationshipStore) DeletePending(ctx context.Context, id, party string, asSender bool) (models.Relationship, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	column := "to_account"
	if asSender {
		column = "from_account"
	}

	row := conn.QueryRow(ctx, `
        DELETE FROM relationships
        WHERE id = $1 AND status = 'pending' AND `+column+` = $2
        RETURNING `+relationshipColumns, id, party)

	rel, err := scanRelationship(row)
	if err != nil {
		return models.Relationship{}, mapRowError("delete pending relationship", err)
	}
	return rel, nil
}

// DeleteAccepted removes both directions of an accepted friendship in one statement.
func (s *PostgresRelationshipStore) DeleteAccepted(ctx context.Context, a, b string) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM relationships
        WHERE status = 'accepted'
          AND ((from_account = $1 AND to_account = $2)
            OR (from_account = $2 AND to_account = $1))
    `, a, b)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgInvalidText {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("delete accepted relationships: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListForAccount returns relationship records where the account is the sender or addressee.
func (s *PostgresRelationshipStore) ListForAccount(ctx context.Context, accountID string) ([]models.Relationship, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+relationshipColumns+`
        FROM relationships
        WHERE from_account = $1 OR to_account = $1
        ORDER BY created_at DESC
    `, accountID)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var out []models.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}

	return out, nil
}

func scanRelationship(row pgx.Row) (models.Relationship, error) {
	var (
		rel         models.Relationship
		status      string
		respondedAt sql.NullTime
	)

	if err := row.Scan(&rel.ID, &rel.From, &rel.To, &status, &rel.CreatedAt, &respondedAt); err != nil {
		return models.Relationship{}, err
	}

	rel.Status = models.RelationshipStatus(status)
	rel.CreatedAt = rel.CreatedAt.UTC()
	if respondedAt.Valid {
		t := respondedAt.Time.UTC()
		rel.RespondedAt = &t
	}

	return rel, nil
}

func mapRowError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidText {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ AccountRepository = (*PostgresAccountRepository)(nil)
var _ RelationshipStore = (*PostgresRelationshipStore)(nil)
