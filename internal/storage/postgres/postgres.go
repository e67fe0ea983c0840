package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tripchat/internal/models"
	"tripchat/internal/storage"
	"tripchat/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	if err := runMigrations(ctx, dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// runMigrations applies the embedded schema through goose over a short-lived
// database/sql connection; the pgxpool is used for everything else.
func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

func (r *PostgresRepo) SaveUser(ctx context.Context, id, name, email string, passHash []byte) (string, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`

	var savedID string

	err := r.pool.QueryRow(ctx, query, id, name, email, passHash).Scan(&savedID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", storage.ErrUserExists
		}

		return "", fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return savedID, nil
}

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT id, name, email, password_hash
		FROM users
		WHERE email = $1;
	`

	row := r.pool.QueryRow(ctx, query, email)

	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PassHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	query := `
		SELECT id, name, email, password_hash
		FROM users
		WHERE id = $1;
	`

	row := r.pool.QueryRow(ctx, query, id)

	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PassHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, err
}

// SaveGroup persists a group as a single-row document: the member list is a
// text array, the message log a jsonb array.
func (r *PostgresRepo) SaveGroup(ctx context.Context, group models.Group) error {
	const op = "storage.postgres.SaveGroup"

	query := `
		INSERT INTO groups (id, name, members, messages)
		VALUES ($1, $2, $3, '[]'::jsonb);
	`

	_, err := r.pool.Exec(ctx, query, group.ID, group.Name, group.Members)
	if err != nil {
		return fmt.Errorf("%s: failed to save group: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) GroupsByMember(ctx context.Context, email string) ([]models.Group, error) {
	const op = "storage.postgres.GroupsByMember"

	query := `
		SELECT id, name, members, messages
		FROM groups
		WHERE $1 = ANY(members)
		ORDER BY created_at;
	`

	rows, err := r.pool.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	groups := []models.Group{}

	for rows.Next() {
		var (
			g   models.Group
			raw []byte
		)

		if err := rows.Scan(&g.ID, &g.Name, &g.Members, &raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if err := json.Unmarshal(raw, &g.Messages); err != nil {
			return nil, fmt.Errorf("%s: failed to decode message log: %w", op, err)
		}

		groups = append(groups, g)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return groups, nil
}

// AppendMessage appends msg to the group's message log in one guarded UPDATE,
// so the read-modify-write is atomic at the row level. Zero rows affected is
// disambiguated into ErrGroupNotFound or ErrNotAMember.
func (r *PostgresRepo) AppendMessage(ctx context.Context, groupID string, msg models.Message) error {
	const op = "storage.postgres.AppendMessage"

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: failed to encode message: %w", op, err)
	}

	query := `
		UPDATE groups
		SET messages = messages || $2::jsonb
		WHERE id = $1 AND $3 = ANY(members);
	`

	tag, err := r.pool.Exec(ctx, query, groupID, raw, msg.Sender)
	if err != nil {
		return fmt.Errorf("%s: failed to append message: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM groups WHERE id = $1)`, groupID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if !exists {
			return storage.ErrGroupNotFound
		}

		return storage.ErrNotAMember
	}

	return nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}
