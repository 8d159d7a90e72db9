// Package postgresdb provides a PostgreSQL-based implementation of the user storage.
// The schema is managed with goose migrations applied on start.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/sitegate/internal/models"
	"github.com/patric-chuzhbe/sitegate/internal/user"
)

const uniqueViolationCode = "23505"

const userColumns = `id, legacy_id, name, email, password_hash, role, designation, photo, signature, created_at, updated_at`

// PostgresDB is a PostgreSQL-backed user storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
	driverName string
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops every table of the public schema before migrating.
// Intended for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

func withDriverName(name string) InitOption {
	return func(options *initOptions) {
		options.driverName = name
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// New connects to PostgreSQL, applies the migrations from migrationsDir
// and returns the storage.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{driverName: "pgx"}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open(options.driverName, databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		return nil, errors.Join(
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `result.Ping()` calling: %w",
				err,
			),
			database.Close(),
		)
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, errors.Join(
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				),
				database.Close(),
			)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, errors.Join(
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			),
			database.Close(),
		)
	}

	if err := goose.UpContext(ctx, result.database, migrationsDir); err != nil {
		return nil, errors.Join(
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			),
			database.Close(),
		)
	}

	return result, nil
}

// CreateUser inserts a user. Optional fields that are nil are stored as NULL.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO users (`+userColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
		usr.ID,
		toNullString(usr.LegacyID),
		usr.Name,
		usr.Email,
		toNullString(usr.Password),
		string(usr.Role),
		toNullString(usr.Designation),
		toNullString(usr.Photo),
		toNullString(usr.Signature),
		usr.CreatedAt,
		usr.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return models.ErrUserExists
		}
		return err
	}

	return nil
}

// GetUserByID fetches a user by its ID.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		userID,
	)

	return scanUser(row)
}

// GetUserByEmail fetches a user by its email.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)

	return scanUser(row)
}

// ListUsers returns every user ordered by creation time, then by ID.
func (db *PostgresDB) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []user.User{}
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *usr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetNumberOfUsers returns the total number of stored users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	var count int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

func scanUser(row rowScanner) (*user.User, error) {
	var usr user.User
	var role string
	var legacyID, password, designation, photo, signature sql.NullString
	err := row.Scan(
		&usr.ID,
		&legacyID,
		&usr.Name,
		&usr.Email,
		&password,
		&role,
		&designation,
		&photo,
		&signature,
		&usr.CreatedAt,
		&usr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	usr.Role = user.Role(role)
	usr.LegacyID = fromNullString(legacyID)
	usr.Password = fromNullString(password)
	usr.Designation = fromNullString(designation)
	usr.Photo = fromNullString(photo)
	usr.Signature = fromNullString(signature)

	return &usr, nil
}

func toNullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
