// Package dbprovision owns the per-session Postgres database: creating it
// on first use, and the read surface a session's database panel queries
// against (schema, table data, ad-hoc SELECTs). Every connection is opened
// for a single operation and closed before returning; nothing is pooled
// across requests.
package dbprovision

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
	"github.com/filopedraz/kosuke-core-sub005/internal/config"
)

const (
	errInvalidCatalogName = "3D000" // database does not exist
	errDuplicateDatabase  = "42P04" // CREATE DATABASE race
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Provisioner connects to the admin database to create per-session
// databases on demand, and to each session database for its own read
// surface.
type Provisioner struct {
	AdminDSN string
	cfg      *config.Config
}

// NewProvisioner returns a Provisioner that creates databases via adminDSN
// (expected to target Postgres's `postgres` maintenance database) and names
// them per cfg's naming rules.
func NewProvisioner(adminDSN string, cfg *config.Config) *Provisioner {
	return &Provisioner{AdminDSN: adminDSN, cfg: cfg}
}

// GetConnection returns a live connection to the session database for
// (project_id, session_id), creating the database first if it doesn't yet
// exist. The caller owns the returned connection and must close it.
func (p *Provisioner) GetConnection(ctx context.Context, projectID, sessionID string) (*pgx.Conn, string, error) {
	dbName, ok := p.cfg.DBName(projectID, sessionID)
	if !ok {
		return nil, "", apperr.New(apperr.BadRequest, "derived session database name is invalid")
	}

	sessionDSN, err := p.dsnFor(dbName)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.Internal, err, "build session database dsn")
	}

	conn, err := pgx.Connect(ctx, sessionDSN)
	if err == nil {
		return conn, dbName, nil
	}
	if !isMissingDatabase(err) {
		return nil, "", apperr.Wrap(apperr.EngineUnavailable, err, "connect to session database").WithResource(dbName)
	}

	if err := p.createDatabase(ctx, dbName); err != nil {
		return nil, "", err
	}

	conn, err = pgx.Connect(ctx, sessionDSN)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.EngineUnavailable, err, "connect to newly created session database").WithResource(dbName)
	}
	return conn, dbName, nil
}

func (p *Provisioner) createDatabase(ctx context.Context, dbName string) error {
	admin, err := pgx.Connect(ctx, p.AdminDSN)
	if err != nil {
		return apperr.Wrap(apperr.EngineUnavailable, err, "connect to admin database")
	}
	defer admin.Close(ctx)

	_, err = admin.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %q`, dbName))
	if err != nil && !isDuplicateDatabase(err) {
		return apperr.Wrap(apperr.Internal, err, "create session database").WithResource(dbName)
	}
	return nil
}

// dsnFor rewrites AdminDSN's path to point at dbName, preserving every other
// connection parameter (host, credentials, sslmode, ...).
func (p *Provisioner) dsnFor(dbName string) (string, error) {
	u, err := url.Parse(p.AdminDSN)
	if err != nil {
		return "", err
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

func isMissingDatabase(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == errInvalidCatalogName
}

func isDuplicateDatabase(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == errDuplicateDatabase {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// validateTableName checks table against the identifier pattern used for
// get_table_data, rejecting anything that isn't a bare identifier before it
// is interpolated into a query.
func validateTableName(table string) error {
	if !tableNamePattern.MatchString(table) {
		return apperr.New(apperr.BadRequest, "invalid table name").WithResource(table)
	}
	return nil
}
