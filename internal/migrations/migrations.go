package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"whatado/event-service/pkg/db"
)

//go:embed sql/*.sql
var files embed.FS

// Runner applies the embedded schema migrations
type Runner struct {
	m *migrate.Migrate
}

// NewRunner binds the migrations to an open connection. The connection's DSN
// must allow multi statements.
func NewRunner(conn *sql.DB) (*Runner, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}
	driver, err := mysql.WithInstance(conn, &mysql.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return &Runner{m: m}, nil
}

// Up applies every pending migration
func (r *Runner) Up() error {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Down rolls back steps migrations
func (r *Runner) Down(steps int) error {
	if err := r.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// Version reports the applied version and whether the last run failed midway
func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Versions lists the migration versions embedded in the binary
func Versions() ([]uint, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return nil, err
	}
	out := []uint{v}
	for {
		next, err := src.Next(v)
		if err != nil {
			break
		}
		out = append(out, next)
		v = next
	}
	return out, nil
}

// Schema lists the columns the repositories depend on, checked at startup
var Schema = []db.TableSchema{
	{
		Name: "events",
		Columns: []db.ColumnType{
			{Name: "id", DataType: "bigint"},
			{Name: "creator_id", DataType: "bigint"},
			{Name: "group_id", DataType: "bigint", Nullable: true},
			{Name: "picture_url", DataType: "varchar", Nullable: true},
			{Name: "time", DataType: "datetime"},
			{Name: "coordinates", DataType: "point"},
			{Name: "privacy", DataType: "enum"},
			{Name: "filter_min_age", DataType: "int"},
			{Name: "filter_max_age", DataType: "int"},
			{Name: "filter_gender", DataType: "enum"},
			{Name: "filter_radius", DataType: "double"},
			{Name: "flags", DataType: "int"},
		},
	},
	{
		Name: "wannagos",
		Columns: []db.ColumnType{
			{Name: "id", DataType: "bigint"},
			{Name: "event_id", DataType: "bigint"},
			{Name: "user_id", DataType: "bigint"},
			{Name: "declined", DataType: "tinyint"},
		},
	},
	{
		Name: "event_invites",
		Columns: []db.ColumnType{
			{Name: "event_id", DataType: "bigint"},
			{Name: "user_id", DataType: "bigint"},
		},
	},
	{
		Name: "users",
		Columns: []db.ColumnType{
			{Name: "id", DataType: "bigint"},
			{Name: "username", DataType: "varchar"},
			{Name: "birthday", DataType: "date", Nullable: true},
			{Name: "gender", DataType: "enum", Nullable: true},
			{Name: "location", DataType: "point", Nullable: true},
		},
	},
}
