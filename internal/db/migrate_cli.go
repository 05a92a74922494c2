package db

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// ErrMigrateUsage is returned for an unknown migrate action or a missing or
// malformed version argument.
var ErrMigrateUsage = errors.New("invalid migrate command")

// MigrateHelp describes the migrate actions.
const MigrateHelp = `Migrate actions:
  up             apply every pending migration
  down           roll back the most recent migration
  status         print the current and latest schema versions
  to <version>   migrate up or down to version
  force <version>
                 mark the schema as version without running anything;
                 only for recovering from a dirty state
`

// RunMigrateCommand runs one migrate action against the database at dbPath
// and reports the outcome on w. The schema is left to the action: the
// database is opened without applying pending migrations.
func RunMigrateCommand(w io.Writer, dbPath string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing action", ErrMigrateUsage)
	}
	action, rest := args[0], args[1:]

	var target uint64
	switch action {
	case "up", "down", "status":
		if len(rest) != 0 {
			return fmt.Errorf("%w: %s takes no arguments", ErrMigrateUsage, action)
		}
	case "to", "force":
		if len(rest) != 1 {
			return fmt.Errorf("%w: usage: migrate %s <version>", ErrMigrateUsage, action)
		}
		v, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: version %q: %v", ErrMigrateUsage, rest[0], err)
		}
		target = v
	default:
		return fmt.Errorf("%w: unknown action %q", ErrMigrateUsage, action)
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()
	migrations := MigrationsFS()

	switch action {
	case "up":
		err = database.MigrateUp(migrations)
	case "down":
		err = database.MigrateDown(migrations)
	case "to":
		err = database.MigrateTo(migrations, uint(target))
	case "force":
		err = database.MigrateForce(migrations, int(target))
	}
	if err != nil {
		return err
	}
	return printMigrateStatus(w, database, migrations)
}

func printMigrateStatus(w io.Writer, database *DB, migrations fs.FS) error {
	current, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	latest, err := LatestMigrationVersion(migrations)
	if err != nil {
		return fmt.Errorf("read latest migration: %w", err)
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	_, err = fmt.Fprintf(w, "schema version %d of %d (%s)\n", current, latest, state)
	return err
}
