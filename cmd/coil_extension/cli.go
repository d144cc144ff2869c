package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/OCAP2/coil/internal/database"
	"github.com/OCAP2/coil/internal/model"

	"gorm.io/gorm"
)

const usage = `Usage:
  coil_extension summary [file.db] [sessionId...]   print engagement counts per session
  coil_extension backups                            list sqlite dumps in the addon folder
  coil_extension migratebackups                     copy sqlite dumps into postgres`

func runCLI(command string, args []string) error {
	switch command {
	case "summary":
		return summary(args)
	case "backups":
		return listBackups()
	case "migratebackups":
		return migrateBackups()
	default:
		fmt.Println(usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// openSummaryDB opens a sqlite file when the first argument names one and
// postgres otherwise. It returns the remaining arguments.
func openSummaryDB(args []string) (*gorm.DB, []string, error) {
	if len(args) > 0 && strings.HasSuffix(strings.ToLower(args[0]), ".db") {
		db, err := database.OpenSQLite(args[0], DBLogger)
		return db, args[1:], err
	}
	db, err := database.OpenPostgres(DBLogger)
	return db, args, err
}

func summary(args []string) error {
	db, args, err := openSummaryDB(args)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	var sessions []model.Session
	query := db.Order("id")
	if len(args) > 0 {
		ids := make([]uint, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", arg, err)
			}
			ids = append(ids, uint(id))
		}
		query = query.Where("id IN ?", ids)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return fmt.Errorf("error getting sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSESSION\tWORLD\tSTART\tDURATION\tEVENTS")
	for _, s := range sessions {
		counts, err := model.CountEventsByKind(db, s.ID)
		if err != nil {
			return fmt.Errorf("error counting events of session %d: %w", s.ID, err)
		}
		parts := make([]string, 0, len(counts))
		for _, c := range counts {
			parts = append(parts, fmt.Sprintf("%s=%d", c.Kind, c.Count))
		}
		duration := "running"
		if !s.EndTime.IsZero() {
			duration = s.EndTime.Sub(s.StartTime).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.World, s.StartTime.UTC().Format(time.RFC3339), duration, strings.Join(parts, " "))
	}
	return w.Flush()
}

func listBackups() error {
	paths, err := database.GetBackupDBPaths(AddonFolder)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %w", err)
	}
	if len(paths) == 0 {
		fmt.Println("No backups found in", AddonFolder)
		return nil
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

// migrateBackups copies every sqlite dump into postgres and renames each
// migrated file so it is not copied twice.
func migrateBackups() error {
	paths, err := database.GetBackupDBPaths(AddonFolder)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %w", err)
	}
	postgresDB, err := database.OpenPostgres(DBLogger)
	if err != nil {
		return fmt.Errorf("error getting postgres database: %w", err)
	}
	if err := database.Migrate(postgresDB, DBLogger); err != nil {
		return err
	}

	migrated := make([]string, 0, len(paths))
	for _, path := range paths {
		sqliteDB, err := database.OpenSQLite(path, DBLogger)
		if err != nil {
			return fmt.Errorf("error opening %s: %w", path, err)
		}
		n, err := database.CopySessions(sqliteDB, postgresDB, DBLogger)
		if sqlConn, cerr := sqliteDB.DB(); cerr == nil {
			sqlConn.Close()
		}
		if err != nil {
			return fmt.Errorf("error migrating %s: %w", path, err)
		}

		if err := os.Rename(path, path+".migrated"); err != nil {
			Logger.Error("Error renaming sqlite file", "error", err, "path", path)
		}
		Logger.Info("Migrated backup", "path", path, "sessions", n)
		migrated = append(migrated, path)
	}

	Logger.Info("Finished migrating backups", "count", len(migrated), "paths", migrated)
	return nil
}
