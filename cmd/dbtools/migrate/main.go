// cmd/dbtools/migrate/main.go
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/config"
	"github.com/percussion/percussioncms-sub111/internal/db"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the YAML configuration file")
		dbPath     = flag.String("db", "", "Path to SQLite database (overrides -config)")
		command    = flag.String("command", "", "Command to run (up, down, version, steps, force)")
		arg        = flag.String("n", "", "Step count for steps, version for force")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if (*dbPath == "" && *configPath == "") || *command == "" {
		flag.Usage()
		os.Exit(1)
	}

	path := *dbPath
	if path == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		path = cfg.Database.Filename
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database directory")
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_fk=1")
	if err != nil {
		log.Fatal().Err(err).Str("db", path).Msg("Failed to open database")
	}

	m, err := db.NewMigrator(sqlDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration init failed")
	}
	defer m.Close()

	if err := runCommand(m, *command, *arg); err != nil {
		log.Fatal().Err(err).Str("command", *command).Msg("Migration failed")
	}
	log.Info().Str("command", *command).Str("db", path).Msg("Migration command completed")
}

func runCommand(m *migrate.Migrate, command, arg string) error {
	switch command {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Down())
	case "steps":
		n, err := strconv.Atoi(arg)
		if err != nil || n == 0 {
			return fmt.Errorf("steps needs a non-zero -n")
		}
		return ignoreNoChange(m.Steps(n))
	case "force":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("force needs a version in -n")
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("Version: none")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Version: %d, Dirty: %v\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
