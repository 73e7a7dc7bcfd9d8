package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/proctorly/proctor-backend/internal/config"
)

func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.Parse()

	cfg := config.Load()
	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationDir), dbURL)
	if err != nil {
		log.Fatalf("Migration failed to initialize: %v", err)
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	switch args[0] {
	case "up":
		if err := run(m.Up, steps(args), m.Steps); err != nil {
			log.Fatalf("Up failed: %v", err)
		}
		fmt.Println("Schema migrated up")
	case "down":
		if err := run(m.Down, -steps(args), m.Steps); err != nil {
			log.Fatalf("Down failed: %v", err)
		}
		fmt.Println("Schema migrated down")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("Version failed: %v", err)
		}
		fmt.Printf("Schema at version %d (dirty=%t)\n", version, dirty)
	case "force":
		if len(args) < 2 {
			log.Fatal("force requires a version argument")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version: %v", err)
		}
		if err := m.Force(v); err != nil {
			log.Fatalf("Force failed: %v", err)
		}
		fmt.Printf("Forced schema version to %d\n", v)
	default:
		printUsage()
	}
}

// run applies all pending migrations, or exactly n of them when a step
// count was given on the command line.
func run(all func() error, n int, stepped func(int) error) error {
	var err error
	if n == 0 {
		err = all()
	} else {
		err = stepped(n)
	}
	if err == migrate.ErrNoChange {
		return nil
	}
	return err
}

// steps parses an optional step count following the command. Zero means
// "all the way".
func steps(args []string) int {
	if len(args) < 2 {
		return 0
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		log.Fatalf("Invalid step count %q", args[1])
	}
	return n
}

func printUsage() {
	fmt.Println("Usage: proctor-migrate [flags] <command>")
	fmt.Println("Commands:")
	fmt.Println("  up [n]            apply all (or n) pending migrations")
	fmt.Println("  down [n]          roll back all (or n) applied migrations")
	fmt.Println("  version           print the current schema version")
	fmt.Println("  force <version>   set the schema version without running migrations")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
