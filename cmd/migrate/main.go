package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/repository/postgres"
	"github.com/joho/godotenv"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [-steps n] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fail("failed to load config: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		fail("migrations are embedded for postgres only; database.driver is %q", cfg.Database.Driver)
	}

	dsn := cfg.Database.DSN()
	fmt.Printf("Using database at %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	switch command {
	case "up":
		if err := postgres.RunMigrations(dsn); err != nil {
			fail("%v", err)
		}
	case "down":
		if err := postgres.RollbackMigrations(dsn, *steps); err != nil {
			fail("%v", err)
		}
		fmt.Printf("Rolled back %d migration(s)\n", *steps)
	case "version":
		version, dirty, err := postgres.MigrationVersion(dsn)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
