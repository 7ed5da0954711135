// migrate runs DB migrations from embedded SQL. Run with go run ./cmd/migrate.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"streamguard/internal/config"
	"streamguard/internal/db/migrate"
)

func main() {
	direction := pflag.StringP("direction", "d", "up", "migration direction: up or down")
	steps := pflag.IntP("steps", "n", 0, "number of migrations to apply; 0 applies all")
	versionOnly := pflag.Bool("version", false, "print the applied schema version and exit")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env or set DATABASE_URL")
		os.Exit(1)
	}

	if !*versionOnly {
		err := migrate.Run(cfg.DatabaseURL, *direction, *steps)
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			fmt.Println("migrate: no change")
		case err != nil:
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	version, dirty, ok, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	switch {
	case !ok:
		fmt.Println("migrate: schema is empty")
	case dirty:
		fmt.Printf("migrate: version %d (dirty)\n", version)
		os.Exit(1)
	default:
		fmt.Printf("migrate: version %d\n", version)
	}
}
