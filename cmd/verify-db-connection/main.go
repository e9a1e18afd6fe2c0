package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"gift-backend/internal/config"

	_ "github.com/lib/pq"
)

// expectedColumns key columns and the minimum VARCHAR size their values need
var expectedColumns = []struct {
	table  string
	column string
	size   int64
}{
	{"consumed_nullifiers", "nullifier", 128},
	{"consumed_nullifiers", "commitment_hash", 66},
	{"gift_claims", "commitment_hash", 66},
	{"gift_audit_events", "commitment_hash", 66},
}

func main() {
	fmt.Println("🔍 Verifying database connection and column sizes...")
	fmt.Println(strings.Repeat("=", 60))

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("Only postgres is supported by this check, got %q", cfg.Database.Driver)
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	problems := 0
	for _, col := range expectedColumns {
		var size sql.NullInt64
		err := sqlDB.QueryRow(`
			SELECT character_maximum_length
			FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		`, col.table, col.column).Scan(&size)

		switch {
		case err == sql.ErrNoRows:
			fmt.Printf("❌ %s.%s does not exist (run the server once to migrate)\n", col.table, col.column)
			problems++
		case err != nil:
			log.Fatalf("Failed to query %s.%s: %v", col.table, col.column, err)
		case !size.Valid || size.Int64 < col.size:
			fmt.Printf("❌ %s.%s is VARCHAR(%d), need at least VARCHAR(%d)\n", col.table, col.column, size.Int64, col.size)
			problems++
		default:
			fmt.Printf("✅ %s.%s: VARCHAR(%d)\n", col.table, col.column, size.Int64)
		}
	}

	if problems > 0 {
		log.Fatalf("%d column(s) need attention", problems)
	}
	fmt.Println("✅ Schema looks good")
}
