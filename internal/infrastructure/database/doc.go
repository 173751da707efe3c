// Package database provides SQLite connectivity for fedimint-http.
//
// It manages:
//   - Connection setup with WAL mode and busy timeout
//   - Schema migrations read from an fs.FS (see the migrations package)
//   - Health checks for the /health endpoint
//
// The gateway stores federation membership here. Client state for each
// federation belongs to the federation backend, not to this database.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database
