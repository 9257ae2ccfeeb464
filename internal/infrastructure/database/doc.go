// Package database provides the SQLite store behind the supply history.
//
// It owns the connection (WAL mode, busy timeout, single writer) and the
// additive schema migrations embedded by the migrations package.
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql.
// New columns must be nullable or carry a default.
package database
