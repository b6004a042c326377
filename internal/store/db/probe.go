package db

import (
	"context"
	"database/sql"
	"fmt"
)

// VersionProbe reads PRAGMA data_version on a pinned connection.
//
// The value changes whenever another connection, in this process or
// another one, commits to the database. Comparing successive readings
// detects external writes without scanning any table.
type VersionProbe struct {
	conn *sql.Conn
}

// NewVersionProbe pins a connection from the pool for version reads.
// The caller must Close the probe to return the connection.
func (db *DB) NewVersionProbe(ctx context.Context) (*VersionProbe, error) {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pin connection: %w", err)
	}
	return &VersionProbe{conn: conn}, nil
}

// DataVersion returns the current data_version for the pinned connection.
func (p *VersionProbe) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := p.conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, classify(fmt.Errorf("failed to read data_version: %w", err))
	}
	return v, nil
}

// Close releases the pinned connection.
func (p *VersionProbe) Close() error {
	return p.conn.Close()
}
