// Package core defines the row-store abstraction shared by remote backends.
// Every collection maps to one table (or key space) whose rows are addressed
// by id and carry a single JSON document.
package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Driver identifies a concrete remote backend implementation.
type Driver string

const (
	// DriverPostgres represents the hosted Postgres database.
	DriverPostgres Driver = "postgres"
	// DriverSQLite represents an embedded sqlite file (dev).
	DriverSQLite Driver = "sqlite"
	// DriverBadger represents an embedded badger key-value directory.
	DriverBadger Driver = "badger"
	// DriverS3 represents an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory represents an in-memory map used in tests.
	DriverMemory Driver = "memory"
)

// LatestRecordID is the fixed row id under which a collection is stored.
const LatestRecordID = "latest"

// Backend stores opaque JSON documents keyed by (collection, id).
type Backend interface {
	// Upsert overwrites the document stored at (collection, id).
	Upsert(ctx context.Context, collection, id string, data []byte) error
	// Select returns the stored document or an error wrapping ErrNotFound.
	Select(ctx context.Context, collection, id string) ([]byte, error)
	// Delete removes the document. Deleting a missing row is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Close releases the connection.
	Close() error
	Driver() Driver
}

// ErrNotFound is returned by Select when the row is absent.
var ErrNotFound = errors.New("remote: row not found")

var tableName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateCollection guards identifiers interpolated into DDL and queries.
func ValidateCollection(collection string) error {
	if !tableName.MatchString(collection) {
		return fmt.Errorf("remote: invalid collection name %q", collection)
	}
	return nil
}
