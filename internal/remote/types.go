// Package remote is the single entry point to remote collection storage. It
// re-exports the backend abstractions and wraps them in an Adapter that speaks
// in whole collections.
package remote

import (
	"voltschool/internal/remote/core"
)

type (
	// Driver identifies a remote backend driver.
	Driver = core.Driver
	// Backend is the interface implemented by remote row stores.
	Backend = core.Backend
)

const (
	// DriverPostgres is the hosted Postgres driver.
	DriverPostgres = core.DriverPostgres
	// DriverSQLite is the embedded sqlite driver.
	DriverSQLite = core.DriverSQLite
	// DriverBadger is the embedded badger driver.
	DriverBadger = core.DriverBadger
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
)

// LatestRecordID is the fixed row id each collection is stored under.
const LatestRecordID = core.LatestRecordID

// ErrNotFound indicates the collection row does not exist.
var ErrNotFound = core.ErrNotFound
