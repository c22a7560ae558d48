// Package datastore provides reference implementations of the
// core.DatastoreAdapter contract: a process-local in-memory adapter suitable
// for tests and local development, and similarity helpers shared with the
// durable adapters. Production deployments typically supply a vector-capable
// backend; the SQLite adapter in the sqlite subpackage is the durable
// reference.
package datastore
