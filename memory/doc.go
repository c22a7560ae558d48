// Package memory binds one memory table (messages, facts, documents) to the
// shared datastore and the embedder. Managers are cheap handles; the runtime
// creates one per table and they all share the same adapter underneath.
package memory
