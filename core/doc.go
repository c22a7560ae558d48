// Package core provides the foundational domain types, interfaces and
// contracts used by Animus. It defines the core abstractions for:
//
//   - Memories (persisted, optionally embedded records of conversation events)
//   - Knowledge items (ingested reference material and its chunked fragments)
//   - Characters (the static agent definition consumed read-only at runtime)
//   - Capability objects contributed by plugins (actions, evaluators,
//     context providers, services)
//   - The datastore adapter contract backing memory and knowledge persistence
//   - The error taxonomy shared across the runtime
//
// The package intentionally keeps implementation concerns (persistence,
// generation, orchestration) out of scope, exposing small interfaces to enable
// custom backends and extensions.
package core
