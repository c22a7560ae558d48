// Package runtime hosts the agent orchestrator: the registries of plugin
// contributed capabilities (actions, evaluators, context providers, services,
// clients), the memory managers, and the message handling loop that ties
// context composition, model generation, persistence and evaluation together.
//
// An AgentRuntime moves through a strict lifecycle:
//
//	Constructed -> Initializing -> Ready -> Stopping -> Stopped
//
// Messages are only accepted while Ready. Initialization order is fixed:
// services first, then knowledge ingestion, so knowledge sources backed by a
// service (e.g. a remote store) find it running.
package runtime
