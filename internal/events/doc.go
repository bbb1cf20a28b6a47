// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose coupling
// between components in the system. The job engine emits lifecycle events without
// knowing which handlers will process them, enabling better separation of concerns
// and reducing circular dependencies (the dashboard alert feed and metric counters
// both subscribe to the same stream).
//
// The primary components are:
// - JobEvent: Represents a job lifecycle transition (completed, failed, stalled, retried)
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
