/*
Package types defines the core data structures shared across debughostd:
Project, PortAllocation, TechDetection, LogEntry, HealthSnapshot, and the
TechTemplate table that drives container creation per tech stack.

Enumerations (ProjectStatus, PortStatus, LogLevel, ...) are typed strings,
matching how they round-trip through the JSON documents in pkg/store.
Optional fields use pointers (e.g. Project.StartedAt) so a zero value and
"never happened" are distinguishable in persisted JSON.
*/
package types
