/*
Package log provides structured logging for debughostd using zerolog.

It wraps zerolog to give every subsystem a component-scoped child logger
(WithComponent) on top of a single process-wide Logger initialized once via
Init. Callers add request-scoped fields (project_id, container_id, tech, ...)
with zerolog's own With().Str(...) chaining on that child logger. Output is
either JSON (for production/systemd capture) or a human console writer (for
interactive use).

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})
	reg := log.WithComponent("registry")
	reg.Info().Str("project_id", id).Msg("project registered")
*/
package log
