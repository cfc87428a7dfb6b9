/*
Package lifecycle implements the Container Lifecycle Manager: start, stop,
restart, and status for a registered project's container, enforcing an
at-most-one-in-flight-operation-per-project lock and wiring the Log
Collector and Health Monitor in and out as the container comes up and
goes down. It also implements health.Observer to drive the
cooldown-bounded, drop-not-queue auto-restart policy for unhealthy
containers.
*/
package lifecycle
