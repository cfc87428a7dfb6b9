/*
Package metrics provides Prometheus metrics collection and exposition for
debughostd.

Metrics are grouped into project/port gauges (a Collector snapshots the
Project Registry and Port Registry on a 15s tick, rather than updating on
every mutation), restart/drop/health-check counters (incremented inline
by the packages that observe the event), and an operation-duration
histogram keyed by operation name. All are registered against the
default Prometheus registry at package init and served by Handler()
alongside the liveness/readiness/health endpoints this package also
exposes.
*/
package metrics
