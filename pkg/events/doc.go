/*
Package events implements the subscription bus: a LogBroker and a
HealthBroker, each fanning out to per-consumer bounded queues without ever
blocking the publisher. A full subscriber queue drops its oldest entry and
increments that subscription's drop counter rather than growing unbounded
or stalling the producer.
*/
package events
