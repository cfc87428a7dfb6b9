/*
Package logs is the Log Collector & Streamer: one attach-goroutine per
container, demultiplexing the engine's 8-byte-framed stdout/stderr stream
(falling back to raw-text scanning when the header doesn't parse),
classifying and buffering entries into a fixed 10,000-entry ring, and
publishing them to pkg/events.LogBroker for subscribers.
*/
package logs
