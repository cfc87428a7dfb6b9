/*
Package ports implements the Port Registry: per-tech TCP port ranges,
allocation with an explicit-conflict-on-preferred-port policy, and
release-to-quarantine-then-free recycling via time.AfterFunc. State is
persisted through pkg/store after every mutation.
*/
package ports
