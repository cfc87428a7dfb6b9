/*
Package registry implements the Project Registry: CRUD over Project
records, composing the Workspace Scanner and Port Registry in Register,
and enforcing merge-patch semantics with immutable-field protection in
Update. All mutations persist through pkg/store under the registry's
write lock; reads are served from a fresh snapshot.
*/
package registry
