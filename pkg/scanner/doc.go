/*
Package scanner implements the Workspace Scanner / Tech Detector: a
single, non-recursive pass over a workspace directory's top-level
entries, scored against a declarative set of Patterns (files 1.0x, dirs
0.5x, extensions 0.3x, package.json dependency keys 1.0x), capped at 100
and sorted into a ranked types.TechDetection list. An unmatched workspace
is still valid — it yields primary_tech "unknown" and a wide default port
range.
*/
package scanner
