/*
Package engine is the Container Engine Adapter: a thin, stateless wrapper
over the Docker SDK client providing create/start/stop/remove/inspect,
shared-bridge-network setup, and raw log attachment for pkg/logs to
demultiplex. It holds no container state itself — callers (pkg/lifecycle)
own the project/container mapping.
*/
package engine
