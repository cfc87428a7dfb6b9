// Package engine adapts debughostd's container lifecycle onto the real
// Docker Engine API via the official SDK client. Client construction
// (host/TLS from env + API version negotiation) is grounded on the pack's own
// socket-detection/client setup in
// jesseduffield-lazydocker/pkg/commands/docker.go and socket_detection_common.go;
// the per-operation method shapes (Stop/Remove/Inspect) follow
// jesseduffield-lazydocker/pkg/commands/container.go, generalized from a
// TUI-bound *Container receiver into a stateless Engine over container IDs.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cuemby/debughostd/pkg/apierr"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"
)

// NetworkName and NetworkSubnet define the shared bridge every managed
// container is attached to, so projects can reach each other by container
// name without publishing every port to the host.
const (
	NetworkName    = "debug-host-network"
	NetworkSubnet  = "172.28.0.0/16"
	NetworkGateway = "172.28.0.1"
	NetworkLabel   = "debug-host"
)

// Engine wraps a docker client.Client with the narrow surface debughostd's
// lifecycle manager needs.
type Engine struct {
	log    zerolog.Logger
	client *client.Client
}

// New builds an Engine from the ambient Docker environment (DOCKER_HOST,
// TLS vars, etc.), negotiating the API version against the daemon rather
// than pinning one, matching the pack's socket_detection_common.go fallback.
// socketOverride, if non-empty, takes precedence over DOCKER_HOST — it is
// pkg/config's EngineSocket knob, for workstations running a non-default
// Docker context (Colima, Rancher Desktop, a remote Lima VM).
func New(log zerolog.Logger, socketOverride string) (*Engine, error) {
	// Host and TLS settings come from the environment, but DOCKER_API_VERSION
	// is deliberately not read (client.FromEnv would pin it and disable
	// negotiation).
	opts := []client.Opt{client.WithHostFromEnv(), client.WithTLSClientConfigFromEnv(), client.WithAPIVersionNegotiation()}
	if socketOverride != "" {
		opts = append(opts, client.WithHost(socketOverride))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindEngine, apierr.CodeImageUnavailable, "failed to construct docker client", err)
	}
	return &Engine{log: log, client: cli}, nil
}

// Close releases the underlying client's transport.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Spec describes the container debughostd wants running for a project.
type Spec struct {
	Name    string
	Image   string
	Env     map[string]string
	Ports   map[int]int // containerPort -> hostPort
	Labels  map[string]string
	Mounts  []Mount
	WorkDir string
	Cmd     []string
}

// Mount is a host-bind mount into the container.
type Mount struct {
	Source string
	Target string
}

// EnsureNetwork creates the shared bridge network if it doesn't already
// exist, and fails with a conflict if an existing network by that name has
// a different subnet (spec's NetworkConflict case) rather than silently
// reusing a mismatched network.
func (e *Engine) EnsureNetwork(ctx context.Context) (string, error) {
	nets, err := e.client.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", NetworkName)),
	})
	if err != nil {
		return "", apierr.Wrap(apierr.KindEngine, "", "failed to list networks", err)
	}

	for _, n := range nets {
		if n.Name != NetworkName {
			continue
		}
		for _, cfg := range n.IPAM.Config {
			if cfg.Subnet != "" && cfg.Subnet != NetworkSubnet {
				return "", apierr.New(apierr.KindConflict, apierr.CodeNetworkConflict,
					fmt.Sprintf("existing network %q uses subnet %s, expected %s", NetworkName, cfg.Subnet, NetworkSubnet))
			}
		}
		return n.ID, nil
	}

	resp, err := e.client.NetworkCreate(ctx, NetworkName, network.CreateOptions{
		Driver: "bridge",
		IPAM: &network.IPAM{
			Config: []network.IPAMConfig{{Subnet: NetworkSubnet, Gateway: NetworkGateway}},
		},
		Labels: map[string]string{NetworkLabel: "true"},
	})
	if err != nil {
		return "", apierr.Wrap(apierr.KindEngine, "", "failed to create bridge network", err)
	}
	return resp.ID, nil
}

// Create builds (but does not start) a container from spec, attached to the
// shared bridge network.
func (e *Engine) Create(ctx context.Context, spec Spec) (string, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	exposed := make(nat.PortSet, len(spec.Ports))
	bindings := make(nat.PortMap, len(spec.Ports))
	for containerPort, hostPort := range spec.Ports {
		p, err := nat.NewPort("tcp", fmt.Sprintf("%d", containerPort))
		if err != nil {
			return "", apierr.Wrap(apierr.KindValidation, "", "invalid container port", err)
		}
		exposed[p] = struct{}{}
		bindings[p] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: fmt.Sprintf("%d", hostPort)}}
	}

	mounts := make([]string, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mounts = append(mounts, m.Source+":"+m.Target)
	}

	labels := map[string]string{NetworkLabel: "true"}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	containerCfg := &container.Config{
		Image:      spec.Image,
		Env:        env,
		Labels:     labels,
		ExposedPorts: exposed,
		WorkingDir: spec.WorkDir,
	}
	if len(spec.Cmd) > 0 {
		containerCfg.Cmd = spec.Cmd
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Binds:        mounts,
		NetworkMode:  container.NetworkMode(NetworkName),
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", apierr.Wrap(apierr.KindEngine, apierr.CodeImageUnavailable, "failed to create container", err)
	}
	return resp.ID, nil
}

// Start starts a previously created container.
func (e *Engine) Start(ctx context.Context, containerID string) error {
	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return apierr.Wrap(apierr.KindEngine, "", "failed to start container", err)
	}
	return nil
}

// Stop stops a running container, giving it the supplied grace period (in
// seconds) before sending SIGKILL. A nil timeout uses the daemon default.
func (e *Engine) Stop(ctx context.Context, containerID string, timeoutSeconds *int) error {
	e.log.Info().Str("container_id", containerID).Msg("stopping container")
	if err := e.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: timeoutSeconds}); err != nil {
		return apierr.Wrap(apierr.KindEngine, apierr.CodeStopTimeout, "failed to stop container", err)
	}
	return nil
}

// Remove deletes a container. Force removes a still-running container
// rather than requiring a prior Stop.
func (e *Engine) Remove(ctx context.Context, containerID string, force bool) error {
	if err := e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force}); err != nil {
		if strings.Contains(err.Error(), "removal of container") && strings.Contains(err.Error(), "is already in progress") {
			return nil
		}
		return apierr.Wrap(apierr.KindEngine, "", "failed to remove container", err)
	}
	return nil
}

// Inspect returns the daemon's current view of a container.
func (e *Engine) Inspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	info, err := e.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return container.InspectResponse{}, apierr.New(apierr.KindNotFound, "", "container not found")
		}
		return container.InspectResponse{}, apierr.Wrap(apierr.KindEngine, "", "failed to inspect container", err)
	}
	return info, nil
}

// Status is the narrow view of a container's state the lifecycle manager
// needs, decoupled from the Docker SDK's own inspect type.
type Status struct {
	Found     bool
	Running   bool
	StartedAt time.Time
	ExitCode  int
}

// InspectStatus is Inspect projected down to Status, returning Found=false
// rather than an error when the container no longer exists — the
// lifecycle manager's status reconciliation treats "gone" as data, not a
// failure.
func (e *Engine) InspectStatus(ctx context.Context, containerID string) (Status, error) {
	info, err := e.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return Status{Found: false}, nil
		}
		return Status{}, apierr.Wrap(apierr.KindEngine, "", "failed to inspect container", err)
	}

	status := Status{Found: true}
	if info.State != nil {
		status.Running = info.State.Running
		status.ExitCode = info.State.ExitCode
		if t, err := time.Parse(time.RFC3339Nano, info.State.StartedAt); err == nil {
			status.StartedAt = t
		}
	}
	return status, nil
}

// AttachLogs returns the raw multiplexed log stream (stdout+stderr) for a
// container, for pkg/logs to demultiplex. Caller must close the returned
// ReadCloser.
func (e *Engine) AttachLogs(ctx context.Context, containerID string, follow bool) (io.ReadCloser, error) {
	rc, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Timestamps: true,
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindEngine, "", "failed to attach to container logs", err)
	}
	return rc, nil
}

// ImageAvailable reports whether an image reference is already present
// locally, so the lifecycle manager can decide whether a pull is needed
// before Create.
func (e *Engine) ImageAvailable(ctx context.Context, ref string) (bool, error) {
	_, _, err := e.client.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return true, nil
	}
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return false, apierr.Wrap(apierr.KindEngine, "", "failed to inspect image", err)
}

// Pull pulls ref, draining the daemon's progress stream without surfacing
// it (debughostd logs a single start/finish line rather than streaming
// docker's layer-by-layer progress JSON).
func (e *Engine) Pull(ctx context.Context, ref string) error {
	rc, err := e.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return apierr.Wrap(apierr.KindEngine, apierr.CodeImageUnavailable, "failed to pull image", err)
	}
	defer rc.Close()
	_, _ = io.Copy(io.Discard, rc)
	return nil
}
