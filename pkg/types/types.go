package types

import "time"

// Project is a registered workspace with an assigned tech stack and ports.
type Project struct {
	ProjectID     string           `json:"project_id"`
	Name          string           `json:"name"`
	WorkspacePath string           `json:"workspace_path"`
	DetectedTech  []TechDetection  `json:"detected_tech"`
	PrimaryTech   string           `json:"primary_tech"`
	Ports         ProjectPorts     `json:"ports"`
	Status        ProjectStatus    `json:"status"`
	ContainerID   string           `json:"container_id,omitempty"`
	ContainerName string           `json:"container_name,omitempty"`
	HealthStatus  ProjectHealth    `json:"health_status"`
	LastError     string           `json:"last_error,omitempty"`
	CurrentOp     string           `json:"current_operation,omitempty"`
	RegisteredAt  time.Time        `json:"registered_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	StoppedAt     *time.Time       `json:"stopped_at,omitempty"`
	LastOpTime    *time.Time       `json:"last_operation_time,omitempty"`
	LastHealthAt  *time.Time       `json:"last_health_check,omitempty"`
}

// ProjectPorts records the ports a project has been assigned.
type ProjectPorts struct {
	Primary   int   `json:"primary,omitempty"`
	Allocated []int `json:"allocated,omitempty"`
}

// ProjectStatus is the project's lifecycle state machine.
type ProjectStatus string

const (
	StatusStopped    ProjectStatus = "stopped"
	StatusStarting   ProjectStatus = "starting"
	StatusRunning    ProjectStatus = "running"
	StatusStopping   ProjectStatus = "stopping"
	StatusRestarting ProjectStatus = "restarting"
	StatusError      ProjectStatus = "error"
)

// ProjectHealth is the coarse health state attached to a Project record.
type ProjectHealth string

const (
	HealthUnknown   ProjectHealth = "unknown"
	HealthHealthy   ProjectHealth = "healthy"
	HealthUnhealthy ProjectHealth = "unhealthy"
)

// TechDetection is one scored technology match from the workspace scanner.
type TechDetection struct {
	Tech       string   `json:"tech"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

// PortAllocation is a single port's ownership record.
type PortAllocation struct {
	Port        int        `json:"port"`
	ProjectID   string     `json:"project_id"`
	Tech        string     `json:"tech"`
	Status      PortStatus `json:"status"`
	AllocatedAt time.Time  `json:"allocated_at"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}

// PortStatus is the lifecycle of a single port allocation.
type PortStatus string

const (
	PortInUse     PortStatus = "in-use"
	PortRecycling PortStatus = "recycling"
	PortFree      PortStatus = "free"
)

// TechRange is a per-tech TCP port range, data rather than a switch
// statement so it can be overridden by configuration.
type TechRange struct {
	Tech    string `json:"tech"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Default int    `json:"default"`
}

// LogEntry is one classified line from a container's combined log stream.
type LogEntry struct {
	ContainerName string    `json:"container_name"`
	Timestamp     int64     `json:"timestamp"` // ms since epoch
	Stream        LogStream `json:"stream"`
	Level         LogLevel  `json:"level"`
	Message       string    `json:"message"`
	Raw           string    `json:"raw"`
}

// LogStream identifies which Docker stream a LogEntry came from.
type LogStream string

const (
	StreamStdout LogStream = "stdout"
	StreamStderr LogStream = "stderr"
)

// LogLevel is the heuristically classified severity of a LogEntry.
type LogLevel string

const (
	LevelError LogLevel = "error"
	LevelWarn  LogLevel = "warn"
	LevelInfo  LogLevel = "info"
	LevelDebug LogLevel = "debug"
)

// LogFilter composes over a container's ring buffer.
type LogFilter struct {
	Level  LogLevel
	Stream LogStream
	Since  *time.Time
	Until  *time.Time
	Search string // case-insensitive regex
	Limit  int    // most recent N matches; 0 means no limit
}

// HealthSnapshot is the externally visible health state of a container.
type HealthSnapshot struct {
	ContainerID         string    `json:"container_id"`
	ProjectID           string    `json:"project_id"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheckedAt       time.Time `json:"last_checked_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// HealthCheckType names the kinds of health check. TechTemplate carries no
// check type: every template is probed over HTTP at its ProbePath.
type HealthCheckType string

const (
	HealthCheckHTTP HealthCheckType = "http"
	HealthCheckTCP  HealthCheckType = "tcp"
	HealthCheckExec HealthCheckType = "exec"
)

// TechTemplate is the container recipe for one recognized tech stack.
type TechTemplate struct {
	Tech            string
	Image           string
	ProbePath       string
	StartupTimeout  time.Duration
	GracePeriod     time.Duration
	SettleInterval  time.Duration
	Env             map[string]string
}
