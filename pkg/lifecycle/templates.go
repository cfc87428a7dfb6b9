package lifecycle

import (
	"time"

	"github.com/cuemby/debughostd/pkg/types"
)

// DefaultTemplates returns the built-in per-tech container templates
// (image tag, probe path, startup timeout, grace period, and shared env
// contract) as declarative data rather than hardcoded per-tech branches,
// the same per-container spec-table shape as bnema-gordon's lifecycle.go.
// react/vue/angular share the nodejs image and timings since they're
// JavaScript-family dev servers; "unknown" falls back to the static
// template as the most conservative default.
func DefaultTemplates() map[string]types.TechTemplate {
	env := map[string]string{"NODE_ENV": "development", "DEBUG": "*"}

	nodejs := types.TechTemplate{
		Tech:           "nodejs",
		Image:          "node",
		ProbePath:      "/health",
		StartupTimeout: 30 * time.Second,
		GracePeriod:    10 * time.Second,
		SettleInterval: 2 * time.Second,
		Env:            env,
	}
	python := types.TechTemplate{
		Tech:           "python",
		Image:          "python",
		ProbePath:      "/health",
		StartupTimeout: 45 * time.Second,
		GracePeriod:    15 * time.Second,
		SettleInterval: 2 * time.Second,
		Env:            env,
	}
	php := types.TechTemplate{
		Tech:           "php",
		Image:          "php",
		ProbePath:      "/health.php",
		StartupTimeout: 30 * time.Second,
		GracePeriod:    10 * time.Second,
		SettleInterval: 2 * time.Second,
		Env:            env,
	}
	static := types.TechTemplate{
		Tech:           "static",
		Image:          "static",
		ProbePath:      "/",
		StartupTimeout: 15 * time.Second,
		GracePeriod:    5 * time.Second,
		SettleInterval: 0, // static containers skip the extra settle wait
		Env:            env,
	}

	return map[string]types.TechTemplate{
		"nodejs":  nodejs,
		"react":   nodejs,
		"vue":     nodejs,
		"angular": nodejs,
		"python":  python,
		"php":     php,
		"static":  static,
		"docker":  static,
		"unknown": static,
	}
}
