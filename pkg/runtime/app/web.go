package app

import (
	"net"

	remediationhandlers "github.com/de-tools/linkmind/pkg/handlers/remediation"
	"github.com/de-tools/linkmind/pkg/server"
)

// ServerConfig exposes the engine over HTTP.
func (a *App) ServerConfig() server.Config {
	deps := server.Dependencies{
		Intake:   a.Intake,
		Detector: a.Detector,
		Ledger:   a.Ledger,
		Remediation: remediationhandlers.Dependencies{
			Cycles:    a.Cycles,
			Cases:     a.Docket,
			Trail:     a.Auditor,
			Savings:   a.Savings,
			Scheduler: a.Scheduler,
		},
		Metrics: a.Metrics.Handler(),
	}
	if a.Runs != nil {
		deps.Remediation.Runs = a.Runs
	}
	if a.ConfigPath != "" {
		deps.Remediation.Rates = a
	}
	return server.Config{
		Addr:            net.JoinHostPort(a.Config.Server.Host, a.Config.Server.Port),
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
		Dependencies:    deps,
	}
}
