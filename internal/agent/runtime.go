package agent

import (
	"context"
	"path/filepath"

	"github.com/openbrief/marketbrief/internal/session"
	"github.com/openbrief/marketbrief/internal/tools"
)

// TenantRuntime bundles everything bound to one tenant: workspace
// path, tool registry, session store. Runtimes are cached by the
// engine and safe for concurrent use; all mutable per-request state
// travels through the call chain instead.
type TenantRuntime struct {
	TenantID      string
	WorkspacePath string
	Registry      *tools.Registry
	Sessions      *session.Store
}

// buildRuntime constructs the bundle for one tenant. Caller holds e.mu.
func (e *Engine) buildRuntime(tenantID string) (*TenantRuntime, error) {
	path, err := e.workspaces.Path(tenantID)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewStore(e.workspaces, tenantID, e.logger)
	if err != nil {
		return nil, err
	}

	rt := &TenantRuntime{
		TenantID:      tenantID,
		WorkspacePath: path,
		Registry:      e.buildRegistry(tenantID, path, true),
		Sessions:      sessions,
	}
	return rt, nil
}

// buildRegistry assembles the tool set for a tenant. Subagent
// registries get the same tools minus spawn, so delegation cannot
// recurse.
func (e *Engine) buildRegistry(tenantID, workspacePath string, withSpawn bool) *tools.Registry {
	r := tools.NewRegistry()

	tools.RegisterFileTools(r, tools.NewFileTools(workspacePath))

	shellCfg := e.shellCfg
	if shellCfg.WorkingDir == "" {
		shellCfg.WorkingDir = workspacePath
	} else {
		shellCfg.WorkingDir = filepath.Join(workspacePath, shellCfg.WorkingDir)
	}
	tools.RegisterShellTool(r, tools.NewShellExec(shellCfg))

	tools.RegisterWebTools(r, e.search, e.fetcher)
	tools.RegisterMarketTools(r, e.market)
	tools.RegisterWatchlistTools(r, e.tenants, tenantID)
	tools.RegisterNotifyTools(r, e.notifier, e.tenants, tenantID)
	tools.RegisterScheduleTools(r, e.scheduler, tenantID)

	if withSpawn {
		tools.RegisterSpawnTool(r, func(ctx context.Context, task string) (string, error) {
			return e.runSubagent(ctx, tenantID, workspacePath, task)
		})
	}

	return r
}
