// Package agent runs the tenant-scoped execution loop.
//
// The Engine owns a cache of per-tenant runtimes. Each runtime bundles
// the tenant's workspace path, tool registry, and session store; the
// bundle is handed to callers as an explicit value, so concurrent
// requests for different tenants never share mutable tenant state.
package agent

import (
	"log/slog"
	"sync"

	"github.com/openbrief/marketbrief/internal/fetch"
	"github.com/openbrief/marketbrief/internal/llm"
	"github.com/openbrief/marketbrief/internal/market"
	"github.com/openbrief/marketbrief/internal/notify"
	"github.com/openbrief/marketbrief/internal/scheduler"
	"github.com/openbrief/marketbrief/internal/search"
	"github.com/openbrief/marketbrief/internal/tenant"
	"github.com/openbrief/marketbrief/internal/tools"
	"github.com/openbrief/marketbrief/internal/workspace"
)

// Options wires the engine's collaborators. LLM may be nil; callers
// that need a model get an error from the loop, and the report path
// degrades to placeholder content.
type Options struct {
	Logger        *slog.Logger
	LLM           llm.Client
	Model         string
	MaxIterations int

	Workspaces *workspace.Manager
	Tenants    *tenant.Store
	Search     *search.Manager
	Fetcher    *fetch.Fetcher
	Market     *market.Client
	Notifier   *notify.Dispatcher
	Scheduler  *scheduler.Scheduler
	ShellExec  tools.ShellExecConfig
}

// Engine coordinates model calls and tool dispatch for all tenants.
type Engine struct {
	logger        *slog.Logger
	llm           llm.Client
	model         string
	maxIterations int

	workspaces *workspace.Manager
	tenants    *tenant.Store
	search     *search.Manager
	fetcher    *fetch.Fetcher
	market     *market.Client
	notifier   *notify.Dispatcher
	scheduler  *scheduler.Scheduler
	shellCfg   tools.ShellExecConfig

	mu       sync.Mutex
	runtimes map[string]*TenantRuntime
	built    int // runtime constructions, observable in tests
}

// NewEngine creates the engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 20
	}
	return &Engine{
		logger:        logger.With("component", "agent"),
		llm:           opts.LLM,
		model:         opts.Model,
		maxIterations: maxIter,
		workspaces:    opts.Workspaces,
		tenants:       opts.Tenants,
		search:        opts.Search,
		fetcher:       opts.Fetcher,
		market:        opts.Market,
		notifier:      opts.Notifier,
		scheduler:     opts.Scheduler,
		shellCfg:      opts.ShellExec,
		runtimes:      make(map[string]*TenantRuntime),
	}
}

// HasModel reports whether a live model connection is configured.
func (e *Engine) HasModel() bool {
	return e.llm != nil
}

// Runtime returns the cached runtime for tenantID, constructing one on
// first use. A tenant without a workspace yields an error wrapping
// workspace.ErrNotFound; provisioning is a separate operation.
func (e *Engine) Runtime(tenantID string) (*TenantRuntime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rt, ok := e.runtimes[tenantID]; ok {
		return rt, nil
	}

	rt, err := e.buildRuntime(tenantID)
	if err != nil {
		return nil, err
	}
	e.runtimes[tenantID] = rt
	e.built++
	e.logger.Debug("tenant runtime constructed", "tenant", tenantID, "tools", len(rt.Registry.Names()))
	return rt, nil
}

// Invalidate drops a cached runtime, forcing reconstruction on next
// use. Called after workspace re-provisioning or deletion.
func (e *Engine) Invalidate(tenantID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.runtimes, tenantID)
}
