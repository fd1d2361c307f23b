// Package orchestrator exposes the facade that wires the session store,
// artifact repositories, gate DSL, check providers, scheduler, dispatcher,
// and evidence linker behind one object bound to a single session.
//
// Consumers never assemble those pieces themselves: this is the only place
// the handoff post-write hook meets the evidence linker and the gate
// registry meets the check providers.
package orchestrator

import (
	"time"

	"conductor/internal/artifacts"
	"conductor/internal/checks"
	"conductor/internal/config"
	"conductor/internal/dispatch"
	"conductor/internal/evidence"
	"conductor/internal/gate"
	"conductor/internal/logging"
	"conductor/internal/schema"
	"conductor/internal/sessionstore"
)

// Conductor is the orchestration facade, bound to one session at
// construction. Its public methods are sequential; there is no intra-core
// parallelism.
type Conductor struct {
	cfg        config.Config
	store      *sessionstore.Store
	registry   *schema.Registry
	repos      *artifacts.Repos
	providers  *checks.Providers
	evaluator  *gate.Evaluator
	dispatcher *dispatch.Dispatcher
	linker     *evidence.Linker
}

// Open binds a conductor to an existing session (creating any missing
// skeleton directories).
func Open(cfg config.Config, sessionID string) (*Conductor, error) {
	store, err := sessionstore.Open(cfg.BasePath, sessionID, cfg.MaxHistoryItems)
	if err != nil {
		return nil, err
	}
	return wire(cfg, store), nil
}

// NewSession mints a fresh session and binds a conductor to it.
func NewSession(cfg config.Config) (*Conductor, error) {
	manager := sessionstore.NewManager(cfg.BasePath, cfg.MaxHistoryItems)
	store, err := manager.New()
	if err != nil {
		return nil, err
	}
	return wire(cfg, store), nil
}

func wire(cfg config.Config, store *sessionstore.Store) *Conductor {
	registry := schema.NewRegistry()
	repos := artifacts.New(store, registry)

	linker := evidence.NewLinker(repos.Evidence)
	repos.Handoffs.SetPostWriteHook(linker.LinkHandoff)

	providers := checks.NewProviders(repos, cfg.WorkDir, checks.Commands{
		Typecheck: cfg.Checks.Typecheck,
		Tests:     cfg.Checks.Tests,
		Lint:      cfg.Checks.Lint,
	}, checks.Timeouts{})

	gateReg := gate.NewRegistry()
	providers.Register(gateReg)
	evaluator := gate.NewEvaluator(gateReg, time.Duration(cfg.GateDeadlineSeconds)*time.Second)

	logging.Boot("Conductor bound to session %s", store.SessionID())
	return &Conductor{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		repos:      repos,
		providers:  providers,
		evaluator:  evaluator,
		dispatcher: dispatch.NewDispatcher(cfg.RunnerCommand, cfg.TokenBudget),
		linker:     linker,
	}
}

// SessionID returns the bound session identifier.
func (c *Conductor) SessionID() string { return c.store.SessionID() }

// Store exposes the underlying session store (watching, history reads).
func (c *Conductor) Store() *sessionstore.Store { return c.store }

// SetObserver installs a progress observer for gate evaluation and streams
// subprocess check output through it.
func (c *Conductor) SetObserver(obs gate.Observer) {
	c.evaluator.SetObserver(obs)
	if obs != nil {
		c.providers.SetStream(func(line string) { obs("    " + line) })
	} else {
		c.providers.SetStream(nil)
	}
}

// Result is the structured outcome facade consumers render on failure
// paths.
type Result struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Failure wraps an error into a Result, attaching validation details when
// present.
func Failure(err error) Result {
	res := Result{Success: false, Error: err.Error()}
	if vf, ok := err.(*artifacts.ValidationFailure); ok {
		res.Details = vf.Errors
	}
	return res
}
