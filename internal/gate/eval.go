package gate

import (
	"context"
	"fmt"
	"time"

	"conductor/internal/logging"
	"conductor/internal/schema"
)

// DefaultTotalDeadline bounds a whole gate evaluation.
const DefaultTotalDeadline = 180 * time.Second

// CheckResult is what a provider reports for one evaluated atom. Counters
// carries structured outputs (e.g. the tests provider's pass/fail counts)
// consumed by threshold forms.
type CheckResult struct {
	Check    string
	Passed   bool
	Message  string
	Counters map[string]float64
}

// ProviderFunc evaluates one check. The context carries the per-check
// deadline; providers must return promptly once it expires.
type ProviderFunc func(ctx context.Context, check *CheckExpr) CheckResult

// Registry maps canonical check names to their providers and per-check
// default timeouts.
type Registry struct {
	providers map[string]ProviderFunc
	timeouts  map[string]time.Duration
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ProviderFunc),
		timeouts:  make(map[string]time.Duration),
	}
}

// Register installs a provider. A zero timeout means the check is bounded
// only by the evaluation's remaining total deadline.
func (r *Registry) Register(name string, timeout time.Duration, fn ProviderFunc) {
	r.providers[name] = fn
	r.timeouts[name] = timeout
}

func (r *Registry) provider(name string) (ProviderFunc, time.Duration, bool) {
	fn, ok := r.providers[name]
	return fn, r.timeouts[name], ok
}

// Observer receives human-readable progress lines during evaluation. It has
// no effect on semantics.
type Observer func(line string)

// Evaluator runs gate expressions against a provider registry under a single
// total deadline.
type Evaluator struct {
	registry      *Registry
	observer      Observer
	totalDeadline time.Duration
}

// NewEvaluator builds an evaluator. totalDeadline <= 0 selects the default.
func NewEvaluator(registry *Registry, totalDeadline time.Duration) *Evaluator {
	if totalDeadline <= 0 {
		totalDeadline = DefaultTotalDeadline
	}
	return &Evaluator{registry: registry, totalDeadline: totalDeadline}
}

// SetObserver installs a progress observer.
func (e *Evaluator) SetObserver(obs Observer) { e.observer = obs }

// Evaluate parses and evaluates a gate condition for a phase. An empty or
// whitespace condition is "no gate": it passes trivially with no atoms
// recorded. A *ParseError is returned without running any check.
func (e *Evaluator) Evaluate(ctx context.Context, phaseID, condition string) (*schema.GateResult, *ParseError) {
	started := time.Now()
	result := &schema.GateResult{
		PhaseID:   phaseID,
		CheckedAt: schema.Now(),
		Results:   []schema.CheckOutcome{},
		Blockers:  []string{},
	}

	expr, perr := func() (Expr, *ParseError) {
		if isBlank(condition) {
			return nil, nil
		}
		return Parse(condition)
	}()
	if perr != nil {
		return nil, perr
	}
	if expr == nil {
		result.Passed = true
		return result, nil
	}

	logging.Gate("Evaluating gate for phase %s: %s", phaseID, expr)

	st := &evalState{
		evaluator: e,
		ctx:       ctx,
		deadline:  started.Add(e.totalDeadline),
		result:    result,
	}
	passed := st.eval(expr)

	result.Passed = passed && !st.timedOut
	result.Duration = time.Since(started).Milliseconds()
	logging.Gate("Gate for phase %s: passed=%v (%d atoms, %dms)",
		phaseID, result.Passed, len(result.Results), result.Duration)
	return result, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// evalState accumulates atom outcomes while walking the tree.
type evalState struct {
	evaluator *Evaluator
	ctx       context.Context
	deadline  time.Time
	result    *schema.GateResult
	timedOut  bool
}

// eval walks the tree with short-circuit semantics: AND stops on the first
// failure, OR on the first success, NOT inverts. Skipped sub-expressions
// never touch their providers.
func (s *evalState) eval(expr Expr) bool {
	if s.timedOut {
		return false
	}
	switch v := expr.(type) {
	case *AndExpr:
		if !s.eval(v.Left) {
			return false
		}
		return s.eval(v.Right)
	case *OrExpr:
		if s.eval(v.Left) {
			return true
		}
		return s.eval(v.Right)
	case *NotExpr:
		inner := s.eval(v.Expr)
		if s.timedOut {
			return false
		}
		return !inner
	case *CheckExpr:
		return s.evalCheck(v)
	default:
		return false
	}
}

func (s *evalState) evalCheck(c *CheckExpr) bool {
	remaining := time.Until(s.deadline)
	if remaining <= 0 {
		s.markTimeout()
		return false
	}

	fn, timeout, ok := s.evaluator.registry.provider(c.Name)
	if !ok {
		s.record(schema.CheckOutcome{
			Check:   c.Label(),
			Passed:  false,
			Message: fmt.Sprintf("no provider registered for %q", c.Name),
		})
		return false
	}

	// Per-check timeout, bounded by whatever remains of the total deadline.
	if timeout <= 0 || timeout > remaining {
		timeout = remaining
	}

	s.observe(fmt.Sprintf("Running %s...", c.Label()))
	cctx, cancel := context.WithTimeout(s.ctx, timeout)
	res := fn(cctx, c)
	cancel()

	// Threshold forms compare a reported counter against the bound.
	if c.Field != "" && c.Op != "" {
		if val, ok := res.Counters[c.Field]; ok {
			res.Passed = compare(val, c.Op, c.Value)
			res.Message = fmt.Sprintf("%s=%g (required %s %g)", c.Field, val, c.Op, c.Value)
		}
	}

	outcome := schema.CheckOutcome{Check: c.Label(), Passed: res.Passed, Message: res.Message}
	s.record(outcome)
	if res.Passed {
		s.observe(fmt.Sprintf("  [OK] %s", c.Label()))
	} else {
		s.observe(fmt.Sprintf("  [FAIL] %s: %s", c.Label(), res.Message))
	}

	// The total deadline may have expired while the check ran; finalize with
	// the synthetic timeout atom so the recorded result explains the stop.
	if time.Now().After(s.deadline) {
		s.markTimeout()
	}
	return res.Passed
}

func (s *evalState) record(outcome schema.CheckOutcome) {
	s.result.Results = append(s.result.Results, outcome)
	if !outcome.Passed {
		msg := outcome.Message
		if msg == "" {
			msg = outcome.Check + " failed"
		} else {
			msg = outcome.Check + ": " + msg
		}
		s.result.Blockers = append(s.result.Blockers, msg)
	}
}

func (s *evalState) markTimeout() {
	if s.timedOut {
		return
	}
	s.timedOut = true
	msg := fmt.Sprintf("timed out (>%ds)", int(s.evaluator.totalDeadline.Seconds()))
	s.record(schema.CheckOutcome{Check: CheckTimeout, Passed: false, Message: msg})
	s.observe("  [FAIL] " + CheckTimeout + ": " + msg)
	logging.Gate("Gate evaluation hit total deadline")
}

func (s *evalState) observe(line string) {
	if s.evaluator.observer != nil {
		s.evaluator.observer(line)
	}
}

func compare(val float64, op string, target float64) bool {
	switch op {
	case ">=":
		return val >= target
	case ">":
		return val > target
	case "<=":
		return val <= target
	case "<":
		return val < target
	case "==":
		return val == target
	case "!=":
		return val != target
	default:
		return false
	}
}
