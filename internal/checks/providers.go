package checks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"conductor/internal/artifacts"
	"conductor/internal/gate"
	"conductor/internal/logging"
)

// Default per-check timeouts, each bounded at evaluation time by whatever
// remains of the total gate deadline.
const (
	DefaultTypecheckTimeout = 60 * time.Second
	DefaultTestsTimeout     = 120 * time.Second
	DefaultLintTimeout      = 60 * time.Second
	DefaultCustomTimeout    = 30 * time.Second
)

// Commands holds the configured command lines for subprocess checks.
// Commands containing shell metacharacters run through sh -c; plain ones are
// launched directly.
type Commands struct {
	Typecheck string `json:"typecheck"`
	Tests     string `json:"tests"`
	Lint      string `json:"lint"`
}

// DefaultCommands returns the conventional npm invocations.
func DefaultCommands() Commands {
	return Commands{
		Typecheck: "npm run typecheck",
		Tests:     "npm test -- --run",
		Lint:      "npm run lint",
	}
}

// Timeouts holds per-check deadline overrides. Zero fields keep defaults.
type Timeouts struct {
	Typecheck time.Duration
	Tests     time.Duration
	Lint      time.Duration
}

// Providers implements every check in the gate DSL's closed set against one
// session's repositories and working directory.
type Providers struct {
	repos    *artifacts.Repos
	workDir  string
	commands Commands
	timeouts Timeouts
	stream   func(line string) // subprocess output sink, may be nil
}

// NewProviders builds the provider set. workDir is where subprocess checks
// run (the project under orchestration, not the session tree).
func NewProviders(repos *artifacts.Repos, workDir string, commands Commands, timeouts Timeouts) *Providers {
	if commands.Typecheck == "" {
		commands.Typecheck = DefaultCommands().Typecheck
	}
	if commands.Tests == "" {
		commands.Tests = DefaultCommands().Tests
	}
	if commands.Lint == "" {
		commands.Lint = DefaultCommands().Lint
	}
	return &Providers{repos: repos, workDir: workDir, commands: commands, timeouts: timeouts}
}

// SetStream installs a sink for subprocess output lines.
func (p *Providers) SetStream(fn func(line string)) { p.stream = fn }

// Register installs every provider into a gate registry with its default
// timeout.
func (p *Providers) Register(reg *gate.Registry) {
	reg.Register(gate.CheckTypecheck, orDefault(p.timeouts.Typecheck, DefaultTypecheckTimeout), p.runTypecheck)
	reg.Register(gate.CheckTests, orDefault(p.timeouts.Tests, DefaultTestsTimeout), p.runTests)
	reg.Register(gate.CheckLint, orDefault(p.timeouts.Lint, DefaultLintTimeout), p.runLint)
	reg.Register(gate.CheckManualOverride, 0, p.runManualOverride)
	reg.Register(gate.CheckMemory, 0, p.runMemory)
	reg.Register(gate.CheckTraceability, 0, p.runTraceability)
	reg.Register(gate.CheckEvidenceExists, 0, p.runEvidenceExists)
	reg.Register(gate.CheckEvidenceCoverage, 0, p.runEvidenceCoverage)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

var foundErrorsRe = regexp.MustCompile(`Found (\d+) errors?`)

func (p *Providers) runTypecheck(ctx context.Context, check *gate.CheckExpr) gate.CheckResult {
	return p.runSubprocess(ctx, gate.CheckTypecheck, p.commands.Typecheck, func(res *RunResult) string {
		if m := foundErrorsRe.FindStringSubmatch(res.Output); m != nil {
			return fmt.Sprintf("%s type errors", m[1])
		}
		return firstErrorLine(res.Output)
	})
}

var (
	passedCountRe = regexp.MustCompile(`(\d+)\s+pass(?:ed|ing)?`)
	failedCountRe = regexp.MustCompile(`(\d+)\s+fail(?:ed|ing)?`)
)

func (p *Providers) runTests(ctx context.Context, check *gate.CheckExpr) gate.CheckResult {
	result := p.runSubprocess(ctx, gate.CheckTests, p.commands.Tests, func(res *RunResult) string {
		passed, failed := parseTestCounts(res.Output)
		if failed > 0 {
			return fmt.Sprintf("%d passed, %d failed", passed, failed)
		}
		return firstErrorLine(res.Output)
	})

	// The threshold form (tests[passed] >= N) compares these counters.
	if result.Counters == nil {
		result.Counters = map[string]float64{}
	}
	return result
}

func (p *Providers) runLint(ctx context.Context, check *gate.CheckExpr) gate.CheckResult {
	return p.runSubprocess(ctx, gate.CheckLint, p.commands.Lint, func(res *RunResult) string {
		return firstErrorLine(res.Output)
	})
}

// runSubprocess executes a configured command and shapes the failure message
// with describe. Counters are filled from recognized test output so threshold
// forms work on any subprocess check that reports counts.
func (p *Providers) runSubprocess(ctx context.Context, name, cmdline string, describe func(*RunResult) string) gate.CheckResult {
	budget := time.Duration(0)
	if dl, ok := ctx.Deadline(); ok {
		budget = time.Until(dl)
	}

	res, err := runCommand(ctx, cmdline, p.workDir, needsShell(cmdline), p.stream)
	if err != nil {
		return gate.CheckResult{Check: name, Passed: false, Message: fmt.Sprintf("failed to launch: %v", err)}
	}

	out := gate.CheckResult{Check: name, Passed: res.ExitCode == 0}
	passed, failed := parseTestCounts(res.Output)
	if passed > 0 || failed > 0 {
		out.Counters = map[string]float64{"passed": float64(passed), "failed": float64(failed)}
	}

	if res.TimedOut {
		secs := int(budget.Seconds() + 0.5)
		if secs < 1 {
			secs = 1
		}
		out.Passed = false
		out.Message = fmt.Sprintf("timed out (>%ds)", secs)
		return out
	}
	if !out.Passed {
		out.Message = describe(res)
		if out.Message == "" {
			out.Message = fmt.Sprintf("exit code %d", res.ExitCode)
		}
	}
	return out
}

func (p *Providers) runManualOverride(ctx context.Context, check *gate.CheckExpr) gate.CheckResult {
	logging.Checks("Manual override applied")
	return gate.CheckResult{Check: gate.CheckManualOverride, Passed: true, Message: "manually overridden"}
}

// runMemory passes when at least one linked memory name matches the glob.
func (p *Providers) runMemory(ctx context.Context, check *gate.CheckExpr) gate.CheckResult {
	pattern := check.Args[0]
	names, err := p.repos.Memories.List()
	if err != nil {
		return gate.CheckResult{Check: gate.CheckMemory, Passed: false, Message: fmt.Sprintf("listing memories: %v", err)}
	}
	for _, name := range names {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return gate.CheckResult{Check: gate.CheckMemory, Passed: true}
		}
	}
	return gate.CheckResult{
		Check:   gate.CheckMemory,
		Passed:  false,
		Message: fmt.Sprintf("no memory matches %q", pattern),
	}
}

// runTraceability passes when some linked memory has a non-empty
// traceabilityData field of the requested name.
func (p *Providers) runTraceability(ctx context.Context, check *gate.CheckExpr) gate.CheckResult {
	field := check.Args[0]
	memories, err := p.repos.Memories.ReadAll()
	if err != nil {
		return gate.CheckResult{Check: gate.CheckTraceability, Passed: false, Message: fmt.Sprintf("listing memories: %v", err)}
	}
	for _, m := range memories {
		td := m.TraceabilityData
		if td == nil {
			continue
		}
		switch field {
		case "analyzed_symbols":
			if len(td.AnalyzedSymbols) > 0 {
				return gate.CheckResult{Check: gate.CheckTraceability, Passed: true}
			}
		case "entry_points":
			if len(td.EntryPoints) > 0 {
				return gate.CheckResult{Check: gate.CheckTraceability, Passed: true}
			}
		case "data_flow_map":
			if len(td.DataFlowMap) > 0 {
				return gate.CheckResult{Check: gate.CheckTraceability, Passed: true}
			}
		}
	}
	return gate.CheckResult{
		Check:   gate.CheckTraceability,
		Passed:  false,
		Message: fmt.Sprintf("no memory has traceability field %q", field),
	}
}

func (p *Providers) runEvidenceExists(ctx context.Context, check *gate.CheckExpr) gate.CheckResult {
	chainID := check.Args[0]
	if p.repos.Evidence.Exists(chainID) {
		return gate.CheckResult{Check: gate.CheckEvidenceExists, Passed: true}
	}
	return gate.CheckResult{
		Check:   gate.CheckEvidenceExists,
		Passed:  false,
		Message: fmt.Sprintf("evidence chain %q does not exist", chainID),
	}
}

// runEvidenceCoverage reports the mean coverage across all chains; the
// evaluator compares it against the threshold.
func (p *Providers) runEvidenceCoverage(ctx context.Context, check *gate.CheckExpr) gate.CheckResult {
	chains, err := p.repos.Evidence.ReadAll()
	if err != nil {
		return gate.CheckResult{Check: gate.CheckEvidenceCoverage, Passed: false, Message: fmt.Sprintf("reading evidence: %v", err)}
	}
	if len(chains) == 0 {
		return gate.CheckResult{Check: gate.CheckEvidenceCoverage, Passed: false, Message: "no evidence chains"}
	}

	var sum float64
	for _, c := range chains {
		sum += c.CoveragePercent
	}
	mean := sum / float64(len(chains))
	return gate.CheckResult{
		Check:    gate.CheckEvidenceCoverage,
		Passed:   true,
		Counters: map[string]float64{"coverage": mean},
	}
}

func parseTestCounts(output string) (passed, failed int) {
	if m := passedCountRe.FindStringSubmatch(output); m != nil {
		passed, _ = strconv.Atoi(m[1])
	}
	if m := failedCountRe.FindStringSubmatch(output); m != nil {
		failed, _ = strconv.Atoi(m[1])
	}
	return passed, failed
}

// firstErrorLine pulls the first line mentioning an error out of command
// output for a terse failure message.
func firstErrorLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		l := strings.ToLower(line)
		if strings.Contains(l, "error") || strings.Contains(l, "fail") {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
