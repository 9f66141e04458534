// Package runner wires the pipeline together: compile models, order them by
// dependency, materialize each against the warehouse, then run the checks.
package runner

import (
	"context"
	"time"

	"martflow/internal/check"
	"martflow/internal/compile"
	"martflow/internal/dag"
	"martflow/internal/log"
	"martflow/internal/materialize"
	"martflow/internal/project"
	"martflow/internal/warehouse"
	"martflow/pkg/errors"
)

// Options control a run.
type Options struct {
	DryRun   bool // compile and plan, execute nothing
	FailFast bool // stop scheduling models after the first failure

	// OnModel is invoked after each model finishes, for progress display.
	OnModel func(done, total int, result ModelResult)
}

// Runner executes a loaded project against a warehouse.
type Runner struct {
	project  *project.Project
	exec     warehouse.Executor
	compiler *compile.Compiler
	logger   *log.Logger
	opts     Options
}

// New creates a runner.
func New(p *project.Project, exec warehouse.Executor, opts Options) *Runner {
	return &Runner{
		project:  p,
		exec:     exec,
		compiler: compile.New(p),
		logger:   log.Default().WithField("project", p.Name),
		opts:     opts,
	}
}

// Plan compiles every model and returns the execution order.
func (r *Runner) Plan() (map[string]*compile.Compiled, []string, error) {
	compiled, err := r.compiler.CompileAll()
	if err != nil {
		return nil, nil, err
	}

	graph := dag.New()
	for name, c := range compiled {
		graph.AddNode(name, c.DependsOn)
	}

	order, err := graph.TopoSort()
	if err != nil {
		return nil, nil, err
	}

	return compiled, order, nil
}

// Run materializes every model in dependency order. A model failure marks
// all transitive downstream models skipped; there is no partial success
// within a model.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()

	compiled, order, err := r.Plan()
	if err != nil {
		return nil, err
	}

	graph := dag.New()
	for name, c := range compiled {
		graph.AddNode(name, c.DependsOn)
	}

	result := &RunResult{StartedAt: started}
	unrunnable := map[string]struct{}{}
	halted := false

	for i, name := range order {
		model := r.project.Models[name]

		if _, blocked := unrunnable[name]; blocked || halted {
			mr := ModelResult{
				Name:         name,
				Status:       StatusSkipped,
				Materialized: model.Materialized,
			}
			result.Models = append(result.Models, mr)
			r.logger.WarnWithFields("model skipped", map[string]interface{}{"model": name})
			r.notify(i+1, len(order), mr)
			continue
		}

		modelStart := time.Now()
		statement, err := materialize.Render(model, compiled[name].SQL)
		if err == nil && !r.opts.DryRun {
			err = r.exec.Exec(ctx, statement)
		}

		mr := ModelResult{
			Name:         name,
			Status:       StatusSuccess,
			Materialized: model.Materialized,
			Duration:     time.Since(modelStart),
			SQL:          statement,
		}

		if err != nil {
			mr.Status = StatusFailed
			mr.Err = err
			for _, down := range graph.Downstream(name) {
				unrunnable[down] = struct{}{}
			}
			if r.opts.FailFast {
				halted = true
			}
			r.logger.ErrorWithFields("model failed", map[string]interface{}{
				"model": name,
				"error": err.Error(),
			})
		} else {
			r.logger.InfoWithFields("model materialized", map[string]interface{}{
				"model":           name,
				"materialization": string(model.Materialized),
				"duration_ms":     mr.Duration.Milliseconds(),
			})
		}

		result.Models = append(result.Models, mr)
		r.notify(i+1, len(order), mr)
	}

	result.Duration = time.Since(started)
	return result, nil
}

func (r *Runner) notify(done, total int, mr ModelResult) {
	if r.opts.OnModel != nil {
		r.opts.OnModel(done, total, mr)
	}
}

// Test executes every declared check. Checks with severity warn record
// violations without failing the run.
func (r *Runner) Test(ctx context.Context) (*RunResult, error) {
	started := time.Now()

	checks, err := check.ForProject(r.project, r.compiler)
	if err != nil {
		return nil, err
	}

	result := &RunResult{StartedAt: started}

	for _, c := range checks {
		checkStart := time.Now()

		cr := CheckResult{Check: c, Status: CheckPassed}

		if r.opts.DryRun {
			cr.Status = CheckSkipped
		} else {
			failures, err := r.exec.QueryCount(ctx, check.CountQuery(c))
			cr.Duration = time.Since(checkStart)
			switch {
			case err != nil:
				cr.Status = CheckErrored
				cr.Err = err
			case failures == 0:
				cr.Status = CheckPassed
			case c.Severity == project.SeverityWarn:
				cr.Status = CheckWarned
				cr.Failures = failures
			default:
				cr.Status = CheckFailed
				cr.Failures = failures
				cr.Err = errors.CheckError(c.Name, c.Model, failures)
			}
		}

		switch cr.Status {
		case CheckFailed, CheckErrored:
			r.logger.ErrorWithFields("check failed", map[string]interface{}{
				"check":    c.Name,
				"failures": cr.Failures,
			})
		case CheckWarned:
			r.logger.WarnWithFields("check warned", map[string]interface{}{
				"check":    c.Name,
				"failures": cr.Failures,
			})
		default:
			r.logger.InfoWithFields("check passed", map[string]interface{}{
				"check": c.Name,
			})
		}

		result.Checks = append(result.Checks, cr)
	}

	result.Duration = time.Since(started)
	return result, nil
}

// Build runs all models, then all checks. Checks are skipped when any model
// failed, since they would report against stale relations.
func (r *Runner) Build(ctx context.Context) (*RunResult, error) {
	runResult, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}

	if runResult.Failed() {
		return runResult, nil
	}

	testResult, err := r.Test(ctx)
	if err != nil {
		return runResult, err
	}

	runResult.Checks = testResult.Checks
	runResult.Duration = time.Since(runResult.StartedAt)
	return runResult, nil
}
