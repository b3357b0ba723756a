package rpm

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/pkg/errors"
)

// Result is the outcome of one package manager invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes the package manager. A non-zero exit code is reported in
// Result and is not an error. An error means the process could not be run at all.
type Runner interface {
	Run(ctx context.Context, args ...string) (*Result, error)
}

// ExecRunner runs Binary as a child process. A process that runs longer
// than Timeout is killed.
type ExecRunner struct {
	Binary  string
	Timeout time.Duration
}

func (e *ExecRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok || ctx.Err() != nil {
			return nil, errors.Wrapf(err, "running %s", e.Binary)
		}

		return &Result{ExitCode: exitErr.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	return &Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

type job struct {
	ctx  context.Context
	args []string
}

type jobResult struct {
	result *Result
	err    error
}

// PoolRunner limits the number of package manager processes that run at the same time.
type PoolRunner struct {
	pool *tunny.Pool
}

func NewPoolRunner(r Runner, workers int) *PoolRunner {
	if workers < 1 {
		workers = 1
	}

	pool := tunny.NewFunc(workers, func(payload interface{}) interface{} {
		j, ok := payload.(job)
		if !ok {
			return jobResult{err: errors.New("unable to cast payload to job")}
		}

		res, err := r.Run(j.ctx, j.args...)
		return jobResult{result: res, err: err}
	})
	return &PoolRunner{pool: pool}
}

func (p *PoolRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	out, err := p.pool.ProcessCtx(ctx, job{ctx: ctx, args: args})
	if err != nil {
		return nil, errors.Wrap(err, "waiting for package query worker")
	}

	jr, ok := out.(jobResult)
	if !ok {
		return nil, errors.New("unexpected package query worker result")
	}

	return jr.result, jr.err
}

func (p *PoolRunner) Close() {
	p.pool.Close()
}
