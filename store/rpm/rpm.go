// Package rpm implements store.Store on top of the rpm command line tool.
package rpm

import (
	"context"
	"io"
	"strings"

	"github.com/imagespy/rpm-registry/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const (
	prometheusNamespace = "rpm_registry"
)

var queryCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: prometheusNamespace,
	Subsystem: "rpm",
	Name:      "queries_total",
	Help:      "Number of rpm queries, by query and result.",
}, []string{"query", "result"})

type rpm struct {
	log    logrus.FieldLogger
	runner Runner
}

// New returns a store that queries the rpm database through r.
func New(r Runner, l logrus.FieldLogger) store.Store {
	if l == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		l = discard
	}

	return &rpm{log: l, runner: r}
}

func (r *rpm) Providers(ctx context.Context, c store.Capability) ([]string, error) {
	res, err := r.runner.Run(ctx, "-q", "--whatprovides", c.String())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if err != nil {
		queryCount.WithLabelValues("whatprovides", "error").Inc()
		r.log.Warnf("querying providers of %s: %s", c, err)
		return nil, nil
	}

	if res.ExitCode != 0 {
		queryCount.WithLabelValues("whatprovides", "empty").Inc()
		r.log.Debugf("no package provides %s: exit code %d", c, res.ExitCode)
		return nil, nil
	}

	queryCount.WithLabelValues("whatprovides", "ok").Inc()
	return uniqueLines(res.Stdout), nil
}

func (r *rpm) Capabilities(ctx context.Context, pkg string) ([]store.Capability, error) {
	res, err := r.query(ctx, "provides", pkg, "-qP", pkg)
	if err != nil {
		return nil, err
	}

	caps := []store.Capability{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		c, ok := store.ParseCapability(line)
		if !ok {
			continue
		}

		caps = append(caps, c)
	}

	return caps, nil
}

func (r *rpm) Files(ctx context.Context, pkg string) ([]string, error) {
	res, err := r.query(ctx, "files", pkg, "-ql", pkg)
	if err != nil {
		return nil, err
	}

	return uniqueLines(res.Stdout), nil
}

func (r *rpm) Info(ctx context.Context, pkg string) (*store.Package, error) {
	res, err := r.query(ctx, "info", pkg, "-q", "--qf", "%{name} %{arch}", pkg)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(res.Stdout)
	if len(fields) != 2 {
		queryCount.WithLabelValues("info", "error").Inc()
		return nil, errors.Wrapf(store.ErrQuery, "reading name and architecture of %s: unexpected output %q", pkg, res.Stdout)
	}

	return &store.Package{ID: pkg, Name: fields[0], Architecture: fields[1]}, nil
}

func (r *rpm) query(ctx context.Context, query string, pkg string, args ...string) (*Result, error) {
	res, err := r.runner.Run(ctx, args...)
	if err != nil {
		queryCount.WithLabelValues(query, "error").Inc()
		return nil, errors.Wrapf(err, "querying %s of %s", query, pkg)
	}

	if res.ExitCode != 0 {
		queryCount.WithLabelValues(query, "error").Inc()
		return nil, errors.Wrapf(store.ErrQuery, "querying %s of %s: exit code %d: %s", query, pkg, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	queryCount.WithLabelValues(query, "ok").Inc()
	return res, nil
}

// uniqueLines splits s into trimmed, non-empty lines and drops repeated ones.
func uniqueLines(s string) []string {
	seen := map[string]struct{}{}
	lines := []string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if _, exists := seen[line]; exists {
			continue
		}

		seen[line] = struct{}{}
		lines = append(lines, line)
	}

	return lines
}
