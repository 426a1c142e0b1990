package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os/exec"
	"strings"
	"time"

	"github.com/cuemby/omg/pkg/log"
	"github.com/cuemby/omg/pkg/metrics"
	"github.com/cuemby/omg/pkg/types"
	"github.com/rs/zerolog"
)

// CommandSet names the external commands ExecBackend shells out to. A
// real deployment fills this in for pacman/apt/dpkg; tests and examples
// can point Snapshot/Info/etc at fixtures instead.
type CommandSet struct {
	// Snapshot lists every known package as "name\tversion\tinstalled(0/1)".
	Snapshot []string
	// Info prints one package's fields for a given name, appended as the
	// final argument.
	Info []string
	// Updates lists "name\tcurrent\tnew" lines for upgradable packages.
	Updates []string
	// ExplicitInstalled lists one package name per line.
	ExplicitInstalled []string
	// Orphans lists one package name per line.
	Orphans []string
	// Install/Remove/ApplyAllUpdates take package names appended as
	// trailing arguments (ApplyAllUpdates ignores names).
	Install         []string
	Remove          []string
	ApplyAllUpdates []string
}

// ExecBackend runs a CommandSet through exec.CommandContext with a
// timeout, capturing stdout/stderr and the exit code.
type ExecBackend struct {
	tag     string
	cmds    CommandSet
	timeout time.Duration
	logger  zerolog.Logger
}

// NewExecBackend creates a backend identified by tag (e.g. "pacman",
// "apt") that shells out through cmds.
func NewExecBackend(tag string, cmds CommandSet) *ExecBackend {
	return &ExecBackend{
		tag:     tag,
		cmds:    cmds,
		timeout: DefaultCallTimeout,
		logger:  log.WithBackend(tag),
	}
}

func (b *ExecBackend) Tag() string { return b.tag }

func (b *ExecBackend) run(ctx context.Context, argv []string, extra ...string) (string, error) {
	out, _, _, err := b.runCapture(ctx, argv, extra...)
	return out, err
}

// runCapture executes argv+extra and always returns captured stdout,
// stderr and exit code, even when the process exits non-zero; err is
// non-nil only for failures with no meaningful exit code (missing
// command, context timeout, failure to start).
func (b *ExecBackend) runCapture(ctx context.Context, argv []string, extra ...string) (stdout, stderr string, exitCode int, err error) {
	if len(argv) == 0 {
		return "", "", -1, fmt.Errorf("%w: no command configured", ErrBackendUnavailable)
	}

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := append(append([]string{}, argv[1:]...), extra...)
	cmd := exec.CommandContext(runCtx, argv[0], args...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// Non-zero exit is a normal mutate outcome, not a backend
			// failure.
			return stdout, stderr, exitErr.ExitCode(), nil
		}
		b.logger.Error().
			Err(runErr).
			Str("stderr", stderr).
			Strs("argv", argv).
			Msg("backend command failed")
		return "", "", -1, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, argv[0], runErr)
	}
	return stdout, stderr, 0, nil
}

// observeCall records omg_backend_calls_total/omg_backend_call_duration_seconds
// for one logical Backend operation, regardless of which command it shells
// out to.
func observeCall(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.BackendCallsTotal.WithLabelValues(operation, outcome).Inc()
	metrics.BackendCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (b *ExecBackend) Snapshot(ctx context.Context) (out IndexSource, err error) {
	defer func(start time.Time) { observeCall("snapshot", start, err) }(time.Now())

	rawOut, err := b.run(ctx, b.cmds.Snapshot)
	if err != nil {
		return IndexSource{}, err
	}

	var pkgs []types.Package
	for _, line := range splitNonEmptyLines(rawOut) {
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		pkgs = append(pkgs, types.Package{
			Name:      fields[0],
			Version:   fields[1],
			Installed: fields[2] == "1",
			Source:    types.Source{Kind: types.SourceOfficialRepo, Repo: b.tag},
			Grade:     types.GradeUnknown,
		})
	}

	return IndexSource{
		Packages:    pkgs,
		Fingerprint: fingerprint(rawOut),
		Tag:         b.tag,
	}, nil
}

func (b *ExecBackend) Info(ctx context.Context, name string) (pkg types.Package, ok bool, err error) {
	defer func(start time.Time) { observeCall("info", start, err) }(time.Now())

	if err = types.ValidateName(name); err != nil {
		return types.Package{}, false, fmt.Errorf("invalid name: %w", err)
	}

	out, err := b.run(ctx, b.cmds.Info, name)
	if err != nil {
		return types.Package{}, false, err
	}
	if strings.TrimSpace(out) == "" {
		return types.Package{}, false, nil
	}

	fields := strings.Split(strings.TrimSpace(out), "\t")
	if len(fields) < 2 {
		return types.Package{}, false, nil
	}
	pkg = types.Package{
		Name:      name,
		Version:   fields[1],
		Installed: true,
		Source:    types.Source{Kind: types.SourceOfficialRepo, Repo: b.tag},
		Grade:     types.GradeUnknown,
	}
	if len(fields) > 2 {
		pkg.Description = fields[2]
	}
	return pkg, true, nil
}

func (b *ExecBackend) Updates(ctx context.Context) (updates []types.UpdateCandidate, err error) {
	defer func(start time.Time) { observeCall("updates", start, err) }(time.Now())

	out, err := b.run(ctx, b.cmds.Updates)
	if err != nil {
		return nil, err
	}
	for _, line := range splitNonEmptyLines(out) {
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		updates = append(updates, types.UpdateCandidate{
			Name:           fields[0],
			CurrentVersion: fields[1],
			NewVersion:     fields[2],
			Source:         types.Source{Kind: types.SourceOfficialRepo, Repo: b.tag},
			Grade:          types.GradeUnknown,
		})
	}
	return updates, nil
}

func (b *ExecBackend) ExplicitInstalled(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { observeCall("explicit_installed", start, err) }(time.Now())

	out, err := b.run(ctx, b.cmds.ExplicitInstalled)
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(out), nil
}

func (b *ExecBackend) Orphans(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { observeCall("orphans", start, err) }(time.Now())

	out, err := b.run(ctx, b.cmds.Orphans)
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(out), nil
}

func (b *ExecBackend) Install(ctx context.Context, names []string, opts MutateOptions) (MutateResult, error) {
	return b.mutate(ctx, "install", b.cmds.Install, names)
}

func (b *ExecBackend) Remove(ctx context.Context, names []string, opts MutateOptions) (MutateResult, error) {
	return b.mutate(ctx, "remove", b.cmds.Remove, names)
}

func (b *ExecBackend) ApplyAllUpdates(ctx context.Context, opts MutateOptions) (MutateResult, error) {
	return b.mutate(ctx, "apply_all_updates", b.cmds.ApplyAllUpdates, nil)
}

func (b *ExecBackend) mutate(ctx context.Context, operation string, argv []string, names []string) (result MutateResult, err error) {
	defer func(start time.Time) { observeCall(operation, start, err) }(time.Now())

	stdout, stderr, exitCode, err := b.runCapture(ctx, argv, names...)
	if err != nil {
		return MutateResult{}, err
	}
	return MutateResult{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// fingerprint hashes a snapshot's raw listing text. A real ALPM/APT
// integration would fingerprint backend state directly (database file
// sizes + mtimes + count); ExecBackend only sees the command's stdout,
// so it hashes that instead.
func fingerprint(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum64())
}

var _ Backend = (*ExecBackend)(nil)
