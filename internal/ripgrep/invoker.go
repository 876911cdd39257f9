package ripgrep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/jxr/internal/logging"
	"github.com/fyrsmithlabs/jxr/internal/query"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/jxr/internal/ripgrep"

// Exit statuses that count as a successful run.
const (
	exitMatches   = 0
	exitNoMatches = 1
)

// Options configures an Invoker.
type Options struct {
	// Binary is the engine executable, looked up in PATH when not absolute.
	Binary string
	// ExcludeGlobs are passed as one --glob each.
	ExcludeGlobs []string
	// Timeout bounds a single run. Zero disables it.
	Timeout time.Duration
}

// Output is the captured result of one engine run.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Invoker runs the engine as a subprocess.
type Invoker struct {
	opts   Options
	logger *logging.Logger
}

// NewInvoker creates an Invoker. A nil logger discards logs.
func NewInvoker(opts Options, logger *logging.Logger) *Invoker {
	if opts.Binary == "" {
		opts.Binary = "rg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Invoker{opts: opts, logger: logger}
}

// Args builds the engine argument vector for req:
//
//	--json [--glob G]... [--type T] -- PATTERN
func (inv *Invoker) Args(req query.Request) ([]string, error) {
	if req.Pattern == "" {
		return nil, ErrNoPattern
	}

	args := make([]string, 0, 4+2*len(inv.opts.ExcludeGlobs))
	args = append(args, "--json")
	for _, g := range inv.opts.ExcludeGlobs {
		args = append(args, "--glob", g)
	}
	if req.Type != "" {
		args = append(args, "--type", req.Type)
	}
	args = append(args, "--", req.Pattern)
	return args, nil
}

// Run executes one search in dir and returns its captured output. Exit
// status 0 (matches) and 1 (no matches) are success; anything else,
// including death by signal or timeout, is ErrEngine. Stdout must be valid
// UTF-8. Run never retries.
func (inv *Invoker) Run(ctx context.Context, dir string, req query.Request) (*Output, error) {
	args, err := inv.Args(req)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "ripgrep.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("ripgrep.dir", dir),
		attribute.String("ripgrep.type", req.Type),
	)

	if inv.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.opts.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, inv.opts.Binary, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	inv.logger.Debug(ctx, "running ripgrep",
		zap.String("binary", inv.opts.Binary),
		zap.Strings("args", args),
		zap.String("dir", dir),
	)

	start := time.Now()
	runErr := cmd.Run()
	out := &Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	span.SetAttributes(attribute.Int("ripgrep.exit_code", out.ExitCode))

	if err := inv.checkExit(ctx, runErr, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ripgrep failed")
		return nil, err
	}

	if !utf8.Valid(out.Stdout) {
		span.SetStatus(codes.Error, "invalid utf8")
		return nil, ErrEncoding
	}

	inv.logger.Trace(ctx, "ripgrep finished",
		zap.Int("exit_code", out.ExitCode),
		zap.Int("stdout_bytes", len(out.Stdout)),
		zap.ByteString("stderr", out.Stderr),
		zap.Duration("duration", out.Duration),
	)

	return out, nil
}

func (inv *Invoker) checkExit(ctx context.Context, runErr error, out *Output) error {
	stderr := strings.TrimSpace(string(out.Stderr))

	if ctxErr := ctx.Err(); ctxErr != nil && runErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: timed out after %v", ErrEngine, inv.opts.Timeout)
		}
		return fmt.Errorf("%w: %v", ErrEngine, ctxErr)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// never started
			return fmt.Errorf("%w: %v", ErrEngine, runErr)
		}
	}

	switch out.ExitCode {
	case exitMatches, exitNoMatches:
		return nil
	case -1:
		return fmt.Errorf("%w: terminated by signal: %s", ErrEngine, stderr)
	default:
		return fmt.Errorf("%w: exit status %d: %s", ErrEngine, out.ExitCode, stderr)
	}
}
