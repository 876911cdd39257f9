package search

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/jxr/internal/logging"
	"github.com/fyrsmithlabs/jxr/internal/query"
	"github.com/fyrsmithlabs/jxr/internal/ripgrep"
	"github.com/fyrsmithlabs/jxr/internal/tree"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/jxr/internal/search"

// Runner runs one engine search in a directory. *ripgrep.Invoker implements it.
type Runner interface {
	Run(ctx context.Context, dir string, req query.Request) (*ripgrep.Output, error)
}

// Options configures a Service.
type Options struct {
	CodeRoot      string
	MaxMatches    int
	MaxConcurrent int
}

// Service answers search requests against the trees under the code root.
type Service struct {
	codeRoot   string
	maxMatches int
	runner     Runner
	gate       *Gate
	logger     *logging.Logger
	metrics    *Metrics
	tracer     trace.Tracer
}

// NewService creates a Service. A nil logger discards logs and nil metrics
// records nothing.
func NewService(opts Options, runner Runner, logger *logging.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		codeRoot:   opts.CodeRoot,
		maxMatches: opts.MaxMatches,
		runner:     runner,
		gate:       NewGate(opts.MaxConcurrent),
		logger:     logger.Named("search"),
		metrics:    metrics,
		tracer:     otel.Tracer(instrumentationName),
	}
}

// Search parses rawQuery, runs the engine in treeName while holding the
// gate and aggregates its output. Every failure discards partial results.
func (s *Service) Search(ctx context.Context, treeName, rawQuery string) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "search.Search")
	defer span.End()

	start := time.Now()
	s.metrics.begin(ctx)
	defer func() {
		s.metrics.end(ctx, outcome(res, err), time.Since(start), res)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	req := query.Parse(rawQuery)
	span.SetAttributes(
		attribute.String("search.tree", treeName),
		attribute.String("search.path", req.Path),
		attribute.String("search.type", req.Type),
	)
	s.logger.Debug(ctx, "search options",
		zap.String("tree", treeName),
		zap.String("path", req.Path),
		zap.String("type", req.Type),
		zap.String("pattern", req.Pattern),
	)

	dir, err := tree.Resolve(s.codeRoot, treeName)
	if err != nil {
		return nil, err
	}
	if req.Pattern == "" {
		return nil, ripgrep.ErrNoPattern
	}

	waitStart := time.Now()
	if err := s.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.gate.Release()
	s.metrics.waited(ctx, time.Since(waitStart))

	out, err := s.runner.Run(ctx, dir, req)
	if err != nil {
		return nil, err
	}

	_, aggSpan := s.tracer.Start(ctx, "search.Aggregate")
	res, err = Aggregate(out.Stdout, req.Path, s.maxMatches)
	aggSpan.End()
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("search.matches", res.Matches),
		attribute.Bool("search.truncated", res.Truncated),
	)
	if res.Truncated {
		s.logger.Info(ctx, "truncated results", zap.Int("limit", s.maxMatches), zap.String("tree", treeName))
	}
	s.logger.Info(ctx, "search finished",
		zap.String("tree", treeName),
		zap.Int("matches", res.Matches),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("engine_duration", out.Duration),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func outcome(res *Result, err error) string {
	switch {
	case err == nil && res != nil && res.Truncated:
		return outcomeTruncated
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrLock):
		return outcomeLock
	case errors.Is(err, ripgrep.ErrEngine):
		return outcomeEngine
	case errors.Is(err, ripgrep.ErrEncoding),
		errors.Is(err, ripgrep.ErrMalformedOutput),
		errors.Is(err, ErrMissingSummary):
		return outcomeOutput
	default:
		return outcomeInvalid
	}
}

// IsInvalidRequest reports whether err was caused by the caller's input
// rather than by the engine or the server.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ripgrep.ErrNoPattern) ||
		errors.Is(err, tree.ErrInvalidName) ||
		errors.Is(err, tree.ErrNotFound)
}
