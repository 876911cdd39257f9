// Package logging provides structured logging for jxr on top of Zap.
//
// The Logger adds context correlation to every entry: OpenTelemetry trace and
// span ids, and the HTTP request id set by the server middleware.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, "0b9f...")
//	logger.Info(ctx, "search finished", zap.Int("matches", n))
//
// Sampling applies to Warn and below; errors are never sampled. Tests use
// NewTestLogger to assert on observed entries.
package logging
