// Package telemetry provides OpenTelemetry instrumentation for jxr.
//
// # Overview
//
// Metrics are always collected into a Prometheus registry and served by
// MetricsHandler. When enabled, traces (and optionally metrics) are also
// pushed to an OTLP collector over HTTP or gRPC.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	meter := tel.Meter("github.com/fyrsmithlabs/jxr/internal/search")
//	e.GET("/metrics", echo.WrapHandler(tel.MetricsHandler()))
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  protocol: "http/protobuf"
//	  sampling_rate: 0.25
//	  export_metrics: false
//
// # Error Handling
//
// Exporter failures do not stop the server. The instance reports itself
// degraded and falls back to the global no-op providers.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "op")
//	span.End()
//	tt.AssertSpanExists(t, "op")
package telemetry
