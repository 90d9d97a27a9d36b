package config

// OtelConfig carries the OpenTelemetry section shared by all binaries.
//
// The middleware only parses and validates these settings; the exporter
// wiring itself lives with the deployment (sidecar/collector), so an empty
// endpoint simply disables span export.
type OtelConfig struct {
	Endpoint        string
	LogConsoleSpans bool
	LogLevel        string
}

// OtelFromWrapper extracts the otel section from a config wrapper.
func OtelFromWrapper(w *Wrapper) OtelConfig {
	section := w.Section("otel")

	return OtelConfig{
		Endpoint:        section.StringOr("endpoint", ""),
		LogConsoleSpans: section.BoolOr("log_console_spans", false),
		LogLevel:        section.StringOr("log_level", "INFO"),
	}
}
