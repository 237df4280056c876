package telemetry

// ServiceName identifies blockfile to the trace and profile backends.
const ServiceName = "blockfile"

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	Enabled bool

	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// SampleRate is the fraction of traces kept, from 0.0 to 1.0.
	SampleRate float64
}

// ProfilingConfig configures Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool

	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL (e.g., "http://localhost:4040").
	Endpoint string

	// ProfileTypes lists the profiles to collect, by the names accepted by
	// ParseProfileTypes.
	ProfileTypes []string
}

// DefaultConfig returns tracing disabled with a local collector endpoint.
func DefaultConfig() Config {
	return Config{
		ServiceName:    ServiceName,
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// Profiling returns a profiling configuration that reports under the same
// service name and version as the traces of c, so both can be correlated.
func (c Config) Profiling(enabled bool, endpoint string, types []string) ProfilingConfig {
	return ProfilingConfig{
		Enabled:        enabled,
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Endpoint:       endpoint,
		ProfileTypes:   types,
	}
}
