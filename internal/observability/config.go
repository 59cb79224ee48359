package observability

import "vigor/server/internal/config"

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprofTrace bool

	TracingEnabled bool
	Endpoint       string
	Insecure       bool
	SampleRatio    float64
	ServiceName    string
}

// ConfigFromEnv maps the parsed environment onto observability settings.
func ConfigFromEnv(env config.Env) Config {
	return Config{
		EnablePprofTrace: env.PprofTrace,
		TracingEnabled:   env.OTelEnabled,
		Endpoint:         env.OTelEndpoint,
		Insecure:         env.OTelInsecure,
		SampleRatio:      env.OTelSampleRatio,
		ServiceName:      serviceName,
	}
}
