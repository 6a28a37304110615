package telemetry

import (
	"strconv"

	"go.opentelemetry.io/otel/sdk/trace"
)

// createSampler understands the OTEL_TRACES_SAMPLER names. Anything else,
// including the empty string, records every pass.
func createSampler(cfg *Config) trace.Sampler {
	ratio := func() trace.Sampler { return trace.TraceIDRatioBased(parseRatio(cfg.SamplerArg)) }

	samplers := map[string]func() trace.Sampler{
		"always_on":                trace.AlwaysSample,
		"always_off":               trace.NeverSample,
		"traceidratio":             ratio,
		"parentbased_always_on":    func() trace.Sampler { return trace.ParentBased(trace.AlwaysSample()) },
		"parentbased_always_off":   func() trace.Sampler { return trace.ParentBased(trace.NeverSample()) },
		"parentbased_traceidratio": func() trace.Sampler { return trace.ParentBased(ratio()) },
	}
	if build, ok := samplers[cfg.Sampler]; ok {
		return build()
	}
	return trace.AlwaysSample()
}

func parseRatio(s string) float64 {
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1
	}
	return min(max(ratio, 0), 1)
}
