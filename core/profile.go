package core

import (
	"github.com/jonwraymond/httpguard/circuit"
	"github.com/jonwraymond/httpguard/dedup"
	"github.com/jonwraymond/httpguard/ratelimit"
	"github.com/jonwraymond/httpguard/request"
)

// Profile names a predefined option bundle.
type Profile string

const (
	// ProfilePaymentProcessing favors correctness over throughput: a single
	// retry, a circuit that trips fast, dedup on to avoid double-charging a
	// retried write.
	ProfilePaymentProcessing Profile = "payment_processing"
	// ProfileHighVolumeAPI favors throughput: a large adaptive rate limit
	// and dedup to absorb bursts of identical reads.
	ProfileHighVolumeAPI Profile = "high_volume_api"
	// ProfileMicroservicesMesh favors resilience to transient mesh hiccups:
	// more retries including econnreset, a percentage-based circuit with a
	// wider window.
	ProfileMicroservicesMesh Profile = "microservices_mesh"
)

// ProfileOptions returns the option bundle for p, and false for an
// unrecognized profile name.
func ProfileOptions(p Profile) (request.Options, bool) {
	switch p {
	case ProfilePaymentProcessing:
		return paymentProcessingOptions(), true
	case ProfileHighVolumeAPI:
		return highVolumeAPIOptions(), true
	case ProfileMicroservicesMesh:
		return microservicesMeshOptions(), true
	default:
		return request.Options{}, false
	}
}

func paymentProcessingOptions() request.Options {
	opts := request.DefaultOptions()
	opts.Retry.MaxRetries = 1
	opts.Retry.RetrySafe = false
	opts.Circuit.Mode = circuit.ModeEnabled
	opts.Circuit.Config.FailureThreshold = 2
	opts.Circuit.Config.HalfOpenRequests = 1
	opts.Dedup.Mode = dedup.ModeEnabled
	opts.Dedup.Config.Enabled = true
	return opts
}

func highVolumeAPIOptions() request.Options {
	opts := request.DefaultOptions()
	opts.RateLimit.Mode = ratelimit.ModeEnabled
	opts.RateLimit.Config.Requests = 1000
	opts.RateLimit.Config.Per = ratelimit.PerSecond
	opts.RateLimit.Config.Adaptive = true
	opts.Dedup.Mode = dedup.ModeEnabled
	opts.Dedup.Config.Enabled = true
	return opts
}

func microservicesMeshOptions() request.Options {
	opts := request.DefaultOptions()
	opts.Retry.MaxRetries = 5
	opts.Retry.RetrySafe = true
	opts.Circuit.Mode = circuit.ModeEnabled
	opts.Circuit.Config.FailureThresholdPercentage = 30
	opts.Circuit.Config.WindowSize = 20
	return opts
}

// ResolveOptions merges base, the named profile's bundle (if any), and an
// explicit per-call override, in that precedence order, using
// request.Options.Merge. The merge is not deep: a non-zero Retry config in
// the override replaces the whole Retry config, and a rate-limit/circuit/
// dedup Setting whose Mode is not ModeDefault replaces the whole Setting.
func ResolveOptions(base request.Options, profile Profile, override request.Options) request.Options {
	resolved := base
	if profileOpts, ok := ProfileOptions(profile); ok {
		resolved = resolved.Merge(profileOpts)
	}
	return resolved.Merge(override)
}
