// Package core wires the leaf packages (dedup, ratelimit, circuit, retry,
// adapter) into one Engine's data-and-control flow, resolves per-request
// configuration, and bridges each leaf package's decoupled types
// (ratelimit.CircuitStateFunc, retry.Classifier) to the real
// circuit/request types so those packages can stay free of import cycles
// back to request.
package core
