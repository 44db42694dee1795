// Package httpguardtest provides a scriptable mock adapter.Adapter for
// exercising a Client without a live network. It does not interact with the
// test-mode gate: a request whose Options.TestMode is
// request.TestModeBlocked fails with network_blocked before any adapter,
// mock or not, is called.
package httpguardtest
