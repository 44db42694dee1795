// Package adapter is the transport boundary the executor calls through.
// The contract — request in, Response or a tagged reason out, never a
// raised/panicking call — is the one part of the system meant to
// be swapped out per deployment (mock harness in tests, a pooled/TLS-tuned
// client in production); this package supplies the minimal net/http-backed
// implementation, not the pooling/TLS policy a production deployment would
// layer on top.
package adapter
