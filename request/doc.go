// Package request defines the immutable request/response/error data model
// that flows through the resilient client core.
//
// A Request is built once by the façade and then threaded through the
// middleware pipeline (see package pipeline). Each stage that needs to
// attach state — a dedup token, a post-hook — does so through Private,
// never by mutating shared fields in place; stages that need to change
// method/url/body/headers return a copy via With*.
package request
