// Package modeladapter defines the response channel contract between the
// conversation engine and a generative model endpoint.
//
// It contains:
//   - [Responder] and [Stream], the streaming and batch generation interfaces
//   - the embeddable [ModelAdapter] base struct with HTTP helpers, auth and custom headers
//   - [RetryingResponder], which retries rate-limited calls with backoff
//   - [github.com/germanamz/nanobanana/pkg/modeladapter/usage], a thread-safe token usage tracker
//
// This package contains no provider-specific code. Concrete adapters live in
// separate packages that import modeladapter.
package modeladapter
