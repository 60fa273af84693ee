// Package providers groups the concrete model endpoints a Responder can talk
// to. Each sub-package adapts one vendor's wire format to the
// [github.com/germanamz/nanobanana/pkg/modeladapter.Responder] contract:
//   - [github.com/germanamz/nanobanana/pkg/providers/gemini] — Gemini generateContent and streamGenerateContent (SSE)
//
// Providers are selected by name through the engine's provider registry.
package providers
