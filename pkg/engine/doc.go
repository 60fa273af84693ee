// Package engine is the composition root of the conversation state engine.
// It builds the model responder from configuration, owns the process-wide
// settings store, and exposes Sessions that drive sends, stops, deletions and
// regenerations against a conversation log. Frontends (TUI, browser bridge)
// observe activity through an EventBus or Chat.Wait and never write to the
// log directly.
package engine
