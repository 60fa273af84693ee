// Package chats provides the provider-agnostic data model of a multimodal
// conversation.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/nanobanana/pkg/chats/role] — conversation roles (user, model)
//   - [github.com/germanamz/nanobanana/pkg/chats/content] — content parts (text, inline binary), thought flags and signatures
//   - [github.com/germanamz/nanobanana/pkg/chats/fragment] — streamed fragments and the merger that folds them into parts
//   - [github.com/germanamz/nanobanana/pkg/chats/turn] — turns composed of a role, an identifier, and content parts
//   - [github.com/germanamz/nanobanana/pkg/chats/chat] — the mutable conversation log
//
// No provider or API code is included — chats is a foundation layer
// that adapters can build on.
package chats
