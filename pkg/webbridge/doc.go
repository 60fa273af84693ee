// Package webbridge exposes engine sessions to browser clients over a
// WebSocket. Each connection owns one session. The server pushes a full
// snapshot of the conversation whenever it changes and accepts JSON commands
// that map one-to-one onto Session operations.
package webbridge
