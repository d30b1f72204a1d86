// ABOUTME: Package chat documentation
// ABOUTME: Streamed assistant conversations over WebSocket or plain HTTP

// Package chat drives a single open conversation with an assistant.
//
// A Stream owns at most one connection at a time. Frames from the connection
// are applied in arrival order by one reader goroutine: text fragments are
// concatenated into an in-flight message, image and video fragments replace
// it, and an end frame moves the in-flight message into history. Connecting
// to another conversation, or calling Disconnect, closes the previous
// connection and any frames it still delivers are dropped.
//
// Two transports implement Dialer. WebSocketDialer streams fragments from
// the backend's per-conversation socket. HTTPDialer posts each message and
// replays the full reply as a message frame followed by an end frame, so the
// same state handling serves both modes.
package chat
