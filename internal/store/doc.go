// Package store persists the kbchat session cookie jar.
//
// # Overview
//
// The backend authenticates requests with an access token that the web front
// end kept in an `access_token` cookie. kbchat keeps the same credential in a
// small cookie jar so that a login survives across invocations of the CLI.
// Nothing else is persisted: documents, conversations and assistants are
// always fetched fresh from the API.
//
// # Implementations
//
//   - SQLiteStore: modernc.org/sqlite file, one `cookies` table
//   - MemoryStore: process-local, used in tests and with an empty store.path
//
// TokenStore wraps either one and hides expired cookies:
//
//	jar, _ := store.NewSQLiteStore(path)
//	tokens := store.NewTokenStore(jar)
//	token, _ := tokens.Token(ctx) // "" when absent or expired
package store
