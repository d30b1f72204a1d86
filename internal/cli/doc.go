// Package cli holds the wiring and terminal helpers shared by the kbchat and
// kbchat-admin binaries.
//
// An App is built once per process. It loads the config file, sets up
// logging and telemetry, opens the session cookie jar, and connects the API
// client's 401 hook to the session manager. Route changes the session asks
// for are printed by Navigator as hints, since a terminal has no browser
// location to change.
package cli
