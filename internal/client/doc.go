// Package client is the HTTP client for the knowledge-base chatbot API.
//
// # Overview
//
// Client has one method per backend operation. Each method builds the request,
// attaches credentials, decodes the JSON (or binary) response, and validates
// the decoded value before returning it. There is no caching, retrying, or
// request deduplication: every call is one HTTP round trip.
//
// # Credentials
//
// The backend accepts the access token either as a bearer header or as the
// access_token cookie, and different endpoints were historically called with
// different modes. Each operation keeps its mode:
//
//	CredentialBearer  Authorization: Bearer <token>
//	CredentialCookie  Cookie: access_token=<token>
//
// The token is read from the TokenSource before every request. A missing
// token fails the call with ErrNoToken without touching the network.
//
// # Errors
//
// Non-2xx responses are returned as *APIError. Detail holds the server's
// "detail" message, or a generic per-operation message when the body has none:
//
//	kbs, err := c.ListKnowledgeBases(ctx)
//	if errors.Is(err, client.ErrUnauthorized) {
//		// session expired
//	}
//
// A 401 on an authenticated call also runs the hook installed with
// SetUnauthorizedHandler before the error is returned.
//
// # Telemetry
//
// Every request carries an X-Request-ID header and is recorded as a
// "client.<Op>" span with request count and latency metrics on the global
// OpenTelemetry providers.
package client
