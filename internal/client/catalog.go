// ABOUTME: Catalog operations listing the tools and agent types the backend offers
// ABOUTME: Both are read-only and cookie authenticated

package client

import (
	"context"
	"net/http"
)

// ListTools returns the names of tools that can be attached to assistants.
func (c *Client) ListTools(ctx context.Context) ([]string, error) {
	var tools Tools
	err := c.doJSON(ctx, &request{
		op:       "ListTools",
		method:   http.MethodGet,
		path:     "/api/tools",
		cred:     CredentialCookie,
		fallback: "Failed to fetch tools",
	}, &tools)
	if err != nil {
		return nil, err
	}
	return tools.Tools, nil
}

// ListAgents returns the available agent types.
func (c *Client) ListAgents(ctx context.Context) ([]string, error) {
	var agents Agents
	err := c.doJSON(ctx, &request{
		op:       "ListAgents",
		method:   http.MethodGet,
		path:     "/api/agent",
		cred:     CredentialCookie,
		fallback: "Failed to fetch agents",
	}, &agents)
	if err != nil {
		return nil, err
	}
	return agents.Agents, nil
}
