// ABOUTME: Assistant operations: list, get, create, update, tools, delete
// ABOUTME: All assistant endpoints authenticate with the access_token cookie

package client

import (
	"context"
	"net/http"
)

// ListAssistants returns the user's assistants.
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	var list Assistants
	err := c.doJSON(ctx, &request{
		op:       "ListAssistants",
		method:   http.MethodGet,
		path:     "/api/assistant",
		cred:     CredentialCookie,
		fallback: "Failed to fetch assistants",
	}, &list)
	return list, err
}

// GetAssistant returns one assistant.
func (c *Client) GetAssistant(ctx context.Context, id string) (*Assistant, error) {
	var a Assistant
	err := c.doJSON(ctx, &request{
		op:       "GetAssistant",
		method:   http.MethodGet,
		path:     pathf("/api/assistant/%s", id),
		cred:     CredentialCookie,
		fallback: "Failed to fetch assistant",
	}, &a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAssistant creates an assistant bound to a knowledge base.
func (c *Client) CreateAssistant(ctx context.Context, req CreateAssistantRequest) (*Assistant, error) {
	r := &request{
		op:       "CreateAssistant",
		method:   http.MethodPost,
		path:     "/api/assistant",
		cred:     CredentialCookie,
		fallback: "Failed to create assistant",
	}
	if err := r.jsonBody(req); err != nil {
		return nil, err
	}

	var a Assistant
	if err := c.doJSON(ctx, r, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAssistant changes the assistant's prompts and agent type.
func (c *Client) UpdateAssistant(ctx context.Context, id string, req UpdateAssistantRequest) (*Assistant, error) {
	r := &request{
		op:       "UpdateAssistant",
		method:   http.MethodPost,
		path:     pathf("/api/assistant/%s/update", id),
		cred:     CredentialCookie,
		fallback: "Failed to update assistant",
	}
	if err := r.jsonBody(req); err != nil {
		return nil, err
	}

	var a Assistant
	if err := c.doJSON(ctx, r, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateTools replaces the assistant's tool set.
func (c *Client) UpdateTools(ctx context.Context, id string, tools []ToolUpdate) error {
	if tools == nil {
		tools = []ToolUpdate{}
	}
	r := &request{
		op:       "UpdateTools",
		method:   http.MethodPost,
		path:     pathf("/api/assistant/%s/tools", id),
		cred:     CredentialCookie,
		fallback: "Failed to update tools",
	}
	if err := r.jsonBody(map[string][]ToolUpdate{"tools": tools}); err != nil {
		return err
	}
	return c.doJSON(ctx, r, nil)
}

// DeleteAssistant deletes an assistant and its conversations.
func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	return c.doJSON(ctx, &request{
		op:       "DeleteAssistant",
		method:   http.MethodDelete,
		path:     pathf("/api/assistant/%s", id),
		cred:     CredentialCookie,
		fallback: "Failed to delete assistant",
	}, nil)
}
