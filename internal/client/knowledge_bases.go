// ABOUTME: Knowledge base operations: list, get, create, inherit, delete
// ABOUTME: Mixes cookie and bearer credentials per endpoint as the backend expects

package client

import (
	"context"
	"net/http"
)

// ListKnowledgeBases returns the user's knowledge bases.
func (c *Client) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	var list KnowledgeBases
	err := c.doJSON(ctx, &request{
		op:       "ListKnowledgeBases",
		method:   http.MethodGet,
		path:     "/api/kb/get_all",
		cred:     CredentialCookie,
		fallback: "Failed to fetch knowledge bases",
	}, &list)
	return list, err
}

// GetKnowledgeBase returns one knowledge base with its documents.
func (c *Client) GetKnowledgeBase(ctx context.Context, id string) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	err := c.doJSON(ctx, &request{
		op:       "GetKnowledgeBase",
		method:   http.MethodGet,
		path:     pathf("/api/kb/get_kb/%s", id),
		cred:     CredentialBearer,
		fallback: "Failed to fetch knowledge base",
	}, &kb)
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

// CreateKnowledgeBase creates an empty knowledge base.
func (c *Client) CreateKnowledgeBase(ctx context.Context, req CreateKnowledgeBaseRequest) (*KnowledgeBase, error) {
	r := &request{
		op:       "CreateKnowledgeBase",
		method:   http.MethodPost,
		path:     "/api/kb/create",
		cred:     CredentialCookie,
		fallback: "Failed to create knowledge base",
	}
	if err := r.jsonBody(req); err != nil {
		return nil, err
	}

	var kb KnowledgeBase
	if err := c.doJSON(ctx, r, &kb); err != nil {
		return nil, err
	}
	return &kb, nil
}

// InheritKnowledgeBase copies the documents of source into target.
func (c *Client) InheritKnowledgeBase(ctx context.Context, req InheritKnowledgeBaseRequest) error {
	r := &request{
		op:       "InheritKnowledgeBase",
		method:   http.MethodPost,
		path:     "/api/kb/inherit_kb",
		cred:     CredentialCookie,
		fallback: "Failed to inherit knowledge base",
	}
	if err := r.jsonBody(req); err != nil {
		return err
	}
	return c.doJSON(ctx, r, nil)
}

// DeleteKnowledgeBase deletes a knowledge base and its documents.
func (c *Client) DeleteKnowledgeBase(ctx context.Context, id string) error {
	return c.doJSON(ctx, &request{
		op:       "DeleteKnowledgeBase",
		method:   http.MethodDelete,
		path:     pathf("/api/kb/delete_kb/%s", id),
		cred:     CredentialBearer,
		fallback: "Failed to delete knowledge base",
	}, nil)
}
