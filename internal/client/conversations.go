// ABOUTME: Conversation operations: list, create, rename, delete, history, send, export
// ABOUTME: History and non-streaming send use bearer credentials, the rest use the cookie

package client

import (
	"context"
	"net/http"
)

// ListConversations returns an assistant's conversations.
func (c *Client) ListConversations(ctx context.Context, assistantID string) ([]Conversation, error) {
	var list Conversations
	err := c.doJSON(ctx, &request{
		op:       "ListConversations",
		method:   http.MethodGet,
		path:     pathf("/api/assistant/%s/conversations", assistantID),
		cred:     CredentialCookie,
		fallback: "Failed to fetch assistant conversations",
	}, &list)
	return list, err
}

// CreateConversation starts a new conversation with an assistant.
func (c *Client) CreateConversation(ctx context.Context, assistantID string) (*Conversation, error) {
	var conv Conversation
	err := c.doJSON(ctx, &request{
		op:       "CreateConversation",
		method:   http.MethodPost,
		path:     pathf("/api/assistant/%s/conversations", assistantID),
		cred:     CredentialCookie,
		fallback: "Failed to create conversation",
	}, &conv)
	if err != nil {
		return nil, err
	}
	if conv.AssistantID == "" {
		conv.AssistantID = assistantID
	}
	return &conv, nil
}

// RenameConversation sets a conversation's display name.
func (c *Client) RenameConversation(ctx context.Context, assistantID, conversationID, name string) error {
	r := &request{
		op:       "RenameConversation",
		method:   http.MethodPost,
		path:     pathf("/api/assistant/%s/conversations/%s/rename", assistantID, conversationID),
		cred:     CredentialCookie,
		fallback: "Failed to rename conversation",
	}
	if err := r.jsonBody(map[string]string{"name": name}); err != nil {
		return err
	}
	return c.doJSON(ctx, r, nil)
}

// DeleteConversation deletes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, assistantID, conversationID string) error {
	return c.doJSON(ctx, &request{
		op:       "DeleteConversation",
		method:   http.MethodDelete,
		path:     pathf("/api/assistant/%s/conversations/%s", assistantID, conversationID),
		cred:     CredentialCookie,
		fallback: "Failed to delete conversation",
	}, nil)
}

// ConversationHistory returns a conversation's stored messages in order.
func (c *Client) ConversationHistory(ctx context.Context, assistantID, conversationID string) ([]HistoryMessage, error) {
	var history History
	err := c.doJSON(ctx, &request{
		op:       "ConversationHistory",
		method:   http.MethodGet,
		path:     pathf("/api/assistant/%s/conversations/%s/history", assistantID, conversationID),
		cred:     CredentialBearer,
		fallback: "Failed to fetch conversation history",
	}, &history)
	return history, err
}

// SendMessage posts a chat message and waits for the full assistant reply.
func (c *Client) SendMessage(ctx context.Context, assistantID, conversationID, content string) (*SendMessageResponse, error) {
	r := &request{
		op:       "SendMessage",
		method:   http.MethodPost,
		path:     pathf("/api/assistant/%s/conversations/%s/messages", assistantID, conversationID),
		cred:     CredentialBearer,
		fallback: "Failed to send message",
	}
	if err := r.jsonBody(map[string]string{"content": content}); err != nil {
		return nil, err
	}

	var resp SendMessageResponse
	if err := c.doJSON(ctx, r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportConversation downloads one conversation as a spreadsheet.
func (c *Client) ExportConversation(ctx context.Context, assistantID, conversationID string) (*Blob, error) {
	return c.doBlob(ctx, &request{
		op:       "ExportConversation",
		method:   http.MethodGet,
		path:     pathf("/api/assistant/%s/export/%s", assistantID, conversationID),
		cred:     CredentialCookie,
		fallback: "Failed to export conversation",
	})
}

// ExportConversations downloads all of an assistant's conversations.
func (c *Client) ExportConversations(ctx context.Context, assistantID string) (*Blob, error) {
	return c.doBlob(ctx, &request{
		op:       "ExportConversations",
		method:   http.MethodGet,
		path:     pathf("/api/assistant/%s/export_conversations", assistantID),
		cred:     CredentialCookie,
		fallback: "Failed to export conversations",
	})
}
