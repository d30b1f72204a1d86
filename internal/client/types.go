// ABOUTME: Request and response types for the backend API
// ABOUTME: Responses validate their required fields at the client boundary

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the identity returned by /api/users/me.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("user id is empty")
	}
	if u.Username == "" {
		return errors.New("username is empty")
	}
	return nil
}

// LoginResponse is returned by the form login endpoint.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	// Expires is an optional server-provided expiry timestamp.
	Expires string `json:"expires,omitempty"`
}

func (r *LoginResponse) Validate() error {
	if r.AccessToken == "" {
		return errors.New("access_token is empty")
	}
	return nil
}

// RegisterRequest creates a user account.
type RegisterRequest struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	RetypePassword   string `json:"retypePassword"`
	AdminAccessToken string `json:"admin_access_token,omitempty"`
}

// RegisterResponse is returned by the create-user endpoint.
type RegisterResponse struct {
	Username string `json:"username"`
	Detail   string `json:"detail,omitempty"`
}

// Document processing states
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// Document is a file attached to a knowledge base.
type Document struct {
	ID            string   `json:"id"`
	FileName      string   `json:"file_name"`
	FileType      string   `json:"file_type"`
	FileSizeInMB  float64  `json:"file_size_in_mb"`
	Status        string   `json:"status"`
	Progress      *float64 `json:"progress,omitempty"`
	CreatedAt     string   `json:"created_at"`
	KnowledgeBase string   `json:"knowledge_base_id,omitempty"`
}

func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New("document id is empty")
	}
	return nil
}

// KnowledgeBase is a named collection of documents.
type KnowledgeBase struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	DocumentCount   int        `json:"document_count"`
	LastUpdated     string     `json:"last_updated"`
	UpdatedAt       string     `json:"updated_at"`
	IsContextualRAG bool       `json:"is_contextual_rag,omitempty"`
	Documents       []Document `json:"documents,omitempty"`
}

func (kb *KnowledgeBase) Validate() error {
	if kb.ID == "" {
		return errors.New("knowledge base id is empty")
	}
	for i := range kb.Documents {
		if err := kb.Documents[i].Validate(); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}
	return nil
}

// KnowledgeBases is the list returned by /api/kb/get_all.
type KnowledgeBases []KnowledgeBase

func (l KnowledgeBases) Validate() error {
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return fmt.Errorf("knowledge base %d: %w", i, err)
		}
	}
	return nil
}

// CreateKnowledgeBaseRequest creates a knowledge base.
type CreateKnowledgeBaseRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsContextualRAG bool   `json:"is_contextual_rag"`
}

// InheritKnowledgeBaseRequest copies the documents of one knowledge base into another.
type InheritKnowledgeBaseRequest struct {
	SourceKnowledgeBaseID string `json:"source_knowledge_base_id"`
	TargetKnowledgeBaseID string `json:"target_knowledge_base_id"`
}

// UploadResult is returned by the upload endpoint.
type UploadResult struct {
	DocID        string  `json:"doc_id"`
	FileName     string  `json:"file_name"`
	FileType     string  `json:"file_type"`
	FileSizeInMB float64 `json:"file_size_in_mb"`
	CreatedAt    string  `json:"created_at"`
	Status       string  `json:"status"`
}

func (r *UploadResult) Validate() error {
	if r.DocID == "" {
		return errors.New("doc_id is empty")
	}
	return nil
}

// Document converts an upload result into a document record.
func (r *UploadResult) Document() Document {
	status := r.Status
	if status == "" {
		status = StatusUploaded
	}
	return Document{
		ID:           r.DocID,
		FileName:     r.FileName,
		FileType:     r.FileType,
		FileSizeInMB: r.FileSizeInMB,
		Status:       status,
		CreatedAt:    r.CreatedAt,
	}
}

// DocumentStatus is returned by the status and process endpoints.
type DocumentStatus struct {
	Status   string   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
}

func (s *DocumentStatus) Validate() error {
	switch s.Status {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown document status %q", s.Status)
	}
}

// ToolConfig is an assistant's configuration for one tool.
type ToolConfig struct {
	Description    string `json:"description"`
	ReturnAsAnswer bool   `json:"return_as_answer"`
}

// ToolSet maps tool name to its configuration. The backend sends either an
// object keyed by tool name or a plain list of names.
type ToolSet map[string]ToolConfig

func (t *ToolSet) UnmarshalJSON(data []byte) error {
	var byName map[string]ToolConfig
	if err := json.Unmarshal(data, &byName); err == nil {
		*t = byName
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("tools must be an object or a list of names: %w", err)
	}
	set := make(ToolSet, len(names))
	for _, n := range names {
		set[n] = ToolConfig{}
	}
	*t = set
	return nil
}

// Names returns the tool names in sorted order.
func (t ToolSet) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Assistant is a configured chat agent bound to a knowledge base.
type Assistant struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	InstructPrompt  string         `json:"instruct_prompt"`
	AgentBackstory  string         `json:"agent_backstory,omitempty"`
	KnowledgeBaseID string         `json:"knowledge_base_id,omitempty"`
	Tools           ToolSet        `json:"tools,omitempty"`
	ExistTools      []string       `json:"exist_tools,omitempty"`
	Configuration   map[string]any `json:"configuration,omitempty"`
	AgentType       string         `json:"agent_type,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

func (a *Assistant) Validate() error {
	if a.ID == "" {
		return errors.New("assistant id is empty")
	}
	return nil
}

// Assistants is the list returned by /api/assistant.
type Assistants []Assistant

func (l Assistants) Validate() error {
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return fmt.Errorf("assistant %d: %w", i, err)
		}
	}
	return nil
}

// CreateAssistantRequest creates an assistant.
type CreateAssistantRequest struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	InstructPrompt  string         `json:"instruct_prompt"`
	AgentBackstory  string         `json:"agent_backstory,omitempty"`
	KnowledgeBaseID string         `json:"knowledge_base_id"`
	Configuration   map[string]any `json:"configuration"`
	AgentType       string         `json:"agent_type,omitempty"`
}

// UpdateAssistantRequest changes an assistant's prompts and agent type.
type UpdateAssistantRequest struct {
	InstructPrompt string `json:"instruct_prompt"`
	AgentBackstory string `json:"agent_backstory,omitempty"`
	AgentType      string `json:"agent_type,omitempty"`
}

// ToolUpdate is one entry of an UpdateTools request.
type ToolUpdate struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	ReturnAsAnswer bool   `json:"return_as_answer"`
}

// Conversation is a chat session with an assistant.
type Conversation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AssistantID string `json:"assistant_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (c *Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("conversation id is empty")
	}
	return nil
}

// Conversations is the list returned for an assistant.
type Conversations []Conversation

func (l Conversations) Validate() error {
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return fmt.Errorf("conversation %d: %w", i, err)
		}
	}
	return nil
}

// Message senders in conversation history
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// HistoryMessage is one stored message of a conversation.
type HistoryMessage struct {
	ID         string         `json:"id,omitempty"`
	SenderType string         `json:"sender_type"`
	Content    string         `json:"content"`
	MediaType  string         `json:"media_type,omitempty"`
	Type       string         `json:"type,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty"`
}

// Media returns the message media type. Older history rows use "type".
func (m *HistoryMessage) Media() string {
	if m.MediaType != "" {
		return m.MediaType
	}
	return m.Type
}

// History is a conversation's stored messages in order.
type History []HistoryMessage

func (h History) Validate() error {
	for i := range h {
		switch h[i].SenderType {
		case SenderUser, SenderAssistant:
		default:
			return fmt.Errorf("message %d: unknown sender_type %q", i, h[i].SenderType)
		}
	}
	return nil
}

// SendMessageResponse is the reply to a non-streaming chat message.
type SendMessageResponse struct {
	AssistantMessage string         `json:"assistant_message"`
	Type             string         `json:"type"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        string         `json:"created_at,omitempty"`
}

func (r *SendMessageResponse) Validate() error { return nil }

// Tools is the catalog returned by /api/tools.
type Tools struct {
	Tools []string `json:"tools"`
}

func (t *Tools) Validate() error {
	if t.Tools == nil {
		return errors.New("tools is missing")
	}
	return nil
}

// Agents is the agent-type catalog returned by /api/agent.
type Agents struct {
	Agents []string `json:"agents"`
}

func (a *Agents) Validate() error {
	if a.Agents == nil {
		return errors.New("agents is missing")
	}
	return nil
}

// AssistantStatistics counts conversations per assistant.
type AssistantStatistics struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	NumberOfConversations int    `json:"number_of_conversations"`
}

// ConversationStatistics summarises one conversation.
type ConversationStatistics struct {
	ID                     string  `json:"id"`
	AverageSessionChatTime float64 `json:"average_session_chat_time"`
	AverageUserMessages    float64 `json:"average_user_messages"`
}

// KnowledgeBaseStatistics counts user messages per knowledge base.
type KnowledgeBaseStatistics struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	TotalUserMessages int    `json:"total_user_messages"`
}

// DashboardStatistics is the aggregate returned by /api/dashboard.
type DashboardStatistics struct {
	TotalConversations           int                       `json:"total_conversations"`
	AssistantStatistics          []AssistantStatistics     `json:"assistant_statistics"`
	ConversationsStatistics      []ConversationStatistics  `json:"conversations_statistics"`
	AverageAssistantResponseTime float64                   `json:"average_assistant_response_time"`
	KnowledgeBaseStatistics      []KnowledgeBaseStatistics `json:"knowledge_base_statistics"`
	// FileName and FileConversationName name the exports ready for ExportFile.
	FileName             string `json:"file_name"`
	FileConversationName string `json:"file_conversation_name"`
}

func (d *DashboardStatistics) Validate() error {
	if d.TotalConversations < 0 {
		return errors.New("total_conversations is negative")
	}
	return nil
}

// Dashboard source kinds for DashboardSources and WordCloud.
const (
	SourceKnowledgeBases = "kbs"
	SourceAssistants     = "assistants"
	SourceConversations  = "conversations"
)

// WordCloud kinds
const (
	WordCloudKnowledgeBase = "kb"
	WordCloudAssistant     = "assistant"
	WordCloudConversation  = "conversation"
)

// Source is a selectable dashboard source.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Sources is a list of dashboard sources.
type Sources []Source

func (s Sources) Validate() error {
	for i := range s {
		if s[i].ID == "" {
			return fmt.Errorf("source %d: id is empty", i)
		}
	}
	return nil
}

// AdminUser is a user row in the admin console.
type AdminUser struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role"`
	Organization string `json:"organization,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// AdminUsers is the list returned by /api/admin/users.
type AdminUsers []AdminUser

func (l AdminUsers) Validate() error {
	for i := range l {
		if l[i].ID == "" {
			return fmt.Errorf("user %d: id is empty", i)
		}
	}
	return nil
}

// APIToken is a long-lived token issued by an admin.
type APIToken struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (t *APIToken) Validate() error {
	if t.ID == "" {
		return errors.New("token id is empty")
	}
	return nil
}

// APITokens is the list returned by /api/admin/tokens.
type APITokens []APIToken

func (l APITokens) Validate() error {
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return fmt.Errorf("token %d: %w", i, err)
		}
	}
	return nil
}

// SwitchUserResponse carries the impersonated user's session.
type SwitchUserResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
	Type        string `json:"type"`
	Expires     string `json:"expires,omitempty"`
}

func (r *SwitchUserResponse) Validate() error {
	if r.AccessToken == "" {
		return errors.New("access_token is empty")
	}
	return r.User.Validate()
}

// CheckSegment rejects IDs that path cleaning would drop or collapse, which
// would send the request to a different route.
func CheckSegment(id string) error {
	switch strings.TrimSpace(id) {
	case "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case ".", "..":
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// checkPath applies CheckSegment to every segment of an API path.
func checkPath(p string) error {
	for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if err := CheckSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

// pathf formats an API path, escaping each argument as a path segment.
func pathf(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(strings.TrimSpace(a))
	}
	return fmt.Sprintf(format, escaped...)
}
