// ABOUTME: Dashboard operations: statistics, sources, exports, and word clouds
// ABOUTME: Export and word cloud responses are returned as binary blobs

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DashboardStatistics returns the user's aggregate chat statistics.
func (c *Client) DashboardStatistics(ctx context.Context) (*DashboardStatistics, error) {
	var stats DashboardStatistics
	err := c.doJSON(ctx, &request{
		op:       "DashboardStatistics",
		method:   http.MethodGet,
		path:     "/api/dashboard",
		cred:     CredentialCookie,
		fallback: "Something wrong happened",
	}, &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// DashboardSources lists the selectable sources of one kind
// (SourceKnowledgeBases, SourceAssistants, SourceConversations).
func (c *Client) DashboardSources(ctx context.Context, kind string) ([]Source, error) {
	switch kind {
	case SourceKnowledgeBases, SourceAssistants, SourceConversations:
	default:
		return nil, fmt.Errorf("unknown dashboard source %q", kind)
	}

	var sources Sources
	err := c.doJSON(ctx, &request{
		op:       "DashboardSources",
		method:   http.MethodGet,
		path:     pathf("/api/dashboard/%s", kind),
		cred:     CredentialCookie,
		fallback: "Failed to fetch options",
	}, &sources)
	return sources, err
}

// ExportFile downloads a prepared dashboard export by name.
func (c *Client) ExportFile(ctx context.Context, fileName string) (*Blob, error) {
	blob, err := c.doBlob(ctx, &request{
		op:       "ExportFile",
		method:   http.MethodGet,
		path:     pathf("/api/dashboard/export/%s", fileName),
		cred:     CredentialCookie,
		fallback: "Failed to export file",
	})
	if err != nil {
		return nil, err
	}
	if blob.Filename == "" {
		blob.Filename = fileName
	}
	return blob, nil
}

// WordCloud renders a word cloud PNG for a source. kind is one of
// WordCloudKnowledgeBase, WordCloudAssistant, WordCloudConversation;
// userMessages selects user rather than assistant messages.
func (c *Client) WordCloud(ctx context.Context, kind, sourceID string, userMessages bool) (*Blob, error) {
	switch kind {
	case WordCloudKnowledgeBase, WordCloudAssistant, WordCloudConversation:
	default:
		return nil, fmt.Errorf("unknown word cloud kind %q", kind)
	}

	return c.doBlob(ctx, &request{
		op:       "WordCloud",
		method:   http.MethodGet,
		path:     pathf("/api/dashboard/wordcloud/%s/%s", kind, sourceID),
		query:    url.Values{"is_user": {strconv.FormatBool(userMessages)}},
		cred:     CredentialCookie,
		fallback: "Failed to fetch word cloud",
	})
}
