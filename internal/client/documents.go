// ABOUTME: Document operations: upload, process, stop, status, download, delete
// ABOUTME: Uploads are multipart with a single "file" field; all calls use bearer credentials

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// UploadDocument uploads one file into a knowledge base. The caller is
// responsible for checking the file extension first.
func (c *Client) UploadDocument(ctx context.Context, kbID, fileName string, content io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("reading %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	var result UploadResult
	err = c.doJSON(ctx, &request{
		op:          "UploadDocument",
		method:      http.MethodPost,
		path:        "/api/kb/upload",
		query:       url.Values{"knowledge_base_id": {kbID}},
		body:        &buf,
		contentType: mw.FormDataContentType(),
		cred:        CredentialBearer,
		fallback:    "Failed to upload document",
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ProcessDocument starts ingestion of an uploaded document.
func (c *Client) ProcessDocument(ctx context.Context, docID string) error {
	return c.doJSON(ctx, &request{
		op:       "ProcessDocument",
		method:   http.MethodPost,
		path:     pathf("/api/kb/process/%s", docID),
		cred:     CredentialBearer,
		fallback: "Failed to process document",
	}, nil)
}

// StopProcessingDocument cancels ingestion of a document.
func (c *Client) StopProcessingDocument(ctx context.Context, docID string) error {
	return c.doJSON(ctx, &request{
		op:       "StopProcessingDocument",
		method:   http.MethodPost,
		path:     pathf("/api/kb/stop_processing/%s", docID),
		cred:     CredentialBearer,
		fallback: "Failed to stop processing document",
	}, nil)
}

// DocumentStatus returns the processing status of a document.
func (c *Client) DocumentStatus(ctx context.Context, docID string) (*DocumentStatus, error) {
	var status DocumentStatus
	err := c.doJSON(ctx, &request{
		op:       "DocumentStatus",
		method:   http.MethodGet,
		path:     pathf("/api/kb/document_status/%s", docID),
		cred:     CredentialBearer,
		fallback: "Failed to fetch document status",
	}, &status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// DownloadDocument streams the original file to w.
func (c *Client) DownloadDocument(ctx context.Context, docID string, w io.Writer) (int64, error) {
	return c.doStream(ctx, &request{
		op:       "DownloadDocument",
		method:   http.MethodGet,
		path:     pathf("/api/kb/download/%s", docID),
		cred:     CredentialBearer,
		fallback: "Failed to download document",
	}, w)
}

// DeleteDocument deletes a document. With deleteToRetry the backend keeps the
// record so it can be processed again.
func (c *Client) DeleteDocument(ctx context.Context, docID string, deleteToRetry bool) error {
	fallback := "Failed to delete document"
	if deleteToRetry {
		fallback = "Failed to clean up old document"
	}
	r := &request{
		op:       "DeleteDocument",
		method:   http.MethodDelete,
		path:     pathf("/api/kb/delete_document/%s", docID),
		cred:     CredentialBearer,
		fallback: fallback,
	}
	if err := r.jsonBody(map[string]bool{"delete_to_retry": deleteToRetry}); err != nil {
		return err
	}
	return c.doJSON(ctx, r, nil)
}
