package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/tracing"
)

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FileUploader posts files to the approval file upload endpoint. The
// endpoint predates the open API and is not covered by the SDK.
type FileUploader struct {
	url        string
	httpClient HTTPClient
	logger     *zap.Logger
}

// NewFileUploader creates a new uploader. An empty url selects DefaultUploadURL.
func NewFileUploader(url string, timeout time.Duration, logger *zap.Logger) *FileUploader {
	if url == "" {
		url = DefaultUploadURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FileUploader{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (u *FileUploader) WithHTTPClient(c HTTPClient) *FileUploader {
	u.httpClient = c
	return u
}

type uploadResponse struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Data    struct {
		Code string `json:"code"`
		URL  string `json:"url"`
	} `json:"data"`
}

// Upload sends the file as multipart/form-data with the parts name, type
// and content, and returns the upload code
func (u *FileUploader) Upload(ctx context.Context, token string, file port.UploadFile) (code string, err error) {
	const op = "upload file"

	ctx, span := tracing.StartClientSpan(ctx, "lark.approval.upload_file", map[string]string{"name": file.Name})
	defer func() { tracing.EndSpan(span, err) }()

	body, contentType, err := encodeUpload(file)
	if err != nil {
		return "", apperror.Transient(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		u.logger.Warn("Upload request failed",
			zap.String("name", file.Name),
			zap.Error(err))
		return "", apperror.RemoteErr(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperror.RemoteErr(op, fmt.Errorf("failed to read response: %w", err))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", apperror.Remote(op, resp.StatusCode, fmt.Sprintf("upload failed with status %d", resp.StatusCode))
		}
		return "", apperror.Parse(op, err)
	}
	if parsed.Code != 0 {
		msg := parsed.Msg
		if msg == "" {
			msg = parsed.Message
		}
		return "", apperror.Remote(op, parsed.Code, msg)
	}
	if parsed.Data.Code == "" {
		return "", apperror.Remote(op, parsed.Code, "response has no upload code")
	}

	u.logger.Debug("File uploaded",
		zap.String("name", file.Name),
		zap.Int("size", len(file.Content)),
		zap.String("code", parsed.Data.Code))
	return parsed.Data.Code, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeUpload(file port.UploadFile) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if err := w.WriteField("name", file.Name); err != nil {
		return nil, "", fmt.Errorf("failed to write name: %w", err)
	}
	if err := w.WriteField("type", file.Kind); err != nil {
		return nil, "", fmt.Errorf("failed to write type: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="content"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	h.Set("Content-Type", file.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create content part: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", fmt.Errorf("failed to write content: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return body, w.FormDataContentType(), nil
}
