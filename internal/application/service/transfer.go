package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/domain/attachment"
	"github.com/atino/doc-approval-bridge/internal/domain/record"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/tracing"
)

// DefaultUploadKind is the "type" part of the approval upload form
const DefaultUploadKind = "attachment"

// TransferConfig holds attachment transfer settings
type TransferConfig struct {
	Policy      *attachment.Policy
	UploadKind  string
	CallTimeout time.Duration // per download/upload; 0 disables
	MaxFileSize int64         // bytes; 0 disables
}

// TransferRequest identifies the attachment field of one record
type TransferRequest struct {
	Record          record.Record
	AttachmentField string // column name in the record
	StorageFieldID  string // internal field id used in the scope token
	RecordID        string
	TableID         string
}

// SkippedAttachment explains why one attachment produced no upload code
type SkippedAttachment struct {
	Index  int           `json:"index"`
	Name   string        `json:"name"`
	Reason string        `json:"reason"`
	Kind   apperror.Kind `json:"kind"`
}

// TransferResult carries upload codes in input order, failures omitted
type TransferResult struct {
	UploadCodes []string
	Skipped     []SkippedAttachment
}

// AttachmentTransferer moves bitable attachments into the approval file store
type AttachmentTransferer struct {
	tabular   port.TabularStore
	approvals port.ApprovalStore
	cfg       TransferConfig
	logger    *zap.Logger
}

// NewAttachmentTransferer creates a transferer
func NewAttachmentTransferer(tabular port.TabularStore, approvals port.ApprovalStore, cfg TransferConfig, logger *zap.Logger) *AttachmentTransferer {
	if cfg.Policy == nil {
		cfg.Policy = attachment.NewPolicy(nil, nil)
	}
	if cfg.UploadKind == "" {
		cfg.UploadKind = DefaultUploadKind
	}
	return &AttachmentTransferer{
		tabular:   tabular,
		approvals: approvals,
		cfg:       cfg,
		logger:    logger,
	}
}

// Transfer downloads and re-uploads every attachment of the field, one at a
// time. A failing item is skipped and recorded; Transfer itself never fails.
func (t *AttachmentTransferer) Transfer(ctx context.Context, token string, req TransferRequest) *TransferResult {
	result := &TransferResult{UploadCodes: []string{}}

	refs, ok := req.Record.Attachments(req.AttachmentField)
	if !ok {
		t.logger.Info("Attachment field not found or not a list",
			zap.String("field", req.AttachmentField))
		return result
	}

	t.logger.Info("Transferring attachments",
		zap.String("field", req.AttachmentField),
		zap.Int("count", len(refs)))

	for i, ref := range refs {
		index := i + 1
		name := attachment.DisplayName(ref.Name, index)

		if err := ctx.Err(); err != nil {
			result.Skipped = append(result.Skipped, skipped(index, name, apperror.Transient("transfer", err)))
			continue
		}

		if !t.cfg.Policy.Supports(name) {
			err := apperror.Validation("unsupported file type %q", attachment.Extension(name))
			t.logger.Warn("Skipping unsupported attachment",
				zap.Int("index", index),
				zap.String("name", name))
			result.Skipped = append(result.Skipped, skipped(index, name, err))
			continue
		}

		t.logger.Info("Processing attachment",
			zap.Int("index", index),
			zap.Int("total", len(refs)),
			zap.String("name", name))

		code, err := t.transferOne(ctx, token, req, ref, name)
		if err != nil {
			t.logger.Warn("Attachment transfer failed, skipping",
				zap.Int("index", index),
				zap.String("name", name),
				zap.Error(err))
			result.Skipped = append(result.Skipped, skipped(index, name, err))
			continue
		}

		result.UploadCodes = append(result.UploadCodes, code)
		t.logger.Info("Attachment transferred",
			zap.Int("index", index),
			zap.String("name", name),
			zap.String("upload_code", code))
	}

	return result
}

func (t *AttachmentTransferer) transferOne(ctx context.Context, token string, req TransferRequest, ref record.AttachmentReference, name string) (code string, err error) {
	ctx, span := tracing.StartSpan(ctx, "transfer.attachment", map[string]string{"name": name})
	defer func() { tracing.EndSpan(span, err) }()

	scope := attachment.Scope{
		TableID:   req.TableID,
		FieldID:   req.StorageFieldID,
		RecordID:  req.RecordID,
		FileToken: ref.FileToken,
	}
	extra, err := scope.JSON()
	if err != nil {
		return "", apperror.Transient("build scope", err)
	}

	content, err := t.download(ctx, token, ref.FileToken, extra)
	if err != nil {
		return "", err
	}
	span.SetInt("size", len(content))

	contentType := t.cfg.Policy.MIMEType(name)
	t.checkContent(name, contentType, content)

	return t.upload(ctx, token, port.UploadFile{
		Name:        name,
		ContentType: contentType,
		Kind:        t.cfg.UploadKind,
		Content:     content,
	})
}

func (t *AttachmentTransferer) download(ctx context.Context, token, fileToken, extra string) ([]byte, error) {
	callCtx, cancel := withCallTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()

	content, err := t.tabular.DownloadMedia(callCtx, token, fileToken, extra)
	if err != nil {
		return nil, apperror.Transient("download", err)
	}
	if t.cfg.MaxFileSize > 0 && int64(len(content)) > t.cfg.MaxFileSize {
		return nil, apperror.Transient("download", fmt.Errorf("file size %d exceeds limit %d", len(content), t.cfg.MaxFileSize))
	}
	return content, nil
}

func (t *AttachmentTransferer) upload(ctx context.Context, token string, file port.UploadFile) (string, error) {
	callCtx, cancel := withCallTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()

	code, err := t.approvals.UploadFile(callCtx, token, file)
	if err != nil {
		return "", apperror.Transient("upload", err)
	}
	if code == "" {
		return "", apperror.Transient("upload", fmt.Errorf("no upload code returned"))
	}
	return code, nil
}

// checkContent logs when the sniffed content disagrees with the extension.
// The extension stays authoritative.
func (t *AttachmentTransferer) checkContent(name, declared string, content []byte) {
	if len(content) == 0 {
		t.logger.Warn("Downloaded attachment is empty", zap.String("name", name))
		return
	}
	detected := mimetype.Detect(content)
	if !detected.Is(declared) {
		t.logger.Warn("Attachment content does not match its extension",
			zap.String("name", name),
			zap.String("declared", declared),
			zap.String("detected", detected.String()))
	}
}

func skipped(index int, name string, err error) SkippedAttachment {
	return SkippedAttachment{
		Index:  index,
		Name:   name,
		Reason: err.Error(),
		Kind:   apperror.KindOf(err),
	}
}

func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
