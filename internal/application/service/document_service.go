package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/domain/approval"
	"github.com/atino/doc-approval-bridge/internal/domain/record"
	"github.com/atino/doc-approval-bridge/internal/domain/workflow"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/tracing"
)

// Schema keys filled from dedicated request parameters
const (
	KeyID   = "id"
	KeyType = "vanBanCap1"
)

// ProcessRequest identifies the record to submit and how its columns are named
type ProcessRequest struct {
	RecordID            string
	AppToken            string
	TableID             string
	IDFieldName         string
	TypeFieldName       string
	AttachmentFieldName string
	FieldNames          map[string]string // schema key -> column, overrides the schema default
	CreatorOpenID       interface{}       // plain string or rich-text array
}

// Validate checks the locator parameters
func (r *ProcessRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.RecordID) == "":
		return apperror.Validation("recordId is required")
	case strings.TrimSpace(r.AppToken) == "":
		return apperror.Validation("appToken is required")
	case strings.TrimSpace(r.TableID) == "":
		return apperror.Validation("tableID is required")
	case strings.TrimSpace(r.AttachmentFieldName) == "":
		return apperror.Validation("hoSoDinhKemFieldName is required")
	}
	return nil
}

// ProcessResult is the outcome of a successful run
type ProcessResult struct {
	InstanceCode string
	DocumentInfo map[string]string
	UploadCodes  []string
	Skipped      []SkippedAttachment
	History      []workflow.Transition
}

// DocumentService runs the record-to-approval pipeline
type DocumentService interface {
	Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
	DebugApproval(ctx context.Context, approvalCode string) (*port.ApprovalDefinition, error)
}

type documentServiceImpl struct {
	auth        port.Authenticator
	tabular     port.TabularStore
	transferer  *AttachmentTransferer
	approvals   ApprovalService
	schema      *approval.FormSchema
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	auth port.Authenticator,
	tabular port.TabularStore,
	transferer *AttachmentTransferer,
	approvals ApprovalService,
	schema *approval.FormSchema,
	callTimeout time.Duration,
	logger *zap.Logger,
) DocumentService {
	return &documentServiceImpl{
		auth:        auth,
		tabular:     tabular,
		transferer:  transferer,
		approvals:   approvals,
		schema:      schema,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// run carries the per-invocation state of Process
type run struct {
	req      ProcessRequest
	machine  *workflow.Machine
	logger   *zap.Logger
	token    string
	rec      record.Record
	fieldID  string
	data     approval.FormData
	creator  string
	transfer *TransferResult
	instance string
}

// Process authenticates, fetches the record, resolves the attachment field,
// extracts and validates fields, transfers attachments and submits the
// approval. The first failing stage aborts the run.
func (s *documentServiceImpl) Process(ctx context.Context, req ProcessRequest) (result *ProcessResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "document.process", map[string]string{
		"record_id": req.RecordID,
		"table_id":  req.TableID,
	})
	defer func() { tracing.EndSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		req:     req,
		machine: workflow.NewMachine(),
		logger:  s.logger.With(zap.String("record_id", req.RecordID)),
	}

	stages := []struct {
		trigger workflow.Trigger
		fn      func(ctx context.Context, r *run) error
	}{
		{workflow.TriggerAuthenticated, s.authenticate},
		{workflow.TriggerRecordFetched, s.fetchRecord},
		{workflow.TriggerFieldResolved, s.resolveField},
		{workflow.TriggerFieldsExtracted, s.extractFields},
		{workflow.TriggerAttachmentsTransferred, s.transferAttachments},
		{workflow.TriggerApprovalSubmitted, s.submitApproval},
	}

	for _, stage := range stages {
		state := r.machine.State()
		stageCtx, stageSpan := tracing.StartSpan(ctx, "stage."+strings.ToLower(state.String()), nil)
		stageErr := stage.fn(stageCtx, r)
		tracing.EndSpan(stageSpan, stageErr)

		if stageErr != nil {
			r.machine.Fail(stageErr)
			r.logger.Error("Document processing failed",
				zap.String("stage", state.String()),
				zap.String("kind", apperror.KindOf(stageErr).String()),
				zap.Error(stageErr))
			return nil, stageErr
		}
		if err := r.machine.Fire(stage.trigger); err != nil {
			return nil, fmt.Errorf("stage %s: %w", state, err)
		}
	}

	r.logger.Info("Document processed",
		zap.String("instance_code", r.instance),
		zap.Int("uploaded", len(r.transfer.UploadCodes)),
		zap.Int("skipped", len(r.transfer.Skipped)))

	return &ProcessResult{
		InstanceCode: r.instance,
		DocumentInfo: documentInfo(r.data),
		UploadCodes:  r.transfer.UploadCodes,
		Skipped:      r.transfer.Skipped,
		History:      r.machine.History(),
	}, nil
}

func (s *documentServiceImpl) authenticate(ctx context.Context, r *run) error {
	callCtx, cancel := withCallTimeout(ctx, s.callTimeout)
	defer cancel()

	token, err := s.auth.TenantAccessToken(callCtx)
	if err != nil {
		return err
	}
	r.token = token
	return nil
}

func (s *documentServiceImpl) fetchRecord(ctx context.Context, r *run) error {
	callCtx, cancel := withCallTimeout(ctx, s.callTimeout)
	defer cancel()

	rec, err := s.tabular.GetRecord(callCtx, r.token, port.RecordLocator{
		AppToken: r.req.AppToken,
		TableID:  r.req.TableID,
		RecordID: r.req.RecordID,
	})
	if err != nil {
		return err
	}
	r.rec = rec
	r.logger.Info("Record fetched", zap.Int("fields", len(rec)))
	return nil
}

func (s *documentServiceImpl) resolveField(ctx context.Context, r *run) error {
	callCtx, cancel := withCallTimeout(ctx, s.callTimeout)
	defer cancel()

	fields, err := s.tabular.ListFields(callCtx, r.token, r.req.AppToken, r.req.TableID)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.FieldName == r.req.AttachmentFieldName {
			r.fieldID = f.FieldID
			r.logger.Debug("Attachment field resolved",
				zap.String("field_name", f.FieldName),
				zap.String("field_id", f.FieldID))
			return nil
		}
	}
	return apperror.Remote("resolve field", 0, fmt.Sprintf("field %q not found", r.req.AttachmentFieldName))
}

func (s *documentServiceImpl) extractFields(_ context.Context, r *run) error {
	data := make(approval.FormData, len(s.schema.Fields))
	for _, f := range s.schema.Fields {
		column := s.columnFor(r.req, f)
		if column == "" {
			continue
		}
		switch f.Type {
		case approval.WidgetAmount:
			if amount, ok := record.ExtractAmount(r.rec, column); ok {
				data[f.Key] = amount.String()
			}
		default:
			if v := record.Extract(r.rec, column); v != "" {
				data[f.Key] = v
			}
		}
	}

	r.data = data
	r.creator = record.ValueOf(r.req.CreatorOpenID).String()

	return approval.NewBuilder(s.schema).Validate(data, r.creator)
}

func (s *documentServiceImpl) transferAttachments(ctx context.Context, r *run) error {
	r.transfer = s.transferer.Transfer(ctx, r.token, TransferRequest{
		Record:          r.rec,
		AttachmentField: r.req.AttachmentFieldName,
		StorageFieldID:  r.fieldID,
		RecordID:        r.req.RecordID,
		TableID:         r.req.TableID,
	})
	return nil
}

func (s *documentServiceImpl) submitApproval(ctx context.Context, r *run) error {
	callCtx, cancel := withCallTimeout(ctx, s.callTimeout)
	defer cancel()

	code, err := s.approvals.Submit(callCtx, r.token, r.data, r.transfer.UploadCodes, r.creator)
	if err != nil {
		return err
	}
	r.instance = code
	return nil
}

// columnFor picks the record column of a schema field: the dedicated request
// parameter, then the request's fieldNames override, then the schema default
func (s *documentServiceImpl) columnFor(req ProcessRequest, f approval.FieldSpec) string {
	switch {
	case f.Key == KeyID && req.IDFieldName != "":
		return req.IDFieldName
	case f.Key == KeyType && req.TypeFieldName != "":
		return req.TypeFieldName
	}
	if col, ok := req.FieldNames[f.Key]; ok && col != "" {
		return col
	}
	return f.Column
}

// DebugApproval fetches the definition of an approval template
func (s *documentServiceImpl) DebugApproval(ctx context.Context, approvalCode string) (def *port.ApprovalDefinition, err error) {
	ctx, span := tracing.StartSpan(ctx, "document.debug_approval", map[string]string{"approval_code": approvalCode})
	defer func() { tracing.EndSpan(span, err) }()

	callCtx, cancel := withCallTimeout(ctx, s.callTimeout)
	token, err := s.auth.TenantAccessToken(callCtx)
	cancel()
	if err != nil {
		return nil, err
	}

	callCtx, cancel = withCallTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.approvals.Definition(callCtx, token, approvalCode)
}

func documentInfo(data approval.FormData) map[string]string {
	info := make(map[string]string, len(data))
	for k, v := range data {
		info[k] = v
	}
	return info
}
