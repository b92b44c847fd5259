package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/domain/approval"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/tracing"
)

// ApprovalService builds and submits approval instances
type ApprovalService interface {
	Submit(ctx context.Context, token string, data approval.FormData, uploadCodes []string, creatorID string) (string, error)
	Definition(ctx context.Context, token, approvalCode string) (*port.ApprovalDefinition, error)
}

type approvalServiceImpl struct {
	store   port.ApprovalStore
	builder *approval.Builder
	logger  *zap.Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(store port.ApprovalStore, builder *approval.Builder, logger *zap.Logger) ApprovalService {
	return &approvalServiceImpl{
		store:   store,
		builder: builder,
		logger:  logger,
	}
}

// Submit validates the form data, creates the instance and returns its code.
// Nothing is sent when validation fails.
func (s *approvalServiceImpl) Submit(ctx context.Context, token string, data approval.FormData, uploadCodes []string, creatorID string) (instanceCode string, err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.submit", map[string]string{
		"approval_code": s.builder.Schema().ApprovalCode,
	})
	defer func() { tracing.EndSpan(span, err) }()

	req, err := s.builder.Build(data, uploadCodes, creatorID)
	if err != nil {
		return "", err
	}

	s.logger.Info("Submitting approval instance",
		zap.String("approval_code", req.ApprovalCode),
		zap.Int("attachments", len(uploadCodes)),
		zap.String("form", req.Form))

	instanceCode, err = s.store.CreateInstance(ctx, token, req)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindUnknown {
			return "", apperror.RemoteErr("create approval instance", err)
		}
		return "", err
	}
	if instanceCode == "" {
		return "", apperror.Remote("create approval instance", -1, "response has no instance_code")
	}

	s.logger.Info("Approval instance created", zap.String("instance_code", instanceCode))
	return instanceCode, nil
}

// Definition fetches the approval template definition
func (s *approvalServiceImpl) Definition(ctx context.Context, token, approvalCode string) (*port.ApprovalDefinition, error) {
	if approvalCode == "" {
		return nil, apperror.Validation("approval code must not be empty")
	}
	def, err := s.store.GetDefinition(ctx, token, approvalCode)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindUnknown {
			return nil, apperror.RemoteErr("get approval definition", err)
		}
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("approval %s: empty definition", approvalCode)
	}
	return def, nil
}
