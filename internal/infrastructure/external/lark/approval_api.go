package lark

import (
	"context"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkApproval "github.com/larksuite/oapi-sdk-go/v3/service/approval/v4"
	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/domain/approval"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/tracing"
)

// ApprovalAPI implements port.ApprovalStore. Instances and definitions go
// through the SDK; files go through the legacy upload endpoint.
type ApprovalAPI struct {
	client   *SDKClient
	uploader *FileUploader
	logger   *zap.Logger
}

// NewApprovalAPI creates a new approval API handler
func NewApprovalAPI(client *SDKClient, uploader *FileUploader, logger *zap.Logger) *ApprovalAPI {
	return &ApprovalAPI{
		client:   client,
		uploader: uploader,
		logger:   logger,
	}
}

// UploadFile pushes one file to the approval file store
func (a *ApprovalAPI) UploadFile(ctx context.Context, token string, file port.UploadFile) (string, error) {
	return a.uploader.Upload(ctx, token, file)
}

// CreateInstance submits an approval instance and returns its code
func (a *ApprovalAPI) CreateInstance(ctx context.Context, token string, in *approval.InstanceRequest) (code string, err error) {
	const op = "create approval instance"

	ctx, span := tracing.StartClientSpan(ctx, "lark.approval.create_instance", map[string]string{
		"approval_code": in.ApprovalCode,
	})
	defer func() { tracing.EndSpan(span, err) }()

	req := larkApproval.NewCreateInstanceReqBuilder().
		InstanceCreate(larkApproval.NewInstanceCreateBuilder().
			ApprovalCode(in.ApprovalCode).
			OpenId(in.OpenID).
			Form(in.Form).
			Build()).
		Build()

	resp, err := a.client.client.Approval.Instance.Create(ctx, req, larkcore.WithTenantAccessToken(token))
	if err != nil {
		a.logger.Error("Failed to create instance",
			zap.String("approval_code", in.ApprovalCode),
			zap.Error(err))
		return "", apperror.RemoteErr(op, err)
	}
	if !resp.Success() {
		a.logger.Error("API returned failure",
			zap.String("approval_code", in.ApprovalCode),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", apperror.Remote(op, resp.Code, resp.Msg)
	}
	if resp.Data == nil {
		return "", nil
	}

	return derefString(resp.Data.InstanceCode), nil
}

// GetDefinition retrieves an approval template definition
func (a *ApprovalAPI) GetDefinition(ctx context.Context, token, approvalCode string) (def *port.ApprovalDefinition, err error) {
	const op = "get approval definition"

	ctx, span := tracing.StartClientSpan(ctx, "lark.approval.get_definition", map[string]string{
		"approval_code": approvalCode,
	})
	defer func() { tracing.EndSpan(span, err) }()

	req := larkApproval.NewGetApprovalReqBuilder().
		ApprovalCode(approvalCode).
		Build()

	resp, err := a.client.client.Approval.Approval.Get(ctx, req, larkcore.WithTenantAccessToken(token))
	if err != nil {
		return nil, apperror.RemoteErr(op, err)
	}
	if !resp.Success() {
		return nil, apperror.Remote(op, resp.Code, resp.Msg)
	}

	def = &port.ApprovalDefinition{ApprovalCode: approvalCode}
	if resp.Data != nil {
		def.ApprovalName = derefString(resp.Data.ApprovalName)
		def.Status = derefString(resp.Data.Status)
		def.Form = derefString(resp.Data.Form)
		def.NodeList = resp.Data.NodeList
		def.Raw = resp.Data
	}
	return def, nil
}
