package service

import (
	"context"
	"errors"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/approval"
	"github.com/atino/doc-approval-bridge/internal/domain/record"
)

var pdfContent = []byte("%PDF-1.4\n%test document\n")

type mockAuthenticator struct {
	tokenFunc func(ctx context.Context) (string, error)
	calls     int
}

func (m *mockAuthenticator) TenantAccessToken(ctx context.Context) (string, error) {
	m.calls++
	if m.tokenFunc != nil {
		return m.tokenFunc(ctx)
	}
	return "t-token", nil
}

type downloadCall struct {
	FileToken string
	Extra     string
}

type mockTabularStore struct {
	getRecordFunc     func(ctx context.Context, token string, loc port.RecordLocator) (record.Record, error)
	listFieldsFunc    func(ctx context.Context, token, appToken, tableID string) ([]port.FieldMeta, error)
	downloadMediaFunc func(ctx context.Context, token, fileToken, extra string) ([]byte, error)
	downloads         []downloadCall
}

func (m *mockTabularStore) GetRecord(ctx context.Context, token string, loc port.RecordLocator) (record.Record, error) {
	if m.getRecordFunc != nil {
		return m.getRecordFunc(ctx, token, loc)
	}
	return nil, errors.New("not configured")
}

func (m *mockTabularStore) ListFields(ctx context.Context, token, appToken, tableID string) ([]port.FieldMeta, error) {
	if m.listFieldsFunc != nil {
		return m.listFieldsFunc(ctx, token, appToken, tableID)
	}
	return []port.FieldMeta{{FieldID: "fld_att", FieldName: "Hồ sơ đính kèm", Type: 17}}, nil
}

func (m *mockTabularStore) DownloadMedia(ctx context.Context, token, fileToken, extra string) ([]byte, error) {
	m.downloads = append(m.downloads, downloadCall{FileToken: fileToken, Extra: extra})
	if m.downloadMediaFunc != nil {
		return m.downloadMediaFunc(ctx, token, fileToken, extra)
	}
	return pdfContent, nil
}

type mockApprovalStore struct {
	uploadFileFunc     func(ctx context.Context, token string, file port.UploadFile) (string, error)
	createInstanceFunc func(ctx context.Context, token string, req *approval.InstanceRequest) (string, error)
	getDefinitionFunc  func(ctx context.Context, token, approvalCode string) (*port.ApprovalDefinition, error)
	uploads            []port.UploadFile
	instances          []*approval.InstanceRequest
}

func (m *mockApprovalStore) UploadFile(ctx context.Context, token string, file port.UploadFile) (string, error) {
	m.uploads = append(m.uploads, file)
	if m.uploadFileFunc != nil {
		return m.uploadFileFunc(ctx, token, file)
	}
	return "U-" + file.Name, nil
}

func (m *mockApprovalStore) CreateInstance(ctx context.Context, token string, req *approval.InstanceRequest) (string, error) {
	m.instances = append(m.instances, req)
	if m.createInstanceFunc != nil {
		return m.createInstanceFunc(ctx, token, req)
	}
	return "INST-1", nil
}

func (m *mockApprovalStore) GetDefinition(ctx context.Context, token, approvalCode string) (*port.ApprovalDefinition, error) {
	if m.getDefinitionFunc != nil {
		return m.getDefinitionFunc(ctx, token, approvalCode)
	}
	return &port.ApprovalDefinition{ApprovalCode: approvalCode, ApprovalName: "Document approval", Form: "[]"}, nil
}

func attachmentItem(token, name string) map[string]interface{} {
	return map[string]interface{}{"file_token": token, "name": name}
}

func attachmentField(items ...map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
