package port

import (
	"context"

	"github.com/atino/doc-approval-bridge/internal/domain/approval"
	"github.com/atino/doc-approval-bridge/internal/domain/record"
)

// RecordLocator addresses one bitable row
type RecordLocator struct {
	AppToken string
	TableID  string
	RecordID string
}

// FieldMeta describes a bitable column
type FieldMeta struct {
	FieldID   string
	FieldName string
	Type      int
}

// UploadFile is one file to push to the approval file store
type UploadFile struct {
	Name        string
	ContentType string
	Kind        string // "attachment" or "image"
	Content     []byte
}

// ApprovalDefinition is the remote description of an approval template
type ApprovalDefinition struct {
	ApprovalCode string      `json:"approval_code"`
	ApprovalName string      `json:"approval_name"`
	Status       string      `json:"status,omitempty"`
	Form         string      `json:"form"`
	NodeList     interface{} `json:"node_list,omitempty"`
	Raw          interface{} `json:"raw,omitempty"`
}

// Authenticator obtains a tenant access token. Every call hits the remote
// endpoint; tokens are not cached.
type Authenticator interface {
	TenantAccessToken(ctx context.Context) (string, error)
}

// TabularStore reads records and attachment content from Larkbase
type TabularStore interface {
	GetRecord(ctx context.Context, token string, loc RecordLocator) (record.Record, error)
	ListFields(ctx context.Context, token, appToken, tableID string) ([]FieldMeta, error)
	// DownloadMedia fetches an attachment; extra is the raw (unescaped) scope token
	DownloadMedia(ctx context.Context, token, fileToken, extra string) ([]byte, error)
}

// ApprovalStore uploads files and creates instances in Lark Approval
type ApprovalStore interface {
	UploadFile(ctx context.Context, token string, file UploadFile) (string, error)
	CreateInstance(ctx context.Context, token string, req *approval.InstanceRequest) (string, error)
	GetDefinition(ctx context.Context, token, approvalCode string) (*ApprovalDefinition, error)
}
