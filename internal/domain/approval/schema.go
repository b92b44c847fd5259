// Package approval maps extracted record values onto the widget schema of a
// Lark approval template.
package approval

import (
	"fmt"
	"time"
)

// WidgetType is the widget kind understood by the approval engine
type WidgetType string

const (
	WidgetInput      WidgetType = "input"
	WidgetDate       WidgetType = "date"
	WidgetAmount     WidgetType = "amount"
	WidgetAttachment WidgetType = "attachmentV2"
)

var validWidgetTypes = map[WidgetType]bool{
	WidgetInput:  true,
	WidgetDate:   true,
	WidgetAmount: true,
}

// IsValid reports whether the type may be used for a scalar field
func (t WidgetType) IsValid() bool {
	return validWidgetTypes[t]
}

// FieldSpec binds a logical form field to its widget and its default
// bitable column
type FieldSpec struct {
	Key      string     `mapstructure:"key"`
	Label    string     `mapstructure:"label"`
	WidgetID string     `mapstructure:"widget_id"`
	Type     WidgetType `mapstructure:"type"`
	Required bool       `mapstructure:"required"`
	Column   string     `mapstructure:"column"`
}

// FormSchema is the deployment-wide template description. It is loaded once
// at startup and passed by reference.
type FormSchema struct {
	ApprovalCode       string
	Fields             []FieldSpec
	AttachmentWidgetID string
	Location           *time.Location
}

// Default widget ids of the document approval template
const (
	DefaultApprovalCode       = "8838A66F-0F31-4D1E-80A9-9F067F0DCD21"
	DefaultAttachmentWidgetID = "widget17509209728410001"
)

// DefaultFields returns the field layout of the document approval template,
// in submission order
func DefaultFields() []FieldSpec {
	return []FieldSpec{
		{Key: "id", Label: "ID", WidgetID: "widget17509279596670001", Type: WidgetInput, Required: true, Column: "ID"},
		{Key: "vanBanCap1", Label: "Văn bản cấp 1", WidgetID: "widget17509261859370001", Type: WidgetInput, Required: true, Column: "Văn bản cấp 1"},
		{Key: "vanBanCap2", Label: "Văn bản cấp 2", WidgetID: "widget17510785727680001", Type: WidgetInput, Column: "Văn bản cấp 2"},
		{Key: "vanBanCap3", Label: "Văn bản cấp 3", WidgetID: "widget17510785743940001", Type: WidgetInput, Column: "Văn bản cấp 3"},
		{Key: "ngayThangNamVanBan", Label: "Ngày tháng năm văn bản", WidgetID: "widget17510781139170001", Type: WidgetDate, Column: "Ngày tháng năm văn bản"},
		{Key: "phapNhanAtino", Label: "Pháp nhân Atino", WidgetID: "widget17510781457140001", Type: WidgetInput, Column: "Pháp nhân Atino"},
		{Key: "congTyDoiTac", Label: "Công ty đối tác", WidgetID: "widget17510781891140001", Type: WidgetInput, Column: "Công ty đối tác"},
		{Key: "mucDoUuTien", Label: "Mức độ ưu tiên", WidgetID: "widget17510782210020001", Type: WidgetInput, Column: "Mức độ ưu tiên"},
		{Key: "ghiChu", Label: "Ghi chú", WidgetID: "widget17510782265760001", Type: WidgetInput, Column: "Ghi chú"},
		{Key: "giaTriHopDong", Label: "Giá trị hợp đồng", WidgetID: "widget17510784042570001", Type: WidgetAmount, Column: "Giá trị hợp đồng"},
		{Key: "giaTriThueMatBang", Label: "Giá trị thuê mặt bằng", WidgetID: "widget17510784061840001", Type: WidgetAmount, Column: "Giá trị thuê mặt bằng"},
	}
}

// NewDefaultSchema returns the schema of the document approval template
func NewDefaultSchema() *FormSchema {
	return &FormSchema{
		ApprovalCode:       DefaultApprovalCode,
		Fields:             DefaultFields(),
		AttachmentWidgetID: DefaultAttachmentWidgetID,
		Location:           time.UTC,
	}
}

// Validate checks that the schema can produce a well-formed form
func (s *FormSchema) Validate() error {
	if s.ApprovalCode == "" {
		return fmt.Errorf("approval code is required")
	}
	if s.AttachmentWidgetID == "" {
		return fmt.Errorf("attachment widget id is required")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("at least one form field is required")
	}

	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Key == "" {
			return fmt.Errorf("field %d: key is required", i)
		}
		if seen[f.Key] {
			return fmt.Errorf("field %q: duplicate key", f.Key)
		}
		seen[f.Key] = true
		if f.WidgetID == "" {
			return fmt.Errorf("field %q: widget id is required", f.Key)
		}
		if !f.Type.IsValid() {
			return fmt.Errorf("field %q: unsupported widget type %q", f.Key, f.Type)
		}
	}
	return nil
}

// Field returns the spec registered under key
func (s *FormSchema) Field(key string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RequiredFields returns the specs that must be non-blank, in schema order
func (s *FormSchema) RequiredFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

func (s *FormSchema) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}
