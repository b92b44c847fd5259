package approval

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/domain/record"
)

// FormData holds extracted values keyed by FieldSpec.Key. A missing or
// empty entry means the field is absent.
type FormData map[string]string

// FormWidget is one entry of the serialized approval form. Value is a
// string for scalar widgets and a []string for attachment widgets.
type FormWidget struct {
	ID    string      `json:"id"`
	Type  WidgetType  `json:"type"`
	Value interface{} `json:"value"`
}

// InstanceRequest is the body of the create-instance call. Form is the
// JSON-encoded widget list embedded as a string.
type InstanceRequest struct {
	ApprovalCode string `json:"approval_code"`
	Form         string `json:"form"`
	OpenID       string `json:"open_id"`
}

// Builder assembles approval instance requests for one template
type Builder struct {
	schema *FormSchema
}

// NewBuilder creates a builder bound to schema
func NewBuilder(schema *FormSchema) *Builder {
	return &Builder{schema: schema}
}

// Schema returns the schema the builder was created with
func (b *Builder) Schema() *FormSchema {
	return b.schema
}

// Validate checks the preconditions of Build: a non-blank creator and
// non-blank required fields
func (b *Builder) Validate(data FormData, creatorID string) error {
	for _, f := range b.schema.RequiredFields() {
		if strings.TrimSpace(data[f.Key]) == "" {
			return apperror.Validation("%s must not be empty", labelOf(f))
		}
	}
	if strings.TrimSpace(creatorID) == "" {
		return apperror.Validation("creator open id must not be empty")
	}
	return nil
}

// Build validates the input and returns the instance request. Widgets are
// emitted required fields first, then present optional fields in schema
// order, then exactly one attachment widget carrying all upload codes.
func (b *Builder) Build(data FormData, uploadCodes []string, creatorID string) (*InstanceRequest, error) {
	if err := b.Validate(data, creatorID); err != nil {
		return nil, err
	}

	widgets := b.Widgets(data, uploadCodes)
	form, err := json.Marshal(widgets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form widgets: %w", err)
	}

	return &InstanceRequest{
		ApprovalCode: b.schema.ApprovalCode,
		Form:         string(form),
		OpenID:       creatorID,
	}, nil
}

// Widgets maps data onto the template widgets without validating it
func (b *Builder) Widgets(data FormData, uploadCodes []string) []FormWidget {
	widgets := make([]FormWidget, 0, len(b.schema.Fields)+1)

	for _, required := range []bool{true, false} {
		for _, f := range b.schema.Fields {
			if f.Required != required {
				continue
			}
			value, ok := b.widgetValue(f, data[f.Key])
			if !ok {
				continue
			}
			widgets = append(widgets, FormWidget{ID: f.WidgetID, Type: f.Type, Value: value})
		}
	}

	codes := uploadCodes
	if codes == nil {
		codes = []string{}
	}
	widgets = append(widgets, FormWidget{
		ID:    b.schema.AttachmentWidgetID,
		Type:  WidgetAttachment,
		Value: codes,
	})

	return widgets
}

func (b *Builder) widgetValue(f FieldSpec, raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	switch f.Type {
	case WidgetAmount:
		d, ok := record.ParseAmount(raw)
		if !ok {
			return "", false
		}
		return d.String(), true
	case WidgetDate:
		return formatDate(raw, b.schema.location()), true
	default:
		return raw, true
	}
}

// formatDate renders bitable epoch-millisecond dates as RFC 3339; any other
// string is passed through
func formatDate(raw string, loc *time.Location) string {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return raw
	}
	return time.UnixMilli(ms).In(loc).Format(time.RFC3339)
}

// ParseForm decodes a serialized widget list
func ParseForm(form string) ([]FormWidget, error) {
	var widgets []FormWidget
	if err := json.Unmarshal([]byte(form), &widgets); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	return widgets, nil
}

func labelOf(f FieldSpec) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Key
}
