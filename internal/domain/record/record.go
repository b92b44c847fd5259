// Package record models a bitable row and normalizes its heterogeneous
// field values into plain strings and numbers.
package record

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
)

// Record maps field names to raw decoded field values as returned by the
// bitable record API
type Record map[string]interface{}

// Value returns the normalized value of a field
func (r Record) Value(fieldName string) Value {
	if r == nil || fieldName == "" {
		return Absent()
	}
	return ValueOf(r[fieldName])
}

// Extract reduces a field to a string; a missing field yields ""
func Extract(r Record, fieldName string) string {
	return r.Value(fieldName).String()
}

// ExtractRequired extracts a field that must not be blank
func ExtractRequired(r Record, fieldName, label string) (string, error) {
	s := Extract(r, fieldName)
	if strings.TrimSpace(s) == "" {
		return "", apperror.Validation("%s must not be empty (field %q)", label, fieldName)
	}
	return s, nil
}

// ExtractAmount parses a numeric field. A blank value or a failed parse
// means the value is absent, never zero.
func ExtractAmount(r Record, fieldName string) (decimal.Decimal, bool) {
	v := r.Value(fieldName)
	if f, ok := v.Float(); ok {
		return decimal.NewFromFloat(f), true
	}
	return ParseAmount(v.String())
}

// ParseAmount parses an extracted string as a decimal amount
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// AttachmentReference identifies one file stored in a bitable attachment field
type AttachmentReference struct {
	FileToken string `json:"file_token"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// Attachments returns the attachment references held by a field. ok is
// false when the field is absent or is not a sequence.
func (r Record) Attachments(fieldName string) (refs []AttachmentReference, ok bool) {
	raw, exists := r[fieldName]
	if !exists || raw == nil {
		return nil, false
	}

	items, isSeq := raw.([]interface{})
	if !isSeq {
		return nil, false
	}

	refs = make([]AttachmentReference, 0, len(items))
	for _, item := range items {
		m, isMap := item.(map[string]interface{})
		if !isMap {
			// keep position so synthesized names stay aligned with the field order
			refs = append(refs, AttachmentReference{})
			continue
		}
		ref := AttachmentReference{
			FileToken: stringField(m, "file_token"),
			Name:      stringField(m, "name"),
			Type:      stringField(m, "type"),
		}
		if size, isNum := m["size"].(float64); isNum {
			ref.Size = int64(size)
		}
		refs = append(refs, ref)
	}
	return refs, true
}

// String describes the reference for logs
func (a AttachmentReference) String() string {
	return fmt.Sprintf("%s(%s)", a.Name, a.FileToken)
}
