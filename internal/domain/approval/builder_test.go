package approval

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
)

func widgetIDs(t *testing.T) map[string]string {
	t.Helper()
	ids := make(map[string]string)
	for _, f := range DefaultFields() {
		ids[f.Key] = f.WidgetID
	}
	return ids
}

func TestBuild_RoundTrip(t *testing.T) {
	b := NewBuilder(NewDefaultSchema())

	req, err := b.Build(FormData{"id": "R1", "vanBanCap1": "TypeA"}, []string{"U1", "U2"}, "ou_creator")
	require.NoError(t, err)

	assert.Equal(t, DefaultApprovalCode, req.ApprovalCode)
	assert.Equal(t, "ou_creator", req.OpenID)

	var widgets []struct {
		ID    string          `json:"id"`
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.Form), &widgets))
	require.Len(t, widgets, 3)

	ids := widgetIDs(t)
	assert.Equal(t, ids["id"], widgets[0].ID)
	assert.Equal(t, "input", widgets[0].Type)
	assert.JSONEq(t, `"R1"`, string(widgets[0].Value))

	assert.Equal(t, ids["vanBanCap1"], widgets[1].ID)
	assert.Equal(t, "input", widgets[1].Type)
	assert.JSONEq(t, `"TypeA"`, string(widgets[1].Value))

	assert.Equal(t, DefaultAttachmentWidgetID, widgets[2].ID)
	assert.Equal(t, "attachmentV2", widgets[2].Type)
	assert.JSONEq(t, `["U1","U2"]`, string(widgets[2].Value))
}

func TestBuild_FormIsStringEncoded(t *testing.T) {
	b := NewBuilder(NewDefaultSchema())

	req, err := b.Build(FormData{"id": "R1", "vanBanCap1": "TypeA"}, nil, "ou_creator")
	require.NoError(t, err)

	body, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	form, ok := decoded["form"].(string)
	require.True(t, ok, "form must be serialized as a string")

	widgets, err := ParseForm(form)
	require.NoError(t, err)
	last := widgets[len(widgets)-1]
	assert.Equal(t, WidgetAttachment, last.Type)
	assert.Equal(t, []interface{}{}, last.Value, "empty upload list must serialize as []")
}

func TestBuild_ValidationFailures(t *testing.T) {
	b := NewBuilder(NewDefaultSchema())

	tests := []struct {
		name    string
		data    FormData
		creator string
	}{
		{"blank vanBanCap1", FormData{"id": "R1", "vanBanCap1": ""}, "ou_1"},
		{"whitespace vanBanCap1", FormData{"id": "R1", "vanBanCap1": "   "}, "ou_1"},
		{"missing id", FormData{"vanBanCap1": "TypeA"}, "ou_1"},
		{"blank creator", FormData{"id": "R1", "vanBanCap1": "TypeA"}, " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := b.Build(tt.data, []string{"U1"}, tt.creator)
			require.Error(t, err)
			assert.Nil(t, req)
			assert.True(t, apperror.Is(err, apperror.KindValidation))
		})
	}
}

func TestWidgets_OptionalFieldsAndOrder(t *testing.T) {
	b := NewBuilder(NewDefaultSchema())

	widgets := b.Widgets(FormData{
		"ghiChu":            "urgent",
		"vanBanCap1":        "Hop dong",
		"id":                "R9",
		"giaTriHopDong":     "1500000",
		"giaTriThueMatBang": "not a number",
		"vanBanCap3":        "",
	}, []string{"U1"})

	ids := widgetIDs(t)
	got := make([]string, 0, len(widgets))
	for _, w := range widgets {
		got = append(got, w.ID)
	}
	assert.Equal(t, []string{
		ids["id"],
		ids["vanBanCap1"],
		ids["ghiChu"],
		ids["giaTriHopDong"],
		DefaultAttachmentWidgetID,
	}, got)

	assert.Equal(t, WidgetAmount, widgets[3].Type)
	assert.Equal(t, "1500000", widgets[3].Value)
}

func TestWidgets_RequiredFirstRegardlessOfSchemaOrder(t *testing.T) {
	schema := &FormSchema{
		ApprovalCode:       "CODE",
		AttachmentWidgetID: "w_att",
		Fields: []FieldSpec{
			{Key: "note", WidgetID: "w_note", Type: WidgetInput},
			{Key: "id", WidgetID: "w_id", Type: WidgetInput, Required: true},
		},
	}
	widgets := NewBuilder(schema).Widgets(FormData{"note": "n", "id": "1"}, nil)

	require.Len(t, widgets, 3)
	assert.Equal(t, "w_id", widgets[0].ID)
	assert.Equal(t, "w_note", widgets[1].ID)
	assert.Equal(t, "w_att", widgets[2].ID)
}

func TestWidgets_DateFormatting(t *testing.T) {
	schema := NewDefaultSchema()
	schema.Location = time.FixedZone("ICT", 7*60*60)
	b := NewBuilder(schema)

	widgets := b.Widgets(FormData{"id": "1", "vanBanCap1": "A", "ngayThangNamVanBan": "1704067200000"}, nil)
	require.Len(t, widgets, 4)
	assert.Equal(t, WidgetDate, widgets[2].Type)
	assert.Equal(t, "2024-01-01T07:00:00+07:00", widgets[2].Value)

	widgets = b.Widgets(FormData{"id": "1", "vanBanCap1": "A", "ngayThangNamVanBan": "2024-01-01"}, nil)
	assert.Equal(t, "2024-01-01", widgets[2].Value)
}

func TestFormSchema_Validate(t *testing.T) {
	assert.NoError(t, NewDefaultSchema().Validate())

	tests := []struct {
		name   string
		mutate func(s *FormSchema)
	}{
		{"missing approval code", func(s *FormSchema) { s.ApprovalCode = "" }},
		{"missing attachment widget", func(s *FormSchema) { s.AttachmentWidgetID = "" }},
		{"no fields", func(s *FormSchema) { s.Fields = nil }},
		{"duplicate key", func(s *FormSchema) { s.Fields = append(s.Fields, s.Fields[0]) }},
		{"bad widget type", func(s *FormSchema) { s.Fields[0].Type = WidgetAttachment }},
		{"missing widget id", func(s *FormSchema) { s.Fields[1].WidgetID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDefaultSchema()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}
