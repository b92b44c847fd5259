package lark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/domain/approval"
)

// fakeOpenAPI serves canned JSON for open-apis paths
func fakeOpenAPI(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *SDKClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)

	return NewSDKClient(Config{
		AppID:     "cli_test",
		AppSecret: "secret",
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		LogLevel:  "error",
	}, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func TestAuthenticator_TenantAccessToken(t *testing.T) {
	var gotBody map[string]string
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/open-apis/auth/v3/tenant_access_token/internal", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, `{"code":0,"msg":"ok","tenant_access_token":"t-abc","expire":7200}`)
	})

	token, err := NewAuthenticator(client, zap.NewNop()).TenantAccessToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "t-abc", token)
	assert.Equal(t, "cli_test", gotBody["app_id"])
	assert.Equal(t, "secret", gotBody["app_secret"])
}

func TestAuthenticator_Rejected(t *testing.T) {
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":10014,"msg":"app secret invalid"}`)
	})

	_, err := NewAuthenticator(client, zap.NewNop()).TenantAccessToken(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperror.KindRemote, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "app secret invalid")
}

func TestBitableAPI_GetRecord(t *testing.T) {
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/open-apis/bitable/v1/apps/app_1/tables/tbl_1/records/rec_1", r.URL.Path)
		assert.Equal(t, "Bearer t-abc", r.Header.Get("Authorization"))
		writeJSON(w, `{"code":0,"msg":"success","data":{"record":{"record_id":"rec_1","fields":{
			"ID":[{"text":"HS-001","type":"text"}],
			"Loại văn bản":"Hợp đồng",
			"Giá trị hợp đồng":5000000,
			"Hồ sơ đính kèm":[{"file_token":"box1","name":"a.pdf","size":12}]
		}}}}`)
	})

	rec, err := NewBitableAPI(client, zap.NewNop()).GetRecord(context.Background(), "t-abc",
		port.RecordLocator{AppToken: "app_1", TableID: "tbl_1", RecordID: "rec_1"})

	require.NoError(t, err)
	assert.Equal(t, "HS-001", rec.Value("ID").String())
	assert.Equal(t, "Hợp đồng", rec.Value("Loại văn bản").String())
	assert.Equal(t, "5000000", rec.Value("Giá trị hợp đồng").String())

	refs, ok := rec.Attachments("Hồ sơ đính kèm")
	require.True(t, ok)
	require.Len(t, refs, 1)
	assert.Equal(t, "box1", refs[0].FileToken)
}

func TestBitableAPI_GetRecordNotFound(t *testing.T) {
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":1254043,"msg":"RecordIdNotFound"}`)
	})

	_, err := NewBitableAPI(client, zap.NewNop()).GetRecord(context.Background(), "t-abc",
		port.RecordLocator{AppToken: "app_1", TableID: "tbl_1", RecordID: "missing"})

	require.Error(t, err)
	assert.Equal(t, apperror.KindRemote, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "RecordIdNotFound")
}

func TestBitableAPI_ListFieldsPaginates(t *testing.T) {
	var calls int
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/open-apis/bitable/v1/apps/app_1/tables/tbl_1/fields", r.URL.Path)
		if r.URL.Query().Get("page_token") == "" {
			writeJSON(w, `{"code":0,"data":{"has_more":true,"page_token":"p2","items":[
				{"field_id":"fld_1","field_name":"ID","type":1}]}}`)
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("page_token"))
		writeJSON(w, `{"code":0,"data":{"has_more":false,"items":[
			{"field_id":"fld_att","field_name":"Hồ sơ đính kèm","type":17}]}}`)
	})

	fields, err := NewBitableAPI(client, zap.NewNop()).ListFields(context.Background(), "t-abc", "app_1", "tbl_1")

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []port.FieldMeta{
		{FieldID: "fld_1", FieldName: "ID", Type: 1},
		{FieldID: "fld_att", FieldName: "Hồ sơ đính kèm", Type: 17},
	}, fields)
}

func TestBitableAPI_DownloadMedia(t *testing.T) {
	extra := `{"bitablePerm":{"tableId":"tbl_1","attachments":{"fld_att":{"rec_1":["box1"]}}}}`
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/open-apis/drive/v1/medias/box1/download"))
		assert.Equal(t, extra, r.URL.Query().Get("extra"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="a.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4 data"))
	})

	content, err := NewBitableAPI(client, zap.NewNop()).DownloadMedia(context.Background(), "t-abc", "box1", extra)

	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 data", string(content))
}

func TestApprovalAPI_CreateInstance(t *testing.T) {
	var got map[string]interface{}
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/open-apis/approval/v4/instances", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, `{"code":0,"msg":"success","data":{"instance_code":"INST-42"}}`)
	})

	api := NewApprovalAPI(client, NewFileUploader("", 0, zap.NewNop()), zap.NewNop())
	code, err := api.CreateInstance(context.Background(), "t-abc", &approval.InstanceRequest{
		ApprovalCode: "CODE",
		Form:         `[{"id":"w1","type":"input","value":"R1"}]`,
		OpenID:       "ou_1",
	})

	require.NoError(t, err)
	assert.Equal(t, "INST-42", code)
	assert.Equal(t, "CODE", got["approval_code"])
	assert.Equal(t, "ou_1", got["open_id"])
	assert.Equal(t, `[{"id":"w1","type":"input","value":"R1"}]`, got["form"])
}

func TestApprovalAPI_CreateInstanceRejected(t *testing.T) {
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":1390001,"msg":"param is invalid"}`)
	})

	api := NewApprovalAPI(client, NewFileUploader("", 0, zap.NewNop()), zap.NewNop())
	_, err := api.CreateInstance(context.Background(), "t-abc", &approval.InstanceRequest{ApprovalCode: "CODE"})

	require.Error(t, err)
	assert.Equal(t, apperror.KindRemote, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "param is invalid")
}

func TestApprovalAPI_GetDefinition(t *testing.T) {
	client := fakeOpenAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/open-apis/approval/v4/approvals/CODE", r.URL.Path)
		writeJSON(w, `{"code":0,"data":{"approval_name":"Trình ký văn bản","status":"ACTIVE","form":"[]"}}`)
	})

	api := NewApprovalAPI(client, NewFileUploader("", 0, zap.NewNop()), zap.NewNop())
	def, err := api.GetDefinition(context.Background(), "t-abc", "CODE")

	require.NoError(t, err)
	assert.Equal(t, "CODE", def.ApprovalCode)
	assert.Equal(t, "Trình ký văn bản", def.ApprovalName)
	assert.Equal(t, "ACTIVE", def.Status)
	assert.Equal(t, "[]", def.Form)
}
