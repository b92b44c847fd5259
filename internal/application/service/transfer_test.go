package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/domain/record"
)

func newTestTransferer(tabular *mockTabularStore, approvals *mockApprovalStore) *AttachmentTransferer {
	return NewAttachmentTransferer(tabular, approvals, TransferConfig{CallTimeout: time.Second}, zap.NewNop())
}

func transferRequest(rec record.Record) TransferRequest {
	return TransferRequest{
		Record:          rec,
		AttachmentField: "files",
		StorageFieldID:  "fld_att",
		RecordID:        "rec_1",
		TableID:         "tbl_1",
	}
}

func TestTransfer_NoAttachments(t *testing.T) {
	tests := []struct {
		name string
		rec  record.Record
	}{
		{"field absent", record.Record{"other": "x"}},
		{"field null", record.Record{"files": nil}},
		{"field not a sequence", record.Record{"files": "report.pdf"}},
		{"empty sequence", record.Record{"files": []interface{}{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tabular := &mockTabularStore{}
			approvals := &mockApprovalStore{}

			result := newTestTransferer(tabular, approvals).Transfer(context.Background(), "tok", transferRequest(tt.rec))

			assert.Empty(t, result.UploadCodes)
			assert.NotNil(t, result.UploadCodes)
			assert.Empty(t, result.Skipped)
			assert.Empty(t, tabular.downloads)
			assert.Empty(t, approvals.uploads)
		})
	}
}

func TestTransfer_SkipsUnsupportedWithoutRemoteCalls(t *testing.T) {
	tabular := &mockTabularStore{}
	approvals := &mockApprovalStore{}

	rec := record.Record{"files": attachmentField(
		attachmentItem("f1", "contract.pdf"),
		attachmentItem("f2", "photo.png"),
		attachmentItem("f3", "terms.DOCX"),
		attachmentItem("f4", "sheet.xlsx"),
		attachmentItem("f5", "memo.doc"),
	)}

	result := newTestTransferer(tabular, approvals).Transfer(context.Background(), "tok", transferRequest(rec))

	assert.Equal(t, []string{"U-contract.pdf", "U-terms.DOCX", "U-memo.doc"}, result.UploadCodes)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, 2, result.Skipped[0].Index)
	assert.Equal(t, "photo.png", result.Skipped[0].Name)
	assert.Equal(t, apperror.KindValidation, result.Skipped[0].Kind)
	assert.Equal(t, 4, result.Skipped[1].Index)

	var downloaded []string
	for _, d := range tabular.downloads {
		downloaded = append(downloaded, d.FileToken)
	}
	assert.Equal(t, []string{"f1", "f3", "f5"}, downloaded)
	assert.Len(t, approvals.uploads, 3)
}

func TestTransfer_DownloadFailureIsIsolated(t *testing.T) {
	tabular := &mockTabularStore{
		downloadMediaFunc: func(ctx context.Context, token, fileToken, extra string) ([]byte, error) {
			if fileToken == "f2" {
				return nil, errors.New("connection reset by peer")
			}
			return pdfContent, nil
		},
	}
	approvals := &mockApprovalStore{}

	rec := record.Record{"files": attachmentField(
		attachmentItem("f1", "a.pdf"),
		attachmentItem("f2", "b.pdf"),
		attachmentItem("f3", "c.pdf"),
	)}

	result := newTestTransferer(tabular, approvals).Transfer(context.Background(), "tok", transferRequest(rec))

	assert.Equal(t, []string{"U-a.pdf", "U-c.pdf"}, result.UploadCodes)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "b.pdf", result.Skipped[0].Name)
	assert.Equal(t, apperror.KindTransient, result.Skipped[0].Kind)
	assert.Contains(t, result.Skipped[0].Reason, "connection reset")
	assert.Len(t, approvals.uploads, 2)
}

func TestTransfer_UploadFailures(t *testing.T) {
	tests := []struct {
		name   string
		upload func(file port.UploadFile) (string, error)
	}{
		{
			name: "remote error",
			upload: func(file port.UploadFile) (string, error) {
				if file.Name == "b.pdf" {
					return "", apperror.Remote("upload file", 90001, "file too large")
				}
				return "U-" + file.Name, nil
			},
		},
		{
			name: "missing upload code",
			upload: func(file port.UploadFile) (string, error) {
				if file.Name == "b.pdf" {
					return "", nil
				}
				return "U-" + file.Name, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approvals := &mockApprovalStore{
				uploadFileFunc: func(ctx context.Context, token string, file port.UploadFile) (string, error) {
					return tt.upload(file)
				},
			}
			rec := record.Record{"files": attachmentField(
				attachmentItem("f1", "a.pdf"),
				attachmentItem("f2", "b.pdf"),
				attachmentItem("f3", "c.pdf"),
			)}

			result := newTestTransferer(&mockTabularStore{}, approvals).Transfer(context.Background(), "tok", transferRequest(rec))

			assert.Equal(t, []string{"U-a.pdf", "U-c.pdf"}, result.UploadCodes)
			require.Len(t, result.Skipped, 1)
			assert.Equal(t, 2, result.Skipped[0].Index)
			assert.Equal(t, apperror.KindTransient, result.Skipped[0].Kind)
		})
	}
}

func TestTransfer_UploadPayload(t *testing.T) {
	tabular := &mockTabularStore{}
	approvals := &mockApprovalStore{}

	rec := record.Record{"files": attachmentField(
		attachmentItem("f1", ""),
		attachmentItem("f2", "terms.docx"),
	)}

	result := newTestTransferer(tabular, approvals).Transfer(context.Background(), "tok", transferRequest(rec))
	require.Len(t, result.UploadCodes, 2)
	require.Len(t, approvals.uploads, 2)

	first := approvals.uploads[0]
	assert.Equal(t, "document_1.pdf", first.Name)
	assert.Equal(t, "application/pdf", first.ContentType)
	assert.Equal(t, "attachment", first.Kind)
	assert.Equal(t, pdfContent, first.Content)

	second := approvals.uploads[1]
	assert.Equal(t, "terms.docx", second.Name)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", second.ContentType)

	var scope map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(tabular.downloads[0].Extra), &scope))
	perm := scope["bitablePerm"]
	assert.Equal(t, "tbl_1", perm["tableId"])
	assert.Equal(t, map[string]interface{}{
		"fld_att": map[string]interface{}{"rec_1": []interface{}{"f1"}},
	}, perm["attachments"])
}

func TestTransfer_MaxFileSize(t *testing.T) {
	approvals := &mockApprovalStore{}
	transferer := NewAttachmentTransferer(&mockTabularStore{}, approvals, TransferConfig{MaxFileSize: 4}, zap.NewNop())

	rec := record.Record{"files": attachmentField(attachmentItem("f1", "big.pdf"))}
	result := transferer.Transfer(context.Background(), "tok", transferRequest(rec))

	assert.Empty(t, result.UploadCodes)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "exceeds limit")
	assert.Empty(t, approvals.uploads)
}

func TestTransfer_CancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	tabular := &mockTabularStore{
		downloadMediaFunc: func(_ context.Context, token, fileToken, extra string) ([]byte, error) {
			cancel()
			return pdfContent, nil
		},
	}
	approvals := &mockApprovalStore{
		uploadFileFunc: func(callCtx context.Context, token string, file port.UploadFile) (string, error) {
			if err := callCtx.Err(); err != nil {
				return "", err
			}
			return "U-" + file.Name, nil
		},
	}

	rec := record.Record{"files": attachmentField(
		attachmentItem("f1", "a.pdf"),
		attachmentItem("f2", "b.pdf"),
	)}

	result := newTestTransferer(tabular, approvals).Transfer(ctx, "tok", transferRequest(rec))

	assert.Empty(t, result.UploadCodes)
	require.Len(t, result.Skipped, 2)
	assert.Len(t, tabular.downloads, 1)
	for _, s := range result.Skipped {
		assert.Equal(t, apperror.KindTransient, s.Kind)
	}
}

func TestTransfer_AppliesCallTimeout(t *testing.T) {
	var deadlineSet bool
	tabular := &mockTabularStore{
		downloadMediaFunc: func(ctx context.Context, token, fileToken, extra string) ([]byte, error) {
			_, deadlineSet = ctx.Deadline()
			return pdfContent, nil
		},
	}

	rec := record.Record{"files": attachmentField(attachmentItem("f1", "a.pdf"))}
	newTestTransferer(tabular, &mockApprovalStore{}).Transfer(context.Background(), "tok", transferRequest(rec))

	assert.True(t, deadlineSet)
}
