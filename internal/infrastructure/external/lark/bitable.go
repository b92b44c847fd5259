package lark

import (
	"context"
	"fmt"
	"io"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkbitable "github.com/larksuite/oapi-sdk-go/v3/service/bitable/v1"
	larkdrive "github.com/larksuite/oapi-sdk-go/v3/service/drive/v1"
	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/domain/record"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/tracing"
)

const fieldPageSize = 100

// BitableAPI implements port.TabularStore with the bitable and drive APIs
type BitableAPI struct {
	client *SDKClient
	logger *zap.Logger
}

// NewBitableAPI creates a new bitable API handler
func NewBitableAPI(client *SDKClient, logger *zap.Logger) *BitableAPI {
	return &BitableAPI{
		client: client,
		logger: logger,
	}
}

// GetRecord retrieves one record by id
func (b *BitableAPI) GetRecord(ctx context.Context, token string, loc port.RecordLocator) (rec record.Record, err error) {
	const op = "get record"

	ctx, span := tracing.StartClientSpan(ctx, "lark.bitable.get_record", map[string]string{
		"table_id":  loc.TableID,
		"record_id": loc.RecordID,
	})
	defer func() { tracing.EndSpan(span, err) }()

	req := larkbitable.NewGetAppTableRecordReqBuilder().
		AppToken(loc.AppToken).
		TableId(loc.TableID).
		RecordId(loc.RecordID).
		Build()

	resp, err := b.client.client.Bitable.AppTableRecord.Get(ctx, req, larkcore.WithTenantAccessToken(token))
	if err != nil {
		b.logger.Error("Failed to get record",
			zap.String("record_id", loc.RecordID),
			zap.Error(err))
		return nil, apperror.RemoteErr(op, err)
	}
	if !resp.Success() {
		b.logger.Error("API returned failure",
			zap.String("record_id", loc.RecordID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return nil, apperror.Remote(op, resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.Record == nil {
		return nil, apperror.Remote(op, resp.Code, fmt.Sprintf("record %s not found", loc.RecordID))
	}

	fields := resp.Data.Record.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return record.Record(fields), nil
}

// ListFields returns every field of the table, following pagination
func (b *BitableAPI) ListFields(ctx context.Context, token, appToken, tableID string) (fields []port.FieldMeta, err error) {
	const op = "list fields"

	ctx, span := tracing.StartClientSpan(ctx, "lark.bitable.list_fields", map[string]string{"table_id": tableID})
	defer func() { tracing.EndSpan(span, err) }()

	pageToken := ""
	for {
		builder := larkbitable.NewListAppTableFieldReqBuilder().
			AppToken(appToken).
			TableId(tableID).
			PageSize(fieldPageSize)
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := b.client.client.Bitable.AppTableField.List(ctx, builder.Build(), larkcore.WithTenantAccessToken(token))
		if err != nil {
			return nil, apperror.RemoteErr(op, err)
		}
		if !resp.Success() {
			b.logger.Error("API returned failure",
				zap.String("table_id", tableID),
				zap.Int("code", resp.Code),
				zap.String("msg", resp.Msg))
			return nil, apperror.Remote(op, resp.Code, resp.Msg)
		}
		if resp.Data == nil {
			break
		}

		for _, item := range resp.Data.Items {
			if item == nil {
				continue
			}
			meta := port.FieldMeta{
				FieldID:   derefString(item.FieldId),
				FieldName: derefString(item.FieldName),
			}
			if item.Type != nil {
				meta.Type = *item.Type
			}
			fields = append(fields, meta)
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore {
			break
		}
		pageToken = derefString(resp.Data.PageToken)
		if pageToken == "" {
			break
		}
	}

	span.SetInt("fields", len(fields))
	return fields, nil
}

// DownloadMedia downloads an attachment. extra is the raw scope token; the
// SDK encodes it into the query string.
func (b *BitableAPI) DownloadMedia(ctx context.Context, token, fileToken, extra string) (content []byte, err error) {
	const op = "download media"

	ctx, span := tracing.StartClientSpan(ctx, "lark.drive.download_media", map[string]string{"file_token": fileToken})
	defer func() { tracing.EndSpan(span, err) }()

	req := larkdrive.NewDownloadMediaReqBuilder().
		FileToken(fileToken).
		Extra(extra).
		Build()

	resp, err := b.client.client.Drive.Media.Download(ctx, req, larkcore.WithTenantAccessToken(token))
	if err != nil {
		return nil, apperror.RemoteErr(op, err)
	}
	if !resp.Success() {
		return nil, apperror.Remote(op, resp.Code, resp.Msg)
	}
	if resp.File == nil {
		return nil, apperror.Remote(op, resp.Code, "empty file body")
	}

	content, err = io.ReadAll(resp.File)
	if err != nil {
		return nil, apperror.RemoteErr(op, fmt.Errorf("failed to read file: %w", err))
	}

	b.logger.Debug("Downloaded media",
		zap.String("file_token", fileToken),
		zap.Int("size", len(content)))
	return content, nil
}
