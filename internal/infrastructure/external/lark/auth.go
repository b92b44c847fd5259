package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkauth "github.com/larksuite/oapi-sdk-go/v3/service/auth/v3"
	"go.uber.org/zap"

	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
	"github.com/atino/doc-approval-bridge/internal/infrastructure/tracing"
)

// Authenticator implements port.Authenticator with the internal-app token API
type Authenticator struct {
	client *SDKClient
	logger *zap.Logger
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(client *SDKClient, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		client: client,
		logger: logger,
	}
}

type tenantTokenBody struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// TenantAccessToken requests a fresh tenant access token
func (a *Authenticator) TenantAccessToken(ctx context.Context) (token string, err error) {
	const op = "get tenant access token"

	ctx, span := tracing.StartClientSpan(ctx, "lark.auth.tenant_access_token", nil)
	defer func() { tracing.EndSpan(span, err) }()

	req := larkauth.NewInternalTenantAccessTokenReqBuilder().
		Body(larkauth.NewInternalTenantAccessTokenReqBodyBuilder().
			AppId(a.client.appID).
			AppSecret(a.client.appSecret).
			Build()).
		Build()

	resp, err := a.client.client.Auth.TenantAccessToken.Internal(ctx, req)
	if err != nil {
		a.logger.Error("Failed to request tenant access token", zap.Error(err))
		return "", apperror.RemoteErr(op, err)
	}
	if !resp.Success() {
		a.logger.Error("Authentication rejected",
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", apperror.Remote(op, resp.Code, resp.Msg)
	}

	var body tenantTokenBody
	if resp.ApiResp == nil {
		return "", apperror.Parse(op, fmt.Errorf("empty response"))
	}
	if err := json.Unmarshal(resp.RawBody, &body); err != nil {
		return "", apperror.Parse(op, err)
	}
	if body.TenantAccessToken == "" {
		return "", apperror.Remote(op, body.Code, "response has no tenant_access_token")
	}

	a.logger.Debug("Tenant access token obtained", zap.Int("expire", body.Expire))
	return body.TenantAccessToken, nil
}
