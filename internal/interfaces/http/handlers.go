package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atino/doc-approval-bridge/internal/application/port"
	"github.com/atino/doc-approval-bridge/internal/application/service"
	"github.com/atino/doc-approval-bridge/internal/domain/apperror"
)

// ISO8601 with milliseconds, as emitted by the health check
const healthTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Handlers contains all HTTP request handlers
type Handlers struct {
	documentService service.DocumentService
	requestTimeout  time.Duration
	logger          Logger
	now             func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(documentService service.DocumentService, requestTimeout time.Duration, logger Logger) *Handlers {
	return &Handlers{
		documentService: documentService,
		requestTimeout:  requestTimeout,
		logger:          logger,
		now:             time.Now,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ProcessDocumentRequest is the body of POST /process-document
type ProcessDocumentRequest struct {
	RecordID             string            `json:"recordId" binding:"required"`
	AppToken             string            `json:"appToken" binding:"required"`
	TableID              string            `json:"tableID" binding:"required"`
	IDFieldName          string            `json:"idFieldName"`
	LoaiVanBanFieldName  string            `json:"loaiVanBanFieldName"`
	HoSoDinhKemFieldName string            `json:"hoSoDinhKemFieldName" binding:"required"`
	FieldNames           map[string]string `json:"fieldNames"`
	CreatorOpenID        interface{}       `json:"creatorOpenId"`
}

// ProcessDocumentResponse is returned by POST /process-document on success
// and on failure
type ProcessDocumentResponse struct {
	Success          bool                        `json:"success"`
	InstanceCode     string                      `json:"instanceCode,omitempty"`
	Message          string                      `json:"message"`
	DocumentInfo     map[string]string           `json:"documentInfo,omitempty"`
	UploadedCodes    []string                    `json:"uploadedCodes"`
	DocumentCount    int                         `json:"documentCount"`
	SkippedDocuments []service.SkippedAttachment `json:"skippedDocuments,omitempty"`
	ErrorDetails     string                      `json:"errorDetails,omitempty"`
	ErrorKind        apperror.Kind               `json:"errorKind,omitempty"`
	ValidationErrors []ValidationDetail          `json:"validationErrors,omitempty"`
	RequestID        string                      `json:"requestId,omitempty"`
}

// DebugApprovalResponse is returned by GET /debug-approval/:approvalCode
type DebugApprovalResponse struct {
	Success      bool                     `json:"success"`
	Approval     *port.ApprovalDefinition `json:"approval,omitempty"`
	Message      string                   `json:"message,omitempty"`
	ErrorDetails string                   `json:"errorDetails,omitempty"`
	ErrorKind    apperror.Kind            `json:"errorKind,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format(healthTimeLayout),
	})
}

// ProcessDocument handles POST /process-document
func (h *Handlers) ProcessDocument(c *gin.Context) {
	requestID := c.GetString(RequestIDKey)

	var req ProcessDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		details := validationDetails(err)
		msg := err.Error()
		if len(details) > 0 {
			msg = validationSummary(details)
		}
		h.logger.Warn("Invalid process-document request", "request_id", requestID, "error", msg)

		resp := failureResponse(apperror.Validation("invalid request: %s", msg), requestID)
		resp.ValidationErrors = details
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	ctx, cancel := h.withRequestTimeout(c.Request.Context())
	defer cancel()

	result, err := h.documentService.Process(ctx, service.ProcessRequest{
		RecordID:            req.RecordID,
		AppToken:            req.AppToken,
		TableID:             req.TableID,
		IDFieldName:         req.IDFieldName,
		TypeFieldName:       req.LoaiVanBanFieldName,
		AttachmentFieldName: req.HoSoDinhKemFieldName,
		FieldNames:          req.FieldNames,
		CreatorOpenID:       req.CreatorOpenID,
	})
	if err != nil {
		h.logger.Error("Failed to process document",
			"request_id", requestID,
			"record_id", req.RecordID,
			"kind", apperror.KindOf(err).String(),
			"error", err)
		c.JSON(http.StatusInternalServerError, failureResponse(err, requestID))
		return
	}

	info := make(map[string]string, len(result.DocumentInfo)+1)
	for k, v := range result.DocumentInfo {
		info[k] = v
	}
	info["loaiVanBan"] = result.DocumentInfo[service.KeyType]

	c.JSON(http.StatusOK, ProcessDocumentResponse{
		Success:          true,
		InstanceCode:     result.InstanceCode,
		Message:          fmt.Sprintf("Đã tạo thành công đơn phê duyệt văn bản với %d tài liệu đính kèm", len(result.UploadCodes)),
		DocumentInfo:     info,
		UploadedCodes:    result.UploadCodes,
		DocumentCount:    len(result.UploadCodes),
		SkippedDocuments: result.Skipped,
		RequestID:        requestID,
	})
}

// DebugApproval handles GET /debug-approval/:approvalCode
func (h *Handlers) DebugApproval(c *gin.Context) {
	approvalCode := c.Param("approvalCode")

	ctx, cancel := h.withRequestTimeout(c.Request.Context())
	defer cancel()

	def, err := h.documentService.DebugApproval(ctx, approvalCode)
	if err != nil {
		h.logger.Error("Failed to fetch approval definition",
			"approval_code", approvalCode,
			"error", err)
		c.JSON(http.StatusInternalServerError, DebugApprovalResponse{
			Success:      false,
			Message:      "Lỗi: " + err.Error(),
			ErrorDetails: err.Error(),
			ErrorKind:    apperror.KindOf(err),
		})
		return
	}

	c.JSON(http.StatusOK, DebugApprovalResponse{
		Success:  true,
		Approval: def,
	})
}

func (h *Handlers) withRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.requestTimeout)
}

func failureResponse(err error, requestID string) ProcessDocumentResponse {
	return ProcessDocumentResponse{
		Success:       false,
		Message:       "Lỗi: " + err.Error(),
		UploadedCodes: []string{},
		DocumentCount: 0,
		ErrorDetails:  err.Error(),
		ErrorKind:     apperror.KindOf(err),
		RequestID:     requestID,
	}
}
