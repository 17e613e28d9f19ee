package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/ports"
)

// AuditHandler serves the audit trail written by the identity workflows.
type AuditHandler struct {
	service ports.AuditService
}

func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List handles GET /api/authentication/audit-events.
//
// @Summary      List audit events
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        email  query     string  false  "Restrict to one account email"
// @Param        limit  query     int     false  "Maximum number of events (1-200, default 50)"
// @Success      200    {object}  auditListResponse
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Failure      403    {object}  errorResponse
// @Router       /api/authentication/audit-events [get]
func (h *AuditHandler) List(c echo.Context) error {
	var req auditQueryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	events, err := h.service.List(c.Request().Context(), ports.AuditQuery{Email: req.Email, Limit: req.Limit})
	if err != nil {
		return err
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:         e.ID,
			Type:       string(e.Type),
			Email:      e.Email,
			UserID:     e.AccountID,
			Success:    e.Success,
			Reason:     e.Reason,
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}
	return c.JSON(http.StatusOK, auditListResponse{Events: out, Count: len(out)})
}
