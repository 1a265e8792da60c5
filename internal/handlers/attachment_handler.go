package handlers

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/filestore"
	"expenseflow/internal/models"
	"expenseflow/internal/policy"
	"expenseflow/internal/services"
)

// AttachmentHandler serves and removes receipt files
type AttachmentHandler struct {
	expenseService services.ExpenseServicer
	store          filestore.Store
	auditService   services.AuditServicer
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(expenseService services.ExpenseServicer, store filestore.Store, auditService services.AuditServicer) *AttachmentHandler {
	return &AttachmentHandler{expenseService: expenseService, store: store, auditService: auditService}
}

// loadAttachment resolves the attachment in the path together with its parent
// expense, enforcing that the caller may see the expense.
func (h *AttachmentHandler) loadAttachment(c *gin.Context) (*models.User, *models.ExpenseAttachment, *models.Expense, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, nil, nil, err
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		return nil, nil, nil, err
	}
	attachment, err := h.expenseService.GetAttachment(id)
	if err != nil {
		return nil, nil, nil, err
	}
	expense, err := h.expenseService.GetExpenseByID(attachment.ExpenseID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !policy.CanAccess(user, expense.UserID) {
		return nil, nil, nil, apperrors.ErrForbidden
	}
	return user, attachment, expense, nil
}

// DownloadAttachment streams a receipt file
// @Summary     Download attachment
// @Description Download a receipt file of a visible expense
// @Tags        attachments
// @Produce     octet-stream
// @Security    BearerAuth
// @Param       id path int true "Attachment ID"
// @Success     200 {file} file "Receipt file"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Attachment not found"
// @Router      /attachments/{id} [get]
func (h *AttachmentHandler) DownloadAttachment(c *gin.Context) {
	user, attachment, _, err := h.loadAttachment(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	f, err := h.store.Open(attachment.FileName)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrFileStorage, err))
		return
	}

	name := filestore.OriginalName(attachment.FileName)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h.auditService.Log(user.ID, services.AuditActionDownload, "attachment", attachment.ID, c.ClientIP(), nil)

	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	})
}

// DeleteAttachment removes one receipt file from an editable expense
// @Summary     Delete attachment
// @Description Remove a receipt file from an owned expense in DRAFT or QUERIES_RAISED
// @Tags        attachments
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Attachment ID"
// @Success     200 {object} MessageResponse "Attachment deleted"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Attachment not found"
// @Failure     409 {object} ErrorResponse "Expense not editable"
// @Router      /attachments/{id} [delete]
func (h *AttachmentHandler) DeleteAttachment(c *gin.Context) {
	user, attachment, expense, err := h.loadAttachment(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if expense.UserID != user.ID {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}
	if !policy.CanEdit(expense.Status) {
		respondWithError(c, apperrors.ErrExpenseNotEditable)
		return
	}

	if err := h.expenseService.DeleteAttachment(attachment.ID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, services.AuditActionDelete, "attachment", attachment.ID, c.ClientIP(), map[string]interface{}{
		"expense_id": expense.ID,
	})

	c.JSON(http.StatusOK, MessageResponse{Message: "Attachment deleted successfully"})
}
