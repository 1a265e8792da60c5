package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/filestore"
	"expenseflow/internal/models"
	"expenseflow/internal/policy"
	"expenseflow/internal/services"
)

// receiptFilesField is the multipart field carrying receipt uploads.
const receiptFilesField = "receipt_files"

// ExpenseHandler handles expense-related requests
type ExpenseHandler struct {
	expenseService  services.ExpenseServicer
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(
	expenseService services.ExpenseServicer,
	categoryService services.CategoryServicer,
	auditService services.AuditServicer,
) *ExpenseHandler {
	return &ExpenseHandler{
		expenseService:  expenseService,
		categoryService: categoryService,
		auditService:    auditService,
	}
}

// ExpenseRequest represents the payload for creating an expense. It is
// accepted as JSON or as multipart form data with receipt_files.
type ExpenseRequest struct {
	Description   string `form:"description" json:"description" binding:"max=2000"`
	Amount        string `form:"amount" json:"amount" binding:"required,money"`
	Date          string `form:"date" json:"date"`
	PaymentMode   string `form:"payment_mode" json:"payment_mode" binding:"omitempty,payment_mode"`
	TaxPercentage string `form:"tax_percentage" json:"tax_percentage" binding:"omitempty,percentage"`
	BatchID       string `form:"batch_id" json:"batch_id" binding:"max=100"`
	CategoryID    uint   `form:"category_id" json:"category_id" binding:"required,min=1"`
	SubCategoryID *uint  `form:"sub_category_id" json:"sub_category_id" binding:"omitempty,min=1"`
}

// UpdateExpenseRequest represents the payload for editing an expense
type UpdateExpenseRequest struct {
	ExpenseRequest
	DeleteAttachmentIDs []uint `form:"delete_attachment_ids" json:"delete_attachment_ids"`
	DeletePrimaryImage  bool   `form:"delete_primary_image" json:"delete_primary_image"`
}

// CommentRequest represents a reviewer comment or query
type CommentRequest struct {
	Message string `json:"message" binding:"required,max=2000"`
}

// RejectRequest carries an optional reason for a rejection
type RejectRequest struct {
	Message string `json:"message" binding:"max=2000"`
}

// applyTo copies the request onto e. An empty date leaves e.Date unchanged.
func (r *ExpenseRequest) applyTo(e *models.Expense) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid amount")
	}
	date, err := parseDate(r.Date)
	if err != nil {
		return err
	}

	e.Description = strings.TrimSpace(r.Description)
	e.Amount = amount
	if date != nil {
		e.Date = *date
	}
	if r.PaymentMode != "" {
		e.PaymentMode = models.PaymentMode(r.PaymentMode)
	} else if e.PaymentMode == "" {
		e.PaymentMode = models.PaymentModeCash
	}
	e.TaxPercentage = decimal.NullDecimal{}
	if tax := strings.TrimSpace(r.TaxPercentage); tax != "" {
		d, err := decimal.NewFromString(tax)
		if err != nil {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid tax_percentage")
		}
		e.TaxPercentage = decimal.NewNullDecimal(d)
	}
	e.BatchID = strings.TrimSpace(r.BatchID)
	e.CategoryID = r.CategoryID
	e.SubCategoryID = r.SubCategoryID

	e.Category = nil
	e.SubCategory = nil
	e.User = nil
	e.Comments = nil
	return nil
}

// bindExpense binds either a JSON body or a multipart form.
func bindExpense(c *gin.Context, obj interface{}) error {
	var err error
	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		err = c.ShouldBindWith(obj, binding.FormMultipart)
	} else {
		err = c.ShouldBindJSON(obj)
	}
	if err == nil {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// receiptUploads returns the receipt files of a multipart request.
func receiptUploads(c *gin.Context) ([]filestore.Upload, error) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	uploads := make([]filestore.Upload, 0, len(form.File[receiptFilesField]))
	for _, fh := range form.File[receiptFilesField] {
		uploads = append(uploads, filestore.FromFileHeader(fh))
	}
	return uploads, nil
}

// checkCategory verifies the category exists and the sub-category, when
// given, belongs to it.
func (h *ExpenseHandler) checkCategory(categoryID uint, subCategoryID *uint) error {
	if _, err := h.categoryService.GetCategoryByID(categoryID); err != nil {
		return err
	}
	if subCategoryID == nil {
		return nil
	}
	sub, err := h.categoryService.GetSubCategoryByID(*subCategoryID)
	if err != nil {
		return err
	}
	if sub.CategoryID != categoryID {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Sub-category does not belong to the selected category")
	}
	return nil
}

// loadVisible fetches an expense the caller is allowed to see.
func (h *ExpenseHandler) loadVisible(c *gin.Context) (*models.User, *models.Expense, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		return nil, nil, err
	}
	expense, err := h.expenseService.GetExpenseByID(id)
	if err != nil {
		return nil, nil, err
	}
	if !policy.CanAccess(user, expense.UserID) {
		return nil, nil, apperrors.ErrForbidden
	}
	return user, expense, nil
}

// loadOwned fetches an expense owned by the caller.
func (h *ExpenseHandler) loadOwned(c *gin.Context) (*models.User, *models.Expense, error) {
	user, expense, err := h.loadVisible(c)
	if err != nil {
		return nil, nil, err
	}
	if expense.UserID != user.ID {
		return nil, nil, apperrors.ErrForbidden
	}
	return user, expense, nil
}

// loadReviewable fetches an expense that is waiting for review.
func (h *ExpenseHandler) loadReviewable(c *gin.Context) (*models.User, *models.Expense, error) {
	user, expense, err := h.loadVisible(c)
	if err != nil {
		return nil, nil, err
	}
	if !policy.CanReview(expense.Status) {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidStatusTransition,
			"Only submitted expenses can be reviewed, this one is "+string(expense.Status))
	}
	return user, expense, nil
}

// CreateExpense handles the creation of a new draft expense
// @Summary     Create an expense
// @Description Create a draft expense, optionally with receipt files in receipt_files
// @Tags        expenses
// @Accept      json,mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       request body ExpenseRequest true "Expense details"
// @Success     201 {object} models.Expense "Expense created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     413 {object} ErrorResponse "Upload too large"
// @Router      /expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExpenseRequest
	if err := bindExpense(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	expense := &models.Expense{UserID: userID, Status: models.ExpenseStatusDraft}
	if err := req.applyTo(expense); err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.checkCategory(expense.CategoryID, expense.SubCategoryID); err != nil {
		respondWithError(c, err)
		return
	}

	uploads, err := receiptUploads(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	saved, err := h.expenseService.SaveExpense(expense, uploads, nil, false)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionCreate, "expense", saved.ID, c.ClientIP(), map[string]interface{}{
		"amount":      saved.Amount.StringFixed(2),
		"attachments": len(saved.Attachments),
	})

	c.JSON(http.StatusCreated, gin.H{"expense": saved})
}

// GetExpense handles the retrieval of a single expense
// @Summary     Get expense by ID
// @Description Get an expense with its attachments and comments
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Success     200 {object} models.Expense "Expense details"
// @Failure     400 {object} ErrorResponse "Invalid expense ID"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /expenses/{id} [get]
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	_, expense, err := h.loadVisible(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// UpdateExpense handles editing a draft or queried expense
// @Summary     Update expense
// @Description Edit an owned expense in DRAFT or QUERIES_RAISED, adding and removing receipt files
// @Tags        expenses
// @Accept      json,mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Param       request body UpdateExpenseRequest true "Updated expense details"
// @Success     200 {object} models.Expense "Updated expense"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     409 {object} ErrorResponse "Expense not editable"
// @Failure     413 {object} ErrorResponse "Upload too large"
// @Router      /expenses/{id} [put]
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
	user, expense, err := h.loadOwned(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !policy.CanEdit(expense.Status) {
		respondWithError(c, apperrors.ErrExpenseNotEditable)
		return
	}

	var req UpdateExpenseRequest
	if err := bindExpense(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	if err := req.applyTo(expense); err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.checkCategory(expense.CategoryID, expense.SubCategoryID); err != nil {
		respondWithError(c, err)
		return
	}

	uploads, err := receiptUploads(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	saved, err := h.expenseService.SaveExpense(expense, uploads, req.DeleteAttachmentIDs, req.DeletePrimaryImage)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, services.AuditActionUpdate, "expense", saved.ID, c.ClientIP(), map[string]interface{}{
		"amount":              saved.Amount.StringFixed(2),
		"added_files":         len(uploads),
		"removed_attachments": req.DeleteAttachmentIDs,
	})

	c.JSON(http.StatusOK, gin.H{"expense": saved})
}

// DeleteExpense handles deleting a draft or queried expense
// @Summary     Delete expense
// @Description Delete an owned expense in DRAFT or QUERIES_RAISED together with its files
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Success     200 {object} MessageResponse "Expense deleted"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     409 {object} ErrorResponse "Expense not editable"
// @Router      /expenses/{id} [delete]
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	user, expense, err := h.loadOwned(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !policy.CanEdit(expense.Status) {
		respondWithError(c, apperrors.ErrExpenseNotEditable)
		return
	}

	if err := h.expenseService.DeleteExpense(expense.ID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, services.AuditActionDelete, "expense", expense.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Expense deleted successfully"})
}

// changeStatus moves expense to status and records the audit entry.
func (h *ExpenseHandler) changeStatus(c *gin.Context, user *models.User, expense *models.Expense, status models.ExpenseStatus, action string) {
	from := expense.Status
	updated, err := h.expenseService.UpdateExpenseStatus(expense.ID, user.ID, status)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.respondStatusChanged(c, user, from, updated, action)
}

// respondStatusChanged records the audit entry for a transition and renders the expense.
func (h *ExpenseHandler) respondStatusChanged(c *gin.Context, user *models.User, from models.ExpenseStatus, updated *models.Expense, action string) {
	h.auditService.Log(user.ID, action, "expense", updated.ID, c.ClientIP(), map[string]interface{}{
		"from": from,
		"to":   updated.Status,
	})

	c.JSON(http.StatusOK, gin.H{"expense": updated})
}

// SubmitExpense handles submitting an expense for review
// @Summary     Submit expense
// @Description Move an owned DRAFT or QUERIES_RAISED expense to SUBMITTED
// @Tags        workflow
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Success     200 {object} models.Expense "Submitted expense"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     409 {object} ErrorResponse "Invalid status transition"
// @Router      /expenses/{id}/submit [post]
func (h *ExpenseHandler) SubmitExpense(c *gin.Context) {
	user, expense, err := h.loadOwned(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !policy.CanSubmit(expense.Status) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidStatusTransition,
			"Only draft or queried expenses can be submitted, this one is "+string(expense.Status)))
		return
	}
	h.changeStatus(c, user, expense, models.ExpenseStatusSubmitted, services.AuditActionSubmit)
}

// ApproveExpense handles approving a submitted expense
// @Summary     Approve expense
// @Description Move a SUBMITTED expense to APPROVED
// @Tags        workflow
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Success     200 {object} models.Expense "Approved expense"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     409 {object} ErrorResponse "Invalid status transition"
// @Router      /expenses/{id}/approve [post]
func (h *ExpenseHandler) ApproveExpense(c *gin.Context) {
	user, expense, err := h.loadReviewable(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.changeStatus(c, user, expense, models.ExpenseStatusApproved, services.AuditActionApprove)
}

// RejectExpense handles rejecting a submitted expense
// @Summary     Reject expense
// @Description Reject a SUBMITTED expense. A non-blank message is stored as a comment in the same transaction.
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Param       request body RejectRequest false "Rejection reason"
// @Success     200 {object} models.Expense "Rejected expense"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     409 {object} ErrorResponse "Invalid status transition"
// @Router      /expenses/{id}/reject [post]
func (h *ExpenseHandler) RejectExpense(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, expense, err := h.loadReviewable(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from := expense.Status
	updated, err := h.expenseService.RejectExpense(expense.ID, user.ID, req.Message)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.respondStatusChanged(c, user, from, updated, services.AuditActionReject)
}

// QueryExpense handles raising a query on a submitted expense
// @Summary     Raise a query
// @Description Add a reviewer comment to a SUBMITTED expense, returning it to QUERIES_RAISED
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Param       request body CommentRequest true "Query text"
// @Success     201 {object} models.ExpenseComment "Query recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     409 {object} ErrorResponse "Invalid status transition"
// @Router      /expenses/{id}/query [post]
func (h *ExpenseHandler) QueryExpense(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, expense, err := h.loadReviewable(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.addComment(c, user, expense, req.Message)
}

// AddComment handles a reviewer comment on any visible expense
// @Summary     Comment on expense
// @Description Add a reviewer comment. Any comment moves the expense to QUERIES_RAISED.
// @Tags        comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Param       request body CommentRequest true "Comment text"
// @Success     201 {object} models.ExpenseComment "Comment created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /expenses/{id}/comments [post]
func (h *ExpenseHandler) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, expense, err := h.loadVisible(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.addComment(c, user, expense, req.Message)
}

func (h *ExpenseHandler) addComment(c *gin.Context, user *models.User, expense *models.Expense, message string) {
	comment, err := h.expenseService.AddComment(expense.ID, user.ID, message)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, services.AuditActionQuery, "expense", expense.ID, c.ClientIP(), map[string]interface{}{
		"from":       expense.Status,
		"to":         models.ExpenseStatusQueriesRaised,
		"comment_id": comment.ID,
	})

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// GetComments handles listing the comments of an expense
// @Summary     List comments
// @Description List the comments of a visible expense, oldest first
// @Tags        comments
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Expense ID"
// @Success     200 {array} models.ExpenseComment "Comments"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /expenses/{id}/comments [get]
func (h *ExpenseHandler) GetComments(c *gin.Context) {
	_, expense, err := h.loadVisible(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	comments, err := h.expenseService.GetComments(expense.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// ListExpenses handles the filtered, paginated expense listing
// @Summary     List expenses
// @Description List expenses visible to the caller. Managers only see their own.
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       keyword     query string false "Matches description, batch id, category and sub-category"
// @Param       status      query []string false "Status filter, repeatable" collectionFormat(multi)
// @Param       start_date  query string false "Inclusive start date (YYYY-MM-DD)"
// @Param       end_date    query string false "Inclusive end date (YYYY-MM-DD)"
// @Param       category_id query int false "Category ID"
// @Param       page        query int false "Zero-based page"
// @Param       page_size   query int false "Page size (max 100)"
// @Param       sort_field  query string false "date, amount, status, description, batch_id or id"
// @Param       sort_dir    query string false "ASC or DESC"
// @Success     200 {object} pagination.PageResponse[models.Expense] "Page of expenses"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /expenses [get]
func (h *ExpenseHandler) ListExpenses(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, page, sort, err := bindExpenseQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	page.Defaults()

	result, err := h.expenseService.GetExpenses(scopeToViewer(filter, user), page, sort)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetDashboard handles the role-specific dashboard
// @Summary     Dashboard
// @Description Role-specific expense buckets, each paged independently with page_<key>
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       keyword     query string false "Keyword applied to every bucket"
// @Param       start_date  query string false "Inclusive start date (YYYY-MM-DD)"
// @Param       end_date    query string false "Inclusive end date (YYYY-MM-DD)"
// @Param       category_id query int false "Category ID"
// @Param       page_size   query int false "Rows per bucket (default 5)"
// @Success     200 {array} services.DashboardSection "Dashboard sections"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /dashboard [get]
func (h *ExpenseHandler) GetDashboard(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	criteria, page, sort, err := bindExpenseQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	pageSize := page.PageSize
	if pageSize == 0 {
		pageSize = services.DashboardPageSize
	}

	pages := make(map[string]int)
	for _, bucket := range policy.DashboardBuckets(user.Role) {
		raw := c.Query("page_" + bucket.Key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid page_"+bucket.Key))
			return
		}
		pages[bucket.Key] = n
	}

	sections, err := h.expenseService.GetDashboard(user, criteria, pages, pageSize, sort)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": sections})
}
