package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/events"
	"expenseflow/internal/filestore"
	"expenseflow/internal/logger"
	"expenseflow/internal/models"
	"expenseflow/internal/pagination"
	"expenseflow/internal/policy"
)

// DashboardPageSize is the number of rows shown per dashboard bucket.
const DashboardPageSize = 5

// expenseService handles the expense workflow and attachment lifecycle.
type expenseService struct {
	db        *gorm.DB
	store     filestore.Store
	publisher events.Publisher
}

// NewExpenseService creates a new ExpenseServicer.
func NewExpenseService(db *gorm.DB, store filestore.Store, publisher events.Publisher) ExpenseServicer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &expenseService{db: db, store: store, publisher: publisher}
}

// SaveExpense persists expense together with its attachment changes.
//
// The legacy ReceiptImage is always folded into Attachments and cleared.
// Files are written and deleted outside the database transaction; newly
// stored files are removed again if the transaction fails.
func (s *expenseService) SaveExpense(
	expense *models.Expense,
	files []filestore.Upload,
	deleteAttachmentIDs []uint,
	deletePrimaryImage bool,
) (*models.Expense, error) {
	if expense == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "expense is required")
	}

	if expense.Date.IsZero() {
		expense.Date = DateOnly(time.Now())
	} else {
		expense.Date = DateOnly(expense.Date)
	}

	if expense.ID != 0 {
		stored, err := s.storedAttachments(expense.ID)
		if err != nil {
			return nil, err
		}
		expense.Attachments = stored
	}
	if expense.Attachments == nil {
		expense.Attachments = []models.ExpenseAttachment{}
	}

	if deletePrimaryImage {
		if legacy := expense.LegacyReceipt(); legacy != "" {
			s.store.Delete(legacy)
			expense.ReceiptImage = nil
		}
	}

	removed := s.detachAttachments(expense, deleteAttachmentIDs)

	if legacy := expense.LegacyReceipt(); legacy != "" && !expense.HasAttachment(legacy) {
		expense.Attachments = append(expense.Attachments, models.ExpenseAttachment{FileName: legacy})
	}
	expense.ReceiptImage = nil

	storedKeys, err := s.storeUploads(files)
	if err != nil {
		return nil, err
	}
	for _, key := range storedKeys {
		expense.Attachments = append(expense.Attachments, models.ExpenseAttachment{FileName: key})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(expense).Error; err != nil {
			return err
		}
		if len(removed) > 0 {
			if err := tx.Where("expense_id = ? AND id IN ?", expense.ID, removed).
				Delete(&models.ExpenseAttachment{}).Error; err != nil {
				return err
			}
		}
		for i := range expense.Attachments {
			attachment := &expense.Attachments[i]
			if attachment.ID != 0 {
				continue
			}
			attachment.ExpenseID = expense.ID
			if err := tx.Create(attachment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, key := range storedKeys {
			s.store.Delete(key)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.GetExpenseByID(expense.ID)
}

// storedAttachments loads the persisted attachments of an existing expense.
func (s *expenseService) storedAttachments(expenseID uint) ([]models.ExpenseAttachment, error) {
	var count int64
	if err := s.db.Model(&models.Expense{}).Where("id = ?", expenseID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrExpenseNotFound
	}

	var attachments []models.ExpenseAttachment
	if err := s.db.Where("expense_id = ?", expenseID).Order("id").Find(&attachments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return attachments, nil
}

// detachAttachments deletes the files of attachments whose id is listed and
// drops them from the collection. It returns the ids to delete from the store.
func (s *expenseService) detachAttachments(expense *models.Expense, ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var removed []uint
	kept := expense.Attachments[:0]
	for _, a := range expense.Attachments {
		if _, ok := wanted[a.ID]; ok && a.ID != 0 {
			s.store.Delete(a.FileName)
			removed = append(removed, a.ID)
			continue
		}
		kept = append(kept, a)
	}
	expense.Attachments = kept
	return removed
}

// storeUploads writes every non-empty upload. On failure the files already
// written by this call are deleted.
func (s *expenseService) storeUploads(files []filestore.Upload) ([]string, error) {
	var keys []string
	for _, f := range files {
		if f.Empty() {
			continue
		}
		key, err := s.storeUpload(f)
		if err != nil {
			for _, k := range keys {
				s.store.Delete(k)
			}
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *expenseService) storeUpload(f filestore.Upload) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrFileStorage, err)
	}
	defer r.Close()
	return s.store.Store(r, f.Filename)
}

// GetExpenseByID retrieves a fully hydrated expense.
func (s *expenseService) GetExpenseByID(id uint) (*models.Expense, error) {
	var expense models.Expense
	err := s.db.
		Preload("User").
		Preload("Category").
		Preload("SubCategory").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("expense_comments.timestamp, expense_comments.id") }).
		Preload("Comments.User").
		First(&expense, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if expense.Attachments == nil {
		expense.Attachments = []models.ExpenseAttachment{}
	}
	return &expense, nil
}

// DeleteExpense removes an expense, its files and its child rows. A missing
// expense is not an error.
func (s *expenseService) DeleteExpense(id uint) error {
	var expense models.Expense
	if err := s.db.Preload("Attachments").First(&expense, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if legacy := expense.LegacyReceipt(); legacy != "" {
		s.store.Delete(legacy)
	}
	for _, a := range expense.Attachments {
		s.store.Delete(a.FileName)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", id).Delete(&models.ExpenseComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("expense_id = ?", id).Delete(&models.ExpenseAttachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Expense{}, id).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// UpdateExpenseStatus overwrites the status of an expense on behalf of
// actorID. Any status may replace any other; callers gate transitions with
// the policy package.
func (s *expenseService) UpdateExpenseStatus(id, actorID uint, status models.ExpenseStatus) (*models.Expense, error) {
	if !status.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown expense status "+string(status))
	}

	var expense models.Expense
	var previous models.ExpenseStatus
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&expense, id).Error; err != nil {
			return err
		}
		previous = expense.Status
		return tx.Model(&expense).Update("status", status).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	expense.Status = status
	if previous != status {
		s.publishStatusChanged(&expense, previous, actorID)
	}

	return s.GetExpenseByID(id)
}

// RejectExpense records the optional reason as a comment and sets REJECTED
// in one transaction. Only the final transition is published.
func (s *expenseService) RejectExpense(id, actorID uint, message string) (*models.Expense, error) {
	message = strings.TrimSpace(message)

	var expense models.Expense
	var previous models.ExpenseStatus
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&expense, id).Error; err != nil {
			return err
		}
		previous = expense.Status

		if message != "" {
			if err := tx.Create(models.NewExpenseComment(expense.ID, actorID, message)).Error; err != nil {
				return err
			}
		}
		return tx.Model(&expense).Update("status", models.ExpenseStatusRejected).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	expense.Status = models.ExpenseStatusRejected
	if previous != models.ExpenseStatusRejected {
		s.publishStatusChanged(&expense, previous, actorID)
	}

	return s.GetExpenseByID(id)
}

// AddComment records a comment and moves the expense to QUERIES_RAISED.
func (s *expenseService) AddComment(expenseID, authorID uint, message string) (*models.ExpenseComment, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "comment message is required")
	}

	var expense models.Expense
	var previous models.ExpenseStatus
	var comment *models.ExpenseComment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&expense, expenseID).Error; err != nil {
			return err
		}
		previous = expense.Status

		comment = models.NewExpenseComment(expense.ID, authorID, message)
		if err := tx.Create(comment).Error; err != nil {
			return err
		}

		if expense.Status != models.ExpenseStatusQueriesRaised {
			return tx.Model(&expense).Update("status", models.ExpenseStatusQueriesRaised).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if previous != models.ExpenseStatusQueriesRaised {
		expense.Status = models.ExpenseStatusQueriesRaised
		s.publishStatusChanged(&expense, previous, authorID)
	}

	return comment, nil
}

// GetComments lists the comments of an expense, oldest first.
func (s *expenseService) GetComments(expenseID uint) ([]models.ExpenseComment, error) {
	var count int64
	if err := s.db.Model(&models.Expense{}).Where("id = ?", expenseID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrExpenseNotFound
	}

	comments := []models.ExpenseComment{}
	if err := s.db.Preload("User").
		Where("expense_id = ?", expenseID).
		Order("expense_comments.timestamp, expense_comments.id").
		Find(&comments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return comments, nil
}

// GetAttachment retrieves an attachment by ID.
func (s *expenseService) GetAttachment(id uint) (*models.ExpenseAttachment, error) {
	var attachment models.ExpenseAttachment
	if err := s.db.First(&attachment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &attachment, nil
}

// DeleteAttachment removes one attachment and its file. A missing attachment
// is not an error.
func (s *expenseService) DeleteAttachment(id uint) error {
	var attachment models.ExpenseAttachment
	if err := s.db.First(&attachment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.store.Delete(attachment.FileName)

	var parent models.Expense
	err := s.db.Preload("Attachments").First(&parent, attachment.ExpenseID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Delete(&attachment).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	case err != nil:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	kept := parent.Attachments[:0]
	for _, a := range parent.Attachments {
		if a.ID != attachment.ID {
			kept = append(kept, a)
		}
	}
	parent.Attachments = kept

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&attachment).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&parent).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// preloadListing loads the relations shown in expense lists.
func preloadListing(q *gorm.DB) *gorm.DB {
	return q.Preload("User").
		Preload("Category").
		Preload("SubCategory").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

// GetExpenses returns one page of expenses matching filter.
func (s *expenseService) GetExpenses(filter ExpenseFilter, page pagination.PageRequest, sort pagination.SortRequest) (*pagination.PageResponse[models.Expense], error) {
	page.Defaults()

	order, err := expenseOrder(sort)
	if err != nil {
		return nil, err
	}

	var totalItems int64
	if err := s.db.Model(&models.Expense{}).Scopes(filter.Scope()).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expenses []models.Expense
	if err := s.db.Model(&models.Expense{}).
		Select("expenses.*").
		Scopes(filter.Scope(), order, pagination.Paginate(page), preloadListing).
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(expenses, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListExpenses returns every expense matching filter, for exports.
func (s *expenseService) ListExpenses(filter ExpenseFilter, sort pagination.SortRequest) ([]models.Expense, error) {
	order, err := expenseOrder(sort)
	if err != nil {
		return nil, err
	}

	expenses := []models.Expense{}
	if err := s.db.Model(&models.Expense{}).
		Select("expenses.*").
		Scopes(filter.Scope(), order, preloadListing).
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return expenses, nil
}

// GetDashboard returns one page per dashboard bucket of the user's role.
// pages maps bucket keys to zero-based page numbers.
func (s *expenseService) GetDashboard(
	user *models.User,
	criteria ExpenseFilter,
	pages map[string]int,
	pageSize int,
	sort pagination.SortRequest,
) ([]DashboardSection, error) {
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if pageSize <= 0 {
		pageSize = DashboardPageSize
	}

	buckets := policy.DashboardBuckets(user.Role)
	sections := make([]DashboardSection, 0, len(buckets))
	for _, bucket := range buckets {
		filter := criteria.WithStatuses(bucket.Statuses...)
		if bucket.OwnOnly {
			filter = filter.WithUser(user.ID)
		}

		page := pagination.PageRequest{Page: pages[bucket.Key], PageSize: pageSize}
		result, err := s.GetExpenses(filter, page, sort)
		if err != nil {
			return nil, err
		}

		sections = append(sections, DashboardSection{
			Key:      bucket.Key,
			Title:    bucket.Title,
			Statuses: bucket.Statuses,
			Page:     result,
		})
	}
	return sections, nil
}

// publishStatusChanged announces a committed status change. Failures are
// logged and never reach the caller.
func (s *expenseService) publishStatusChanged(expense *models.Expense, from models.ExpenseStatus, actorID uint) {
	event := events.NewStatusChanged(expense, from, actorID)
	if err := s.publisher.PublishStatusChanged(context.Background(), event); err != nil {
		logger.Get().Errorw("failed to publish status change",
			"error", err,
			"expense_id", expense.ID,
			"from", from,
			"to", expense.Status,
		)
	}
}
