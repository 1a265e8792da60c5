// Package policy decides what each role may do with expenses and which
// dashboard buckets it sees.
package policy

import "expenseflow/internal/models"

// Capability is a named permission checked at the HTTP boundary.
type Capability string

const (
	CapExpenseCreate   Capability = "expense:create"
	CapExpenseSubmit   Capability = "expense:submit"
	CapExpenseReview   Capability = "expense:review"
	CapExpenseViewAll  Capability = "expense:view_all"
	CapExpenseExport   Capability = "expense:export"
	CapAdminUsers      Capability = "admin:users"
	CapAdminCategories Capability = "admin:categories"
)

var capabilities = map[models.Role][]Capability{
	models.RoleManager: {
		CapExpenseCreate, CapExpenseSubmit, CapExpenseExport,
	},
	models.RoleSupervisor: {
		CapExpenseCreate, CapExpenseSubmit, CapExpenseReview, CapExpenseViewAll, CapExpenseExport,
	},
	models.RoleAccountant: {
		CapExpenseReview, CapExpenseViewAll, CapExpenseExport,
	},
	models.RoleAdmin: {
		CapAdminUsers, CapAdminCategories,
	},
}

// Allows reports whether role holds capability.
func Allows(role models.Role, capability Capability) bool {
	for _, c := range capabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// CapabilitiesOf returns a copy of the capabilities held by role.
func CapabilitiesOf(role models.Role) []Capability {
	return append([]Capability{}, capabilities[role]...)
}

// CanEdit reports whether an expense in status may be changed by its owner.
func CanEdit(status models.ExpenseStatus) bool {
	return status == models.ExpenseStatusDraft || status == models.ExpenseStatusQueriesRaised
}

// CanSubmit reports whether an expense in status may be submitted for review.
func CanSubmit(status models.ExpenseStatus) bool {
	return CanEdit(status)
}

// CanReview reports whether a reviewer may approve, reject or query an
// expense in status.
func CanReview(status models.ExpenseStatus) bool {
	return status == models.ExpenseStatusSubmitted
}

// CanAccess reports whether user may view the expense owned by ownerID.
func CanAccess(user *models.User, ownerID uint) bool {
	if user == nil {
		return false
	}
	return user.ID == ownerID || Allows(user.Role, CapExpenseViewAll)
}

// Bucket is one dashboard section: expenses in Statuses, restricted to the
// viewer's own expenses when OwnOnly is set.
type Bucket struct {
	Key      string
	Title    string
	Statuses []models.ExpenseStatus
	OwnOnly  bool
}

// DashboardBuckets returns the sections shown to role, in display order.
// Administrators have no expense dashboard and get nil.
func DashboardBuckets(role models.Role) []Bucket {
	switch role {
	case models.RoleManager:
		return []Bucket{
			{Key: "drafts", Title: "Drafts", Statuses: []models.ExpenseStatus{models.ExpenseStatusDraft, models.ExpenseStatusQueriesRaised}, OwnOnly: true},
			{Key: "pending", Title: "Pending Approval", Statuses: []models.ExpenseStatus{models.ExpenseStatusSubmitted}, OwnOnly: true},
			{Key: "approved", Title: "Approved", Statuses: []models.ExpenseStatus{models.ExpenseStatusApproved}, OwnOnly: true},
			{Key: "returned", Title: "Queries Raised", Statuses: []models.ExpenseStatus{models.ExpenseStatusQueriesRaised}, OwnOnly: true},
			{Key: "rejected", Title: "Rejected", Statuses: []models.ExpenseStatus{models.ExpenseStatusRejected}, OwnOnly: true},
		}
	case models.RoleAccountant:
		return []Bucket{
			{Key: "submitted", Title: "Awaiting Review", Statuses: []models.ExpenseStatus{models.ExpenseStatusSubmitted}},
			{Key: "approved", Title: "Approved", Statuses: []models.ExpenseStatus{models.ExpenseStatusApproved}},
			{Key: "rejected", Title: "Rejected", Statuses: []models.ExpenseStatus{models.ExpenseStatusRejected}},
		}
	case models.RoleSupervisor:
		return []Bucket{
			{Key: "drafts", Title: "My Drafts", Statuses: []models.ExpenseStatus{models.ExpenseStatusDraft, models.ExpenseStatusQueriesRaised}, OwnOnly: true},
			{Key: "submitted", Title: "Awaiting Review", Statuses: []models.ExpenseStatus{models.ExpenseStatusSubmitted}},
			{Key: "approved", Title: "Approved", Statuses: []models.ExpenseStatus{models.ExpenseStatusApproved}},
			{Key: "rejected", Title: "Rejected", Statuses: []models.ExpenseStatus{models.ExpenseStatusRejected}},
		}
	default:
		return nil
	}
}
