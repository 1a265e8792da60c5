package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/models"
	"expenseflow/internal/pagination"
)

func setupUserRouter(handler *UserHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("/admin", injectUser(1, models.RoleAdmin))
	auth.GET("/users", handler.ListUsers)
	auth.POST("/users", handler.CreateUser)
	auth.GET("/users/:id", handler.GetUser)
	auth.PUT("/users/:id", handler.UpdateUser)
	auth.DELETE("/users/:id", handler.DeleteUser)
	return r
}

func TestUserHandler_CreateUser(t *testing.T) {
	t.Run("returns 201 without the password hash", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(username, _ string, role models.Role) (*models.User, error) {
				return &models.User{Base: models.Base{ID: 5}, Username: username, Password: "hash", Role: role, Enabled: true}, nil
			},
		}
		r := setupUserRouter(NewUserHandler(userSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/admin/users", `{"username":"jane","password":"password123","role":"MANAGER"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["role"] != "MANAGER" {
			t.Errorf("expected MANAGER, got %v", user["role"])
		}
		if _, ok := user["password"]; ok {
			t.Error("password must not be serialized")
		}
	})

	t.Run("returns 400 on unknown role", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/admin/users", `{"username":"jane","password":"password123","role":"GUEST"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on duplicate username", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(_, _ string, _ models.Role) (*models.User, error) {
				return nil, apperrors.ErrDuplicateUsername
			},
		}
		r := setupUserRouter(NewUserHandler(userSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/admin/users", `{"username":"manager","password":"password123","role":"MANAGER"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_USERNAME")
	})
}

func TestUserHandler_ListUsers(t *testing.T) {
	var gotPage pagination.PageRequest
	userSvc := &mockUserService{
		listUsersFn: func(page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
			gotPage = page
			resp := pagination.NewPageResponse([]models.User{{Username: "admin", Role: models.RoleAdmin}}, page.Page, 10, 1)
			return &resp, nil
		},
	}
	r := setupUserRouter(NewUserHandler(userSvc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/admin/users?page=1&page_size=10", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotPage.Page != 1 || gotPage.PageSize != 10 {
		t.Errorf("unexpected page request %+v", gotPage)
	}
	result := parseJSON(t, rec)
	if data := result["data"].([]interface{}); len(data) != 1 {
		t.Errorf("expected 1 user, got %d", len(data))
	}

	rec = doRequest(r, "GET", "/admin/users?page_size=1000", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized page, got %d", rec.Code)
	}
}

func TestUserHandler_UpdateUser(t *testing.T) {
	t.Run("passes optional fields through", func(t *testing.T) {
		var gotRole *models.Role
		var gotEnabled *bool
		userSvc := &mockUserService{
			updateUserFn: func(id uint, _ string, role *models.Role, enabled *bool) (*models.User, error) {
				gotRole, gotEnabled = role, enabled
				return &models.User{Base: models.Base{ID: id}, Role: *role, Enabled: *enabled}, nil
			},
		}
		r := setupUserRouter(NewUserHandler(userSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/admin/users/4", `{"role":"SUPERVISOR","enabled":false}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotRole == nil || *gotRole != models.RoleSupervisor {
			t.Errorf("expected SUPERVISOR, got %v", gotRole)
		}
		if gotEnabled == nil || *gotEnabled {
			t.Errorf("expected enabled=false, got %v", gotEnabled)
		}
	})

	t.Run("refuses to disable the caller", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/admin/users/1", `{"enabled":false}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestUserHandler_DeleteUser(t *testing.T) {
	t.Run("refuses to delete the caller", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/admin/users/1", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 for unknown user", func(t *testing.T) {
		userSvc := &mockUserService{
			deleteUserFn: func(_ uint) error { return apperrors.ErrUserNotFound },
		}
		r := setupUserRouter(NewUserHandler(userSvc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/admin/users/8", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
