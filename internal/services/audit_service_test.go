package services

import (
	"encoding/json"
	"testing"

	"expenseflow/internal/models"
	"expenseflow/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	svc.Log(7, AuditActionApprove, "expense", 42, "10.0.0.1", map[string]interface{}{"status": "APPROVED"})
	svc.Log(7, AuditActionDelete, "expense", 43, "10.0.0.1", nil)

	var entries []models.AuditLog
	testutil.AssertNoError(t, db.Order("id").Find(&entries).Error)
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}

	var changes map[string]string
	if err := json.Unmarshal(entries[0].Changes, &changes); err != nil {
		t.Fatalf("changes should be valid JSON: %v", err)
	}
	if changes["status"] != "APPROVED" {
		t.Errorf("expected status change recorded, got %v", changes)
	}
	if entries[1].ResourceID != 43 || len(entries[1].Changes) != 0 {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}
