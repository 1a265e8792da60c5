package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestCustomValidators(t *testing.T) {
	v := validator.New()
	RegisterWith(v)

	tests := []struct {
		tag   string
		value string
		valid bool
	}{
		{"expense_status", "DRAFT", true},
		{"expense_status", "QUERIES_RAISED", true},
		{"expense_status", "draft", false},
		{"payment_mode", "UPI", true},
		{"payment_mode", "BARTER", false},
		{"user_role", "SUPERVISOR", true},
		{"user_role", "ROOT", false},
		{"sort_direction", "asc", true},
		{"sort_direction", "DESC", true},
		{"sort_direction", "sideways", false},
		{"money", "12.50", true},
		{"money", "12.5", true},
		{"money", "100", true},
		{"money", "0", false},
		{"money", "-3", false},
		{"money", "1.234", false},
		{"money", "abc", false},
		{"percentage", "0", true},
		{"percentage", "18.5", true},
		{"percentage", "100", true},
		{"percentage", "100.01", false},
		{"percentage", "-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.value, func(t *testing.T) {
			err := v.Var(tt.value, tt.tag)
			if tt.valid && err != nil {
				t.Errorf("expected %q to pass %s: %v", tt.value, tt.tag, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to fail %s", tt.value, tt.tag)
			}
		})
	}
}
