package pagination

import "testing"

func TestPageRequest_Defaults(t *testing.T) {
	tests := []struct {
		name         string
		in           PageRequest
		wantPage     int
		wantPageSize int
		wantOffset   int
	}{
		{name: "zero value", in: PageRequest{}, wantPage: 0, wantPageSize: DefaultPageSize, wantOffset: 0},
		{name: "explicit values", in: PageRequest{Page: 2, PageSize: 5}, wantPage: 2, wantPageSize: 5, wantOffset: 10},
		{name: "negative page clamps", in: PageRequest{Page: -3, PageSize: 5}, wantPage: 0, wantPageSize: 5, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Defaults()
			if p.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", p.Page, tt.wantPage)
			}
			if p.PageSize != tt.wantPageSize {
				t.Errorf("PageSize = %d, want %d", p.PageSize, tt.wantPageSize)
			}
			if got := p.Offset(); got != tt.wantOffset {
				t.Errorf("Offset() = %d, want %d", got, tt.wantOffset)
			}
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[int](nil, 0, 5, 11)
	if resp.Data == nil {
		t.Error("expected empty slice, got nil")
	}
	if resp.TotalPages != 3 {
		t.Errorf("expected 3 total pages, got %d", resp.TotalPages)
	}
}

func TestSortRequest_OrderBy(t *testing.T) {
	columns := map[string]string{"date": "expenses.date", "amount": "expenses.amount"}

	tests := []struct {
		name    string
		in      SortRequest
		want    string
		wantErr bool
	}{
		{name: "default field and direction", in: SortRequest{}, want: "expenses.date DESC"},
		{name: "ascending is case-insensitive", in: SortRequest{Field: "amount", Direction: "asc"}, want: "expenses.amount ASC"},
		{name: "unknown direction sorts descending", in: SortRequest{Field: "amount", Direction: "sideways"}, want: "expenses.amount DESC"},
		{name: "unknown field", in: SortRequest{Field: "password"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.OrderBy(columns, "date")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("OrderBy() = %q, want %q", got, tt.want)
			}
		})
	}
}
