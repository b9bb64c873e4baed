package pagination

import "testing"

func TestDefaults(t *testing.T) {
	req := PageRequest{}
	req.Defaults()
	if req.Page != 1 || req.Limit != DefaultLimit {
		t.Errorf("expected page 1 limit %d, got page %d limit %d", DefaultLimit, req.Page, req.Limit)
	}

	req = PageRequest{Page: 3, Limit: 500}
	req.Defaults()
	if req.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, req.Limit)
	}
	if req.Offset() != 200 {
		t.Errorf("expected offset 200, got %d", req.Offset())
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse([]string{"a", "b"}, 1, 2, 5)
	if resp.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", resp.TotalPages)
	}
	if resp.Results != 2 {
		t.Errorf("expected 2 results, got %d", resp.Results)
	}

	empty := NewPageResponse[string](nil, 1, 20, 0)
	if empty.Data == nil {
		t.Error("expected an empty slice rather than nil")
	}
	if empty.TotalPages != 0 {
		t.Errorf("expected 0 pages, got %d", empty.TotalPages)
	}
}
