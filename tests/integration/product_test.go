//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != seededCount {
		t.Fatalf("expected %d products, got %d", seededCount, len(products))
	}

	var plants, pots int
	for _, p := range products {
		switch p.Category {
		case "plants":
			plants++
		case "pots":
			pots++
		default:
			t.Errorf("product %s has unknown category %q", p.ID, p.Category)
		}
		if p.Name == "" {
			t.Errorf("product %s has empty name", p.ID)
		}
		if p.Price <= 0 {
			t.Errorf("product %s price: got %v, want > 0", p.ID, p.Price)
		}
	}
	if plants == 0 || pots == 0 {
		t.Errorf("expected both plants and pots, got %d plants, %d pots", plants, pots)
	}
}

func TestGetProduct(t *testing.T) {
	resp := doGet(t, "/api/products/plant-monstera-deliciosa")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	if p.ID != "plant-monstera-deliciosa" {
		t.Errorf("id: got %q", p.ID)
	}
	if p.Category != "plants" {
		t.Errorf("category: got %q, want plants", p.Category)
	}
	if len(p.Sizes) == 0 {
		t.Error("expected sizes to be populated")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/no-such-product")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != 404 {
		t.Errorf("error code: got %d, want 404", body.Code)
	}
}
