package api

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"

	"appgate/pkg/shopify"
)

const productsCountQuery = `query shopifyProductCount {
  productsCount {
    count
  }
}`

const createProductMutation = `mutation populateProduct($input: ProductInput!) {
  productCreate(input: $input) {
    product { id title }
    userErrors { field message }
  }
}`

var (
	titleAdjectives = []string{"autumn", "hidden", "bitter", "misty", "silent", "empty", "dry", "dark", "summer", "icy", "delicate", "quiet", "white", "cool", "spring", "winter", "patient", "twilight", "dawn", "crimson"}
	titleNouns      = []string{"waterfall", "river", "breeze", "moon", "rain", "wind", "sea", "morning", "snow", "lake", "sunset", "pine", "shadow", "leaf", "dawn", "glitter", "forest", "hill", "cloud", "meadow"}
)

func randomTitle() string {
	return titleAdjectives[rand.Intn(len(titleAdjectives))] + " " + titleNouns[rand.Intn(len(titleNouns))]
}

func (h *Handler) productCount(w http.ResponseWriter, r *http.Request) {
	s, _, _ := sessionOf(r)
	data, err := h.client.Query(r.Context(), s, productsCountQuery, nil)
	if err != nil {
		h.upstreamProblem(w, s.Shop, err)
		return
	}
	v, err := shopify.Extract(data, "productsCount.count")
	if err != nil || v == nil {
		h.upstreamProblem(w, s.Shop, fmt.Errorf("count missing from response: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": v})
}

func (h *Handler) createProducts(w http.ResponseWriter, r *http.Request) {
	s, _, _ := sessionOf(r)
	if err := h.populate(r.Context(), s, h.ProductBatch); err != nil {
		h.log.Warnw("products/create failed", "shop", s.Shop, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "error": nil})
}

func (h *Handler) populate(ctx context.Context, s shopify.Session, n int) error {
	for i := 0; i < n; i++ {
		vars := map[string]any{"input": map[string]any{"title": randomTitle()}}
		data, err := h.client.Query(ctx, s, createProductMutation, vars)
		if err != nil {
			return err
		}
		msgs, err := shopify.Extract(data, "productCreate.userErrors[].message")
		if err != nil {
			return err
		}
		if list, ok := msgs.([]any); ok && len(list) > 0 {
			parts := make([]string, 0, len(list))
			for _, m := range list {
				parts = append(parts, fmt.Sprint(m))
			}
			return fmt.Errorf("productCreate: %s", strings.Join(parts, "; "))
		}
	}
	return nil
}
