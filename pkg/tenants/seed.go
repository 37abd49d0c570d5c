package tenants

import (
	"context"
	"encoding/json"
	"fmt"
)

// SeedFromEnv ingests tenants for local bring-up.
// jsonSeed format (TENANT_SEED_JSON):
//
//	[{"shop":"dev-shop.myshopify.com","access_token":"shpat_...","scope":"read_products,write_products"}]
func SeedFromEnv(ctx context.Context, store Store, jsonSeed string) (int, error) {
	if jsonSeed == "" {
		return 0, nil
	}
	var entries []struct {
		Shop        string `json:"shop"`
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return 0, fmt.Errorf("parse tenant seed: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.Shop == "" || e.AccessToken == "" {
			continue
		}
		if _, err := store.Upsert(ctx, e.Shop, e.AccessToken, ParseScope(e.Scope)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
