package syncer

import (
	"context"
	"encoding/json"

	"storesync-api/internal/repository"
)

// loadExisting fetches the stored documents for ids in one batched lookup.
func loadExisting[T any](ctx context.Context, docs repository.DocumentStore, userID string, coll repository.Collection, ids []string) (map[string]*T, error) {
	out := make(map[string]*T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	raw, err := docs.GetMany(ctx, userID, coll, dedupe(ids))
	if err != nil {
		return nil, persistence("load "+coll.Name(), err)
	}
	for id, doc := range raw {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, persistence("decode "+coll.Name()+"/"+id, err)
		}
		out[id] = &v
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
