package syncer

import (
	"context"

	"storesync-api/internal/model"
	"storesync-api/internal/repository"
)

// syncListings walks a marketplace's listings into the inventory collection.
func syncListings[R any](ctx context.Context, e *Engine, s *session, src listingSource[R]) (*model.SyncResult, error) {
	coll := repository.Collection{Kind: model.KindInventory, Store: s.store}
	res := &model.SyncResult{}
	slots := newAllocator(s.limit.Automatic-s.user.Store.NumListings.Automatic, unbounded)
	pageSize := min(e.opts.ListingPageCap, s.limit.Automatic)

	fetch := func(ctx context.Context, cursor string) (Page[R], error) {
		return src.FetchPage(ctx, s, cursor, pageSize)
	}

	handle := func(ctx context.Context, page Page[R]) (bool, error) {
		ids := make([]string, 0, len(page.Records))
		for _, raw := range page.Records {
			ids = append(ids, src.RecordID(raw))
		}
		existing, err := loadExisting[model.InventoryItem](ctx, e.gw, s.user.ID, coll, ids)
		if err != nil {
			return true, err
		}

		items := newBatch(coll)
		out := pageOutcome{}
		stopped, last := false, ""
		for _, raw := range page.Records {
			id := src.RecordID(raw)
			prev := existing[id]
			if prev == nil && !slots.Available() {
				stopped = true
				break
			}
			last = id

			item, err := src.Normalize(raw, prev, s.now)
			if err != nil {
				s.log.WithError(err).WithField("item_id", id).Warn("Skipping malformed listing")
				continue
			}

			switch {
			case item.Quantity <= 0:
				if prev != nil {
					items.remove(id)
				}
			case prev == nil:
				slots.Take(true)
				out.newCount++
				items.put(id, stampListing(item, nil, s))
			case item.ChangedFrom(prev):
				items.put(id, stampListing(item, prev, s))
			}
		}

		if src.Resumable() {
			out.cursor = page.NextCursor
			if stopped {
				out.cursor = last
			}
		}
		if err := e.commitPage(ctx, s, res, newBatch(coll), items, out); err != nil {
			return true, err
		}
		res.NewCount += out.newCount
		return stopped, nil
	}

	pages, err := walk(ctx, e.opts.MaxDepth, src.StartCursor(s), slots, fetch, handle)
	res.Pages = pages
	return res, err
}

// stampListing fills the bookkeeping fields of a listing about to be written.
// User-owned fields of prev survive the update.
func stampListing(item, prev *model.InventoryItem, s *session) *model.InventoryItem {
	now := model.FormatTime(s.now)
	item.StoreType = s.store
	item.RecordType = model.RecordAutomatic
	item.LastModified = now
	item.CreatedAt = now
	if item.Image == nil {
		item.Image = []string{}
	}
	if prev != nil {
		item.CreatedAt = prev.CreatedAt
		item.Purchase = prev.Purchase
		item.CustomTag = prev.CustomTag
		if prev.RecordType != "" {
			item.RecordType = prev.RecordType
		}
	}
	return item
}
