package syncer

import (
	"context"

	"storesync-api/internal/model"
	"storesync-api/internal/repository"
)

// historyWindowDays is how far back a first order lookup reaches.
const historyWindowDays = 90

// syncOrders walks a marketplace's sold lines into the orders collection,
// decrementing the matching inventory as new sales are recorded.
func syncOrders[R any](ctx context.Context, e *Engine, s *session, src orderSource[R]) (*model.SyncResult, error) {
	coll := repository.Collection{Kind: model.KindOrders, Store: s.store}
	invColl := repository.Collection{Kind: model.KindInventory, Store: s.store}
	res := &model.SyncResult{}

	used := s.user.Store.NumOrders.Automatic
	ceiling := s.limit.Automatic
	if s.firstLookup {
		ceiling = e.limits.HistoryLimit(s.plan)
	}
	slots := newAllocator(ceiling-used, s.limit.Automatic-used)
	pageSize := min(e.opts.OrderPageCap, ceiling)
	// Depop reports no sale dates, so a first lookup cannot tell this month's sales apart.
	countAllOld := s.firstLookup && s.store == model.StoreDepop

	detail := func(ctx context.Context, itemID string) *ItemDetail {
		d, err := src.ItemDetail(ctx, s, itemID)
		if err != nil {
			s.log.WithError(err).WithField("item_id", itemID).Warn("Item detail unavailable, continuing without it")
			return nil
		}
		return d
	}

	fetch := func(ctx context.Context, cursor string) (Page[R], error) {
		return src.FetchPage(ctx, s, cursor, pageSize)
	}

	handle := func(ctx context.Context, page Page[R]) (bool, error) {
		type record struct {
			id    string
			lines []OrderFacts
		}
		recs := make([]record, 0, len(page.Records))
		var txIDs, itemIDs []string
		for _, raw := range page.Records {
			id := src.RecordID(raw)
			lines, err := src.Lines(raw, s.now)
			if err != nil {
				s.log.WithError(err).WithField("order_id", id).Warn("Skipping malformed order")
				continue
			}
			for _, l := range lines {
				txIDs = append(txIDs, l.TransactionID)
				itemIDs = append(itemIDs, l.ItemID)
			}
			recs = append(recs, record{id: id, lines: lines})
		}

		existing, err := loadExisting[model.OrderRecord](ctx, e.gw, s.user.ID, coll, txIDs)
		if err != nil {
			return true, err
		}
		inventory, err := loadExisting[model.InventoryItem](ctx, e.gw, s.user.ID, invColl, itemIDs)
		if err != nil {
			return true, err
		}

		invWrites, orderWrites := newBatch(invColl), newBatch(coll)
		out := pageOutcome{}
		stopped, last := false, ""

	records:
		for _, rec := range recs {
			for i := range rec.lines {
				f := &rec.lines[i]
				prev := existing[f.TransactionID]

				if f.Refunded && !f.Status.KeepsRefund() {
					if prev != nil {
						orderWrites.remove(f.TransactionID)
						delete(existing, f.TransactionID)
					}
					continue
				}

				if prev != nil {
					if reconcile(prev, f, s.now) {
						orderWrites.put(f.TransactionID, prev)
					}
					continue
				}

				if s.firstLookup && f.Status.Discarded() {
					continue
				}
				if !slots.Available() {
					stopped = true
					break records
				}

				inv := inventory[f.ItemID]
				var d *ItemDetail
				if inv == nil {
					d = detail(ctx, f.ItemID)
				}
				order := newOrder(f, s.store, inv, d, s.now)

				current := false
				if t, err := model.ParseTime(f.SaleDate); err == nil && !countAllOld {
					current = model.InMonth(t, s.now)
				}
				slots.Take(current)
				if current {
					out.newCount++
				} else {
					out.oldCount++
				}

				if inv != nil && !f.Status.IsCancellation() {
					inv.Quantity -= f.Quantity
					inv.LastModified = model.FormatTime(s.now)
					if inv.Quantity <= 0 {
						invWrites.remove(f.ItemID)
					} else {
						invWrites.put(f.ItemID, inv)
					}
				}
				orderWrites.put(f.TransactionID, order)
				existing[f.TransactionID] = order
			}
			last = rec.id
		}

		if src.Resumable() {
			out.cursor = page.NextCursor
			if stopped {
				out.cursor = last
			}
		}
		if err := e.commitPage(ctx, s, res, invWrites, orderWrites, out); err != nil {
			return true, err
		}
		res.NewCount += out.newCount
		res.OldCount += out.oldCount
		return stopped, nil
	}

	pages, err := walk(ctx, e.opts.MaxDepth, src.StartCursor(s), slots, fetch, handle)
	res.Pages = pages
	return res, err
}
