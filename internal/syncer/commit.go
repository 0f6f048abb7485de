package syncer

import (
	"context"
	"encoding/json"
	"errors"

	"storesync-api/internal/model"
	"storesync-api/internal/repository"
)

// casAttempts bounds optimistic retries of a user write.
const casAttempts = 3

type write struct {
	id  string
	doc any
	del bool
}

// batch collects writes to one collection. The last write to an id wins.
type batch struct {
	coll  repository.Collection
	ops   []write
	index map[string]int
}

func newBatch(coll repository.Collection) *batch {
	return &batch{coll: coll, index: map[string]int{}}
}

func (b *batch) put(id string, doc any) { b.add(write{id: id, doc: doc}) }

func (b *batch) remove(id string) { b.add(write{id: id, del: true}) }

func (b *batch) add(w write) {
	if i, ok := b.index[w.id]; ok {
		b.ops[i] = w
		return
	}
	b.index[w.id] = len(b.ops)
	b.ops = append(b.ops, w)
}

func (b *batch) empty() bool { return len(b.ops) == 0 }

// flush applies the batch in insertion order.
func (b *batch) flush(ctx context.Context, docs repository.DocumentStore, userID string, res *model.SyncResult) error {
	for _, w := range b.ops {
		if w.del {
			if err := docs.Delete(ctx, userID, b.coll, w.id); err != nil {
				return persistence("delete "+b.coll.Name()+"/"+w.id, err)
			}
			res.Removed++
			continue
		}
		doc, err := json.Marshal(w.doc)
		if err != nil {
			return persistence("encode "+b.coll.Name()+"/"+w.id, err)
		}
		if err := docs.Upsert(ctx, userID, b.coll, w.id, doc); err != nil {
			return persistence("upsert "+b.coll.Name()+"/"+w.id, err)
		}
		res.Written++
	}
	return nil
}

// updateStore applies delta to the user's store state with a version-checked write.
// On a lost race the user is reloaded and delta is re-applied to the fresh state.
func (e *Engine) updateStore(ctx context.Context, s *session, delta func(st *model.StoreState)) error {
	for attempt := 1; ; attempt++ {
		st := cloneStore(s.user.Store)
		delta(&st)

		err := e.gw.UpdateCounterFields(ctx, s.user.ID, "store", storeFields(st), s.user.Version)
		if err == nil {
			s.user.Store = st
			s.user.Version++
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= casAttempts {
			return persistence("update store", err)
		}

		s.log.WithField("attempt", attempt).Debug("User document changed concurrently, reloading")
		fresh, err := e.gw.GetUser(ctx, s.user.ID)
		if err != nil {
			return persistence("reload user", err)
		}
		s.user = fresh
	}
}

func storeFields(st model.StoreState) map[string]any {
	return map[string]any{
		"numListings": st.NumListings,
		"numOrders":   st.NumOrders,
		"storeMeta":   st.StoreMeta,
	}
}

func cloneStore(st model.StoreState) model.StoreState {
	meta := make(map[model.Store]model.StoreMeta, len(st.StoreMeta)+1)
	for k, v := range st.StoreMeta {
		meta[k] = v
	}
	st.StoreMeta = meta
	return st
}

// setKindDate stores value for kind.
func setKindDate(d *model.KindDates, kind model.Kind, value string) {
	v := value
	if kind == model.KindOrders {
		d.Orders = &v
		return
	}
	d.Inventory = &v
}

// pageOutcome is what one processed page contributes to the user document.
type pageOutcome struct {
	newCount int
	oldCount int
	// cursor is the resume position, empty to leave the stored offset alone.
	cursor string
}

// commitPage persists a page: inventory first, then records, then counters and store meta.
// A page without writes leaves the user document untouched.
func (e *Engine) commitPage(ctx context.Context, s *session, res *model.SyncResult, inventory, records *batch, out pageOutcome) error {
	if inventory.empty() && records.empty() {
		return nil
	}
	if err := inventory.flush(ctx, e.gw, s.user.ID, res); err != nil {
		return err
	}
	if err := records.flush(ctx, e.gw, s.user.ID, res); err != nil {
		return err
	}

	started := model.FormatTime(s.now)
	return e.updateStore(ctx, s, func(st *model.StoreState) {
		switch s.kind {
		case model.KindOrders:
			st.NumOrders.Automatic += out.newCount
			st.NumOrders.TotalAutomatic += out.newCount + out.oldCount
		default:
			st.NumListings.Automatic += out.newCount
		}
		meta := st.StoreMeta[s.store]
		setKindDate(&meta.LastFetchedDate, s.kind, started)
		if out.cursor != "" {
			setKindDate(&meta.Offset, s.kind, out.cursor)
		}
		st.StoreMeta[s.store] = meta
	})
}
