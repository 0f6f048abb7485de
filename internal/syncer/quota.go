package syncer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"storesync-api/internal/model"
)

// resetOrderPeriod evaluates the monthly order counter reset.
// An unset reset date is initialised without clearing counts; an expired one
// clears automatic and manual and moves to the first of next month. Totals are kept.
func (e *Engine) resetOrderPeriod(ctx context.Context, s *session) error {
	c := s.user.Store.NumOrders
	next := model.FormatTime(model.FirstOfNextMonth(s.now))

	reset, err := model.ParseTime(c.ResetDate)
	switch {
	case c.ResetDate == "" || err != nil:
		s.log.WithField("reset_date", next).Debug("Initialising order reset date")
	case !s.now.Before(reset):
		s.log.WithFields(logrus.Fields{
			"reset_date": c.ResetDate,
			"automatic":  c.Automatic,
		}).Info("Order period expired, resetting counters")
	default:
		return nil
	}

	return e.updateStore(ctx, s, func(st *model.StoreState) {
		if r, err := model.ParseTime(st.NumOrders.ResetDate); err == nil {
			if s.now.Before(r) {
				return
			}
			st.NumOrders.Automatic = 0
			st.NumOrders.Manual = 0
		}
		st.NumOrders.ResetDate = next
	})
}

// preflight rejects a run whose automatic count already reached the limit.
func preflight(s *session) error {
	used := s.user.Store.NumListings.Automatic
	if s.kind == model.KindOrders {
		used = s.user.Store.NumOrders.Automatic
	}
	if used >= s.limit.Automatic {
		return fmt.Errorf("%w: %s %d/%d", ErrQuotaExceeded, s.kind, used, s.limit.Automatic)
	}
	return nil
}
