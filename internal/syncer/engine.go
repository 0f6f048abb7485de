// Package syncer pulls marketplace listings and orders into a user's collections
// while keeping subscription quotas.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"storesync-api/internal/cache"
	"storesync-api/internal/config"
	"storesync-api/internal/lock"
	"storesync-api/internal/marketplace/depop"
	"storesync-api/internal/marketplace/ebay"
	"storesync-api/internal/model"
	"storesync-api/internal/repository"
)

// Options tunes the engine.
type Options struct {
	MaxDepth       int
	ListingPageCap int
	OrderPageCap   int
	LockTTL        time.Duration
	CacheTTL       time.Duration
	// StoreActive gates runs per marketplace. Nil allows every store.
	StoreActive func(store string) bool
}

// Engine runs syncs for one (user, store, kind) at a time per user and store.
type Engine struct {
	gw     repository.Gateway
	locker lock.Locker
	cache  cache.Cache
	ebay   EbayAPI
	depop  DepopAPI
	limits *config.Limits
	opts   Options
	log    *logrus.Entry
	now    func() time.Time
}

// New creates an engine.
func New(gw repository.Gateway, locker lock.Locker, c cache.Cache, eb EbayAPI, dp DepopAPI, limits *config.Limits, opts Options, log *logrus.Entry) *Engine {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 50
	}
	if opts.ListingPageCap <= 0 {
		opts.ListingPageCap = ebay.MaxPerPage
	}
	if opts.OrderPageCap <= 0 {
		opts.OrderPageCap = ebay.MaxPerPage
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &Engine{
		gw:     gw,
		locker: locker,
		cache:  c,
		ebay:   eb,
		depop:  dp,
		limits: limits,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
}

// Run syncs one kind of one marketplace for a user.
// Pages persisted before a failure are kept; the returned result reflects them.
func (e *Engine) Run(ctx context.Context, userID string, store model.Store, kind model.Kind) (*model.SyncResult, error) {
	if e.opts.StoreActive != nil && !e.opts.StoreActive(string(store)) {
		return nil, fmt.Errorf("%w: %s", ErrStoreDisabled, store)
	}

	lease, err := e.locker.Obtain(ctx, lock.SyncKey(userID, string(store)), e.opts.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, fmt.Errorf("%w: %s/%s", ErrSyncInProgress, userID, store)
		}
		return nil, fmt.Errorf("obtain sync lock: %w", err)
	}
	defer lease.Release()

	// The lease is refreshed for as long as the run lasts. Losing it stops
	// the run before another holder can double count.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := lock.Keep(lease, e.opts.LockTTL, func(err error) {
		cancel(fmt.Errorf("%w: %v", ErrLockLost, err))
	})
	defer stop()

	s, err := e.open(ctx, userID, store, kind)
	if err != nil {
		return nil, lockLost(ctx, err)
	}

	start := time.Now()
	s.log.WithFields(logrus.Fields{
		"first_lookup": s.firstLookup,
		"limit":        s.limit.Automatic,
	}).Info("Sync started")

	var res *model.SyncResult
	switch {
	case store == model.StoreEbay && kind == model.KindInventory:
		res, err = syncListings[ebay.Item](ctx, e, s, ebayListings{api: e.ebay})
	case store == model.StoreEbay && kind == model.KindOrders:
		res, err = syncOrders[ebay.Order](ctx, e, s, ebayOrders{api: e.ebay, cache: e.cache, ttl: e.opts.CacheTTL})
	case store == model.StoreDepop && kind == model.KindInventory:
		res, err = syncListings[depop.Product](ctx, e, s, depopListings{api: e.depop})
	case store == model.StoreDepop && kind == model.KindOrders:
		res, err = syncOrders[depop.Product](ctx, e, s, depopOrders{api: e.depop})
	default:
		return nil, fmt.Errorf("unsupported sync %s/%s", store, kind)
	}

	entry := s.log.WithFields(logrus.Fields{
		"new":      res.NewCount,
		"old":      res.OldCount,
		"written":  res.Written,
		"removed":  res.Removed,
		"pages":    res.Pages,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		err = lockLost(ctx, err)
		res.Error = err.Error()
		entry.WithError(err).Error("Sync failed")
		return res, err
	}
	res.Success = true
	entry.Info("Sync completed")
	return res, nil
}

// open loads the user and resolves everything a run needs before fetching.
func (e *Engine) open(ctx context.Context, userID string, store model.Store, kind model.Kind) (*session, error) {
	user, err := e.gw.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
		}
		return nil, persistence("load user", err)
	}

	acct, ok := user.Account(store)
	if !ok || !connected(store, acct) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotConnected, store)
	}

	sub, ok := user.MemberSubscription()
	if !ok {
		return nil, ErrNoSubscription
	}
	limit, ok := e.limits.For(string(kind), sub.Tier())
	if !ok {
		return nil, fmt.Errorf("%w: no %s limit for tier %q", ErrNoSubscription, kind, sub.Tier())
	}

	now := e.now().UTC()
	s := &session{
		user:    user,
		store:   store,
		kind:    kind,
		account: acct,
		plan:    sub.Name,
		limit:   limit,
		now:     now,
		log: e.log.WithFields(logrus.Fields{
			"user_id": userID,
			"store":   store,
			"kind":    kind,
		}),
	}
	if id := RunID(ctx); id != "" {
		s.log = s.log.WithField("run_id", id)
	}

	last := user.Meta(store).LastFetchedDate.Get(kind)
	s.firstLookup = last == ""
	s.timeFrom = now.AddDate(0, 0, -historyWindowDays)
	if t, err := model.ParseTime(last); err == nil {
		s.timeFrom = t
	}

	if kind == model.KindOrders {
		if err := e.resetOrderPeriod(ctx, s); err != nil {
			return nil, err
		}
	}
	if err := preflight(s); err != nil {
		return nil, err
	}
	return s, nil
}

// lockLost reports a lost lease instead of the cancellation it caused.
func lockLost(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrLockLost) {
		return cause
	}
	return err
}

type runIDKey struct{}

// WithRunID tags ctx so the run's log entries carry id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id stored by WithRunID.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func connected(store model.Store, acct model.ConnectedAccount) bool {
	if store == model.StoreDepop {
		return acct.ShopID != ""
	}
	return acct.AccessToken != ""
}
