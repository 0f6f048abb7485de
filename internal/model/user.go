package model

import (
	"strings"
	"time"
)

// Subscription is a billing plan attached to a user, e.g. "Standard - member".
type Subscription struct {
	Name string `json:"name" bson:"name"`
}

// Tier returns the lowercased first word of the plan name.
func (s Subscription) Tier() string {
	name := strings.TrimSpace(s.Name)
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// ConnectedAccount holds marketplace credentials for one store.
type ConnectedAccount struct {
	AccessToken string `json:"accessToken,omitempty" bson:"accessToken,omitempty"`
	ShopID      string `json:"shopId,omitempty" bson:"shopId,omitempty"`
	Username    string `json:"username,omitempty" bson:"username,omitempty"`
}

// ListingCounters tracks automatic and manual inventory records.
type ListingCounters struct {
	Automatic int `json:"automatic" bson:"automatic"`
	Manual    int `json:"manual" bson:"manual"`
}

// OrderCounters tracks order records within the current reset period.
type OrderCounters struct {
	ResetDate      string `json:"resetDate" bson:"resetDate"`
	Automatic      int    `json:"automatic" bson:"automatic"`
	Manual         int    `json:"manual" bson:"manual"`
	TotalAutomatic int    `json:"totalAutomatic" bson:"totalAutomatic"`
	TotalManual    int    `json:"totalManual" bson:"totalManual"`
}

// KindDates holds one timestamp per collection kind.
type KindDates struct {
	Inventory *string `json:"inventory" bson:"inventory"`
	Orders    *string `json:"orders" bson:"orders"`
}

// Get returns the value for kind, or "" when unset.
func (d KindDates) Get(kind Kind) string {
	p := d.Inventory
	if kind == KindOrders {
		p = d.Orders
	}
	if p == nil {
		return ""
	}
	return *p
}

// StoreMeta is the per-marketplace sync bookkeeping.
type StoreMeta struct {
	LastFetchedDate KindDates `json:"lastFetchedDate" bson:"lastFetchedDate"`
	Offset          KindDates `json:"offset" bson:"offset"`
}

// StoreState is the "store" sub-document of a user.
type StoreState struct {
	NumListings ListingCounters     `json:"numListings" bson:"numListings"`
	NumOrders   OrderCounters       `json:"numOrders" bson:"numOrders"`
	StoreMeta   map[Store]StoreMeta `json:"storeMeta" bson:"storeMeta"`
}

// User is the persisted per-user document.
type User struct {
	ID                string                     `json:"id" bson:"_id"`
	Subscriptions     []Subscription             `json:"subscriptions" bson:"subscriptions"`
	ConnectedAccounts map[Store]ConnectedAccount `json:"connectedAccounts" bson:"connectedAccounts"`
	Store             StoreState                 `json:"store" bson:"store"`
	Version           int64                      `json:"-" bson:"version"`
}

// MemberSubscription returns the first subscription whose name contains "member".
func (u *User) MemberSubscription() (Subscription, bool) {
	for _, sub := range u.Subscriptions {
		if strings.Contains(sub.Name, "member") {
			return sub, true
		}
	}
	return Subscription{}, false
}

// Account returns the connected account for store.
func (u *User) Account(store Store) (ConnectedAccount, bool) {
	acct, ok := u.ConnectedAccounts[store]
	return acct, ok
}

// Meta returns the store meta for a marketplace, zero-valued when missing.
func (u *User) Meta(store Store) StoreMeta {
	if u.Store.StoreMeta == nil {
		return StoreMeta{}
	}
	return u.Store.StoreMeta[store]
}

// FirstOfNextMonth returns 00:00 UTC on the first day of the month after now.
func FirstOfNextMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// InMonth reports whether t falls in the same UTC calendar month as now.
func InMonth(t, now time.Time) bool {
	t, now = t.UTC(), now.UTC()
	return t.Year() == now.Year() && t.Month() == now.Month()
}
