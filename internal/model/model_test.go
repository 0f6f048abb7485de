package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionTier(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Standard - member", "standard"},
		{"Enterprise 3 - member", "enterprise"},
		{"  Pro - member", "pro"},
		{"free", "free"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subscription{Name: tt.name}.Tier())
		})
	}
}

func TestMemberSubscription(t *testing.T) {
	u := &User{Subscriptions: []Subscription{{Name: "Early access"}, {Name: "Pro - member"}}}
	sub, ok := u.MemberSubscription()
	require.True(t, ok)
	assert.Equal(t, "Pro - member", sub.Name)

	_, ok = (&User{}).MemberSubscription()
	assert.False(t, ok)
}

func TestFirstOfNextMonth(t *testing.T) {
	got := FirstOfNextMonth(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got)

	got = FirstOfNextMonth(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-04-01T00:00:00.000Z", FormatTime(got))
}

func TestAppendEventDedupesAndSorts(t *testing.T) {
	o := &OrderRecord{}
	assert.True(t, o.AppendEvent(HistoryEvent{Title: "Completed", Timestamp: "2026-02-03T10:00:00.000Z"}))
	assert.True(t, o.AppendEvent(HistoryEvent{Title: "Order Placed", Timestamp: "2026-02-01T10:00:00.000Z"}))
	assert.False(t, o.AppendEvent(HistoryEvent{Title: "Completed", Timestamp: "2026-02-05T10:00:00.000Z"}))
	assert.False(t, o.AppendEvent(HistoryEvent{}))

	require.Len(t, o.History, 2)
	assert.Equal(t, "Order Placed", o.History[0].Title)
	assert.Equal(t, "Completed", o.History[1].Title)
}

func TestInventoryChangedFrom(t *testing.T) {
	base := InventoryItem{ItemID: "1", Name: "Jacket", Price: 10, Quantity: 2, Image: []string{"a"}}
	same := base
	assert.False(t, same.ChangedFrom(&base))
	assert.True(t, same.ChangedFrom(nil))

	same.Image = []string{"b"}
	assert.True(t, same.ChangedFrom(&base))

	// lastModified is not a tracked field
	other := base
	other.LastModified = "2026-01-01T00:00:00.000Z"
	assert.False(t, other.ChangedFrom(&base))
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2026-01-02T03:04:05.000Z", "2026-01-02T03:04:05Z", "2026-01-02T03:04:05+00:00"} {
		got, err := ParseTime(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got)
	}
	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}
