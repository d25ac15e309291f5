package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vaultauction/core/types"
)

type testEvent struct{ evt *types.Event }

func (e testEvent) EventType() string { return e.evt.Type }
func (e testEvent) Event() *types.Event { return e.evt }

type bareEvent string

func (e bareEvent) EventType() string { return string(e) }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func emitBid(a *Archive, auction string, amount int) {
	a.Emit(testEvent{&types.Event{Type: "auction.bid_placed", Attributes: map[string]string{
		"auction": auction,
		"amount":  fmt.Sprint(amount),
	}}})
}

func TestArchiveQuery(t *testing.T) {
	db := setupTestDB(t)
	archive, err := New(db, nil)
	require.NoError(t, err)

	emitBid(archive, "0xaa", 100)
	emitBid(archive, "0xbb", 200)
	archive.Emit(bareEvent("auction.ended"))
	emitBid(archive, "0xaa", 300)

	ctx := context.Background()
	all, err := archive.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, entry := range all {
		require.Equal(t, uint64(i+1), entry.Sequence)
	}
	require.Nil(t, all[2].Attributes)

	onA, err := archive.Query(ctx, Filter{Auction: "0xAA"})
	require.NoError(t, err)
	require.Len(t, onA, 2)
	require.Equal(t, "300", onA[1].Attributes["amount"])

	page, err := archive.Query(ctx, Filter{Type: "auction.bid_placed", After: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, uint64(2), page[0].Sequence)
}

func TestArchiveResumesSequence(t *testing.T) {
	db := setupTestDB(t)
	first, err := New(db, nil)
	require.NoError(t, err)
	emitBid(first, "0xaa", 1)
	emitBid(first, "0xaa", 2)

	second, err := New(db, nil)
	require.NoError(t, err)
	emitBid(second, "0xaa", 3)

	entries, err := second.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(3), entries[2].Sequence)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", nil)
	require.ErrorContains(t, err, "unsupported driver")
}
