package pg

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"froggle/internal/models"
	"froggle/internal/storage"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(sqlite.Open(":memory:"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, telegramID string) *models.User {
	t.Helper()
	user, err := db.GetOrCreateUser(context.Background(), telegramID, "Test", "", "testuser")
	require.NoError(t, err)
	return user
}

func createTestListing(t *testing.T, db *DB, userID int64, status models.Status, tags ...string) *models.Listing {
	t.Helper()
	l := &models.Listing{
		UserID:      userID,
		Category:    "market",
		City:        "Тбилиси",
		Tags:        tags,
		Title:       "title",
		Description: "description",
		ContactInfo: "@testuser",
		Status:      status,
	}
	_, err := db.CreateListing(context.Background(), l)
	require.NoError(t, err)
	return l
}

func TestGetOrCreateUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := db.GetOrCreateUser(ctx, "100", "Anna", "K", "anna")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.False(t, first.IsAdmin)

	again, err := db.GetOrCreateUser(ctx, "100", "Other", "Name", "other")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Anna", again.FirstName, "existing user is not mutated")
}

func TestUserByTelegramID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.UserByTelegramID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateListing_ClampsLimits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")

	media := make(models.MediaList, 0, 12)
	for i := 0; i < 12; i++ {
		media = append(media, models.MediaItem{FileID: fmt.Sprintf("f%d", i), Kind: models.MediaPhoto})
	}
	l := &models.Listing{
		UserID:   user.ID,
		Category: "market",
		City:     "Тбилиси",
		Tags:     models.StringList{"a", "b", "c", "d"},
		Media:    media,
	}
	id, err := db.CreateListing(ctx, l)
	require.NoError(t, err)

	got, err := db.Listing(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Tags, models.MaxListingTags)
	assert.Len(t, got.Media, models.MaxListingMedia)
	assert.Equal(t, "f0", got.Media[0].FileID, "insertion order preserved")
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestSetListingStatus_Guarded(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")
	l := createTestListing(t, db, user.ID, models.StatusPending, "продам")

	require.NoError(t, db.SetListingStatus(ctx, l.ID, models.StatusPending, models.StatusApproved))

	// A second approve loses: the listing is no longer pending.
	err := db.SetListingStatus(ctx, l.ID, models.StatusPending, models.StatusApproved)
	assert.ErrorIs(t, err, storage.ErrStatusConflict)

	// Approved never goes back to pending through the guarded path.
	err = db.SetListingStatus(ctx, l.ID, models.StatusRejected, models.StatusPending)
	assert.ErrorIs(t, err, storage.ErrStatusConflict)

	err = db.SetListingStatus(ctx, 9999, models.StatusPending, models.StatusApproved)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteListing_Cascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "1")
	viewer := createTestUser(t, db, "2")
	l := createTestListing(t, db, owner.ID, models.StatusApproved, "продам")

	require.NoError(t, db.MarkViewed(ctx, viewer.ID, l.ID))
	require.NoError(t, db.AddFavorite(ctx, viewer.ID, l.ID))

	require.NoError(t, db.DeleteListing(ctx, l.ID))

	_, err := db.Listing(ctx, l.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	fav, err := db.IsFavorite(ctx, viewer.ID, l.ID)
	require.NoError(t, err)
	assert.False(t, fav)

	assert.ErrorIs(t, db.DeleteListing(ctx, l.ID), storage.ErrNotFound)
}

func TestPendingListings_StableOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")
	a := createTestListing(t, db, user.ID, models.StatusPending, "продам")
	b := createTestListing(t, db, user.ID, models.StatusPending, "даром")
	createTestListing(t, db, user.ID, models.StatusApproved, "продам")

	pending, err := db.PendingListings(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)
}

func TestLastContact(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")

	contact, err := db.LastContact(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, contact)

	older := &models.Listing{UserID: user.ID, Category: "market", City: "Тбилиси", ContactInfo: "@old", CreatedAt: time.Now().Add(-time.Hour)}
	_, err = db.CreateListing(ctx, older)
	require.NoError(t, err)
	newer := &models.Listing{UserID: user.ID, Category: "market", City: "Тбилиси", ContactInfo: "@new", CreatedAt: time.Now()}
	_, err = db.CreateListing(ctx, newer)
	require.NoError(t, err)

	contact, err = db.LastContact(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "@new", contact)
}

func TestAddFavorite_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")
	l := createTestListing(t, db, user.ID, models.StatusApproved, "продам")

	require.NoError(t, db.AddFavorite(ctx, user.ID, l.ID))
	assert.ErrorIs(t, db.AddFavorite(ctx, user.ID, l.ID), storage.ErrAlreadyFavorite)

	favs, err := db.FavoriteListings(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, favs, 1)

	require.NoError(t, db.RemoveFavorite(ctx, user.ID, l.ID))
	assert.ErrorIs(t, db.RemoveFavorite(ctx, user.ID, l.ID), storage.ErrNotFound)
}

func TestTagsInUse(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")

	seedTags(t, db, "market",
		models.Tag{Name: "продам", IsPrimary: true, DisplayOrder: 1},
		models.Tag{Name: "даром", IsPrimary: true, DisplayOrder: 2},
		models.Tag{Name: "одежда", DisplayOrder: 3},
	)
	createTestListing(t, db, user.ID, models.StatusApproved, "продам")
	createTestListing(t, db, user.ID, models.StatusPending, "одежда")

	used, err := db.TagsInUse(ctx, "market", "Тбилиси")
	require.NoError(t, err)
	require.Len(t, used, 1, "pending listings do not count as usage")
	assert.Equal(t, "продам", used[0].Name)

	all, err := db.TagsByCategory(ctx, "market")
	require.NoError(t, err)
	assert.Len(t, all, 3, "submission sees the full tag set")
}

func TestCityCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")
	createTestListing(t, db, user.ID, models.StatusApproved, "продам")
	createTestListing(t, db, user.ID, models.StatusApproved, "даром")
	createTestListing(t, db, user.ID, models.StatusPending, "продам")

	counts, err := db.CityCounts(ctx, "market")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "Тбилиси", counts[0].City)
	assert.Equal(t, int64(2), counts[0].Count)
}

func TestUnseenCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "1")
	subscriber := createTestUser(t, db, "2")

	first := createTestListing(t, db, owner.ID, models.StatusApproved, "тюнинг")
	second := createTestListing(t, db, owner.ID, models.StatusApproved, "тюнинг")
	createTestListing(t, db, owner.ID, models.StatusApproved, "ремонт")
	createTestListing(t, db, owner.ID, models.StatusPending, "тюнинг")

	count, err := db.UnseenCount(ctx, subscriber.ID, "Тбилиси", "market", []string{"тюнинг"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Viewing excludes the listing from every later computation.
	require.NoError(t, db.MarkViewed(ctx, subscriber.ID, first.ID))
	count, err = db.UnseenCount(ctx, subscriber.ID, "Тбилиси", "market", []string{"тюнинг"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Empty subscription tags match any listing tags.
	count, err = db.UnseenCount(ctx, subscriber.ID, "Тбилиси", "market", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, db.MarkViewed(ctx, subscriber.ID, second.ID))
	count, err = db.UnseenCount(ctx, subscriber.ID, "Тбилиси", "market", []string{"тюнинг"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMarkViewed_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")
	l := createTestListing(t, db, user.ID, models.StatusApproved, "продам")

	require.NoError(t, db.MarkViewed(ctx, user.ID, l.ID))
	require.NoError(t, db.MarkViewed(ctx, user.ID, l.ID))

	count, err := db.UnseenCount(ctx, user.ID, "Тбилиси", "market", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMatchingSubscriptions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "1")

	_, err := db.CreateSubscription(ctx, &models.Subscription{
		UserID: user.ID, City: "Тбилиси", Category: "auto", Tags: models.StringList{"тюнинг", "ремонт"},
	})
	require.NoError(t, err)
	_, err = db.CreateSubscription(ctx, &models.Subscription{
		UserID: user.ID, City: "Батуми", Category: "auto", Tags: models.StringList{"тюнинг"},
	})
	require.NoError(t, err)
	_, err = db.CreateSubscription(ctx, &models.Subscription{
		UserID: user.ID, City: "Тбилиси", Category: "auto",
	})
	require.NoError(t, err)

	subs, err := db.MatchingSubscriptions(ctx, "Тбилиси", "auto", []string{"тюнинг"})
	require.NoError(t, err)
	assert.Len(t, subs, 2, "tag overlap plus the wildcard subscription")

	subs, err = db.MatchingSubscriptions(ctx, "Тбилиси", "auto", []string{"запчасти"})
	require.NoError(t, err)
	assert.Len(t, subs, 1, "only the wildcard subscription matches")
}

func seedTags(t *testing.T, db *DB, category string, tags ...models.Tag) {
	t.Helper()
	for i := range tags {
		tags[i].Category = category
		require.NoError(t, db.g.Create(&tags[i]).Error)
	}
}
