package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"froggle/internal/models"
	"froggle/internal/storage"
	"froggle/internal/storage/stubs"
)

const adminID int64 = 99

func seedAdmin(t *testing.T, db *stubs.MockDB) *models.User {
	t.Helper()
	admin, err := db.GetOrCreateUser(context.Background(),
		fmt.Sprintf("%d", adminID), "Admin", "", "admin")
	require.NoError(t, err)
	db.SetAdmin(admin.ID, true)
	return admin
}

func seedOwnerListing(t *testing.T, db *stubs.MockDB, status models.Status) (*models.User, int64) {
	t.Helper()
	ctx := context.Background()
	owner, err := db.GetOrCreateUser(ctx, "1", "Owner", "", "owner")
	require.NoError(t, err)
	id, err := db.CreateListing(ctx, &models.Listing{
		UserID:      owner.ID,
		Category:    "auto",
		City:        "Тбилиси",
		Tags:        models.StringList{"тюнинг"},
		Title:       "Перетяжка салона",
		ContactInfo: "@owner",
		Status:      status,
	})
	require.NoError(t, err)
	return owner, id
}

func TestModeration_NonAdminDenied(t *testing.T) {
	b, tg, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, commandUpdate(1, "start"))
	b.HandleUpdate(ctx, callbackUpdate(1, "moderate"))

	alerts := tg.alerts()
	require.NotEmpty(t, alerts)
	assert.Equal(t, "Недостаточно прав", alerts[len(alerts)-1].Text)
}

func TestModeration_EmptyQueue(t *testing.T) {
	b, tg, db := newTestBot(t)
	seedAdmin(t, db)

	b.HandleUpdate(context.Background(), callbackUpdate(adminID, "moderate"))
	require.NotEmpty(t, tg.messagesContaining("Очередь модерации пуста"))
}

func TestModeration_ApproveNotifiesOwner(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	seedAdmin(t, db)
	_, listingID := seedOwnerListing(t, db, models.StatusPending)

	b.HandleUpdate(ctx, callbackUpdate(adminID, "moderate"))
	require.NotEmpty(t, tg.messagesContaining("Решение по объявлению"))

	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("approve:%d:101,102", listingID)))

	l, err := db.Listing(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, l.Status)

	// The rendered block is gone and the owner heard about the decision.
	assert.Equal(t, []int{101, 102}, tg.Deleted)
	notices := tg.messagesContaining("одобрено и опубликовано")
	require.Len(t, notices, 1)
	assert.Equal(t, int64(1), notices[0].ChatID)
}

func TestModeration_ApproveFansOutToSubscribers(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	seedAdmin(t, db)
	owner, listingID := seedOwnerListing(t, db, models.StatusPending)

	// Two already published listings the subscriber has not seen.
	for i := 0; i < 2; i++ {
		_, err := db.CreateListing(ctx, &models.Listing{
			UserID:   owner.ID,
			Category: "auto",
			City:     "Тбилиси",
			Tags:     models.StringList{"тюнинг"},
			Title:    fmt.Sprintf("Объявление %d", i),
			Status:   models.StatusApproved,
		})
		require.NoError(t, err)
	}

	subscriber, err := db.GetOrCreateUser(ctx, "2", "Sub", "", "sub")
	require.NoError(t, err)
	_, err = db.CreateSubscription(ctx, &models.Subscription{
		UserID:   subscriber.ID,
		City:     "Тбилиси",
		Category: "auto",
		Tags:     models.StringList{"тюнинг"},
	})
	require.NoError(t, err)

	b.HandleUpdate(ctx, callbackUpdate(adminID, "moderate"))
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("approve:%d:101", listingID)))

	notices := tg.messagesContaining("новых объявлений: 3")
	require.Len(t, notices, 1)
	assert.Equal(t, int64(2), notices[0].ChatID)
	require.NotNil(t, notices[0].Keyboard)
}

func TestModeration_ApproveRefreshesQueueStatus(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	seedAdmin(t, db)
	_, listingID := seedOwnerListing(t, db, models.StatusPending)

	b.HandleUpdate(ctx, callbackUpdate(adminID, "moderate"))
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("approve:%d:101", listingID)))

	// The last pending listing is gone; the moderator gets fresh navigation
	// with the empty queue notice.
	empties := tg.messagesContaining("Очередь модерации пуста")
	require.NotEmpty(t, empties)
	last := empties[len(empties)-1]
	assert.Equal(t, adminID, last.ChatID)
	require.NotNil(t, last.Keyboard)
}

func TestModeration_RejectRefreshesQueueCount(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	seedAdmin(t, db)
	owner, listingID := seedOwnerListing(t, db, models.StatusPending)
	_, err := db.CreateListing(ctx, &models.Listing{
		UserID:      owner.ID,
		Category:    "auto",
		City:        "Тбилиси",
		Tags:        models.StringList{"ремонт"},
		Title:       "Замена масла",
		ContactInfo: "@owner",
		Status:      models.StatusPending,
	})
	require.NoError(t, err)

	b.HandleUpdate(ctx, callbackUpdate(adminID, "moderate"))
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("reject:%d:101", listingID)))

	counts := tg.messagesContaining("объявлений в очереди: 1")
	require.NotEmpty(t, counts)
	assert.Equal(t, adminID, counts[len(counts)-1].ChatID)
}

func TestModeration_RejectNotifiesOwner(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	seedAdmin(t, db)
	_, listingID := seedOwnerListing(t, db, models.StatusPending)

	b.HandleUpdate(ctx, callbackUpdate(adminID, "moderate"))
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("reject:%d:101", listingID)))

	l, err := db.Listing(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, l.Status)

	notices := tg.messagesContaining("отклонено модератором")
	require.Len(t, notices, 1)
	assert.Equal(t, int64(1), notices[0].ChatID)
}

func TestModeration_StaleDecisionIsNoOp(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	seedAdmin(t, db)
	_, listingID := seedOwnerListing(t, db, models.StatusApproved)

	b.HandleUpdate(ctx, callbackUpdate(adminID, "moderate"))
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("approve:%d:101", listingID)))

	l, err := db.Listing(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, l.Status)

	alerts := tg.alerts()
	require.NotEmpty(t, alerts)
	assert.Equal(t, "Объявление уже обработано", alerts[len(alerts)-1].Text)
}

func TestModeration_AdminRevokedMidSession(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	admin := seedAdmin(t, db)
	_, listingID := seedOwnerListing(t, db, models.StatusPending)

	b.HandleUpdate(ctx, callbackUpdate(adminID, "moderate"))
	db.SetAdmin(admin.ID, false)
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("approve:%d:101", listingID)))

	l, err := db.Listing(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, l.Status)

	alerts := tg.alerts()
	require.NotEmpty(t, alerts)
	assert.Equal(t, "Недостаточно прав", alerts[len(alerts)-1].Text)
}

func TestModeration_DeleteRequiresConfirmation(t *testing.T) {
	b, tg, db := newTestBot(t)
	ctx := context.Background()
	seedAdmin(t, db)
	_, listingID := seedOwnerListing(t, db, models.StatusPending)

	b.HandleUpdate(ctx, callbackUpdate(adminID, "moderate"))

	// First step only flips the action row, nothing is deleted yet.
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("delete:%d:101", listingID)))
	_, err := db.Listing(ctx, listingID)
	require.NoError(t, err)
	require.NotEmpty(t, tg.Edits)
	assert.Contains(t, tg.Edits[len(tg.Edits)-1].Text, "безвозвратно")

	// Нет restores the action row.
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("delete_cancel:%d:101", listingID)))
	assert.Contains(t, tg.Edits[len(tg.Edits)-1].Text, "Решение по объявлению")
	_, err = db.Listing(ctx, listingID)
	require.NoError(t, err)

	// Да removes the row for good and tells the owner.
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("delete:%d:101", listingID)))
	b.HandleUpdate(ctx, callbackUpdate(adminID, fmt.Sprintf("delete_confirm:%d:101", listingID)))

	_, err = db.Listing(ctx, listingID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	notices := tg.messagesContaining("удалено модератором")
	require.Len(t, notices, 1)
	assert.Equal(t, int64(1), notices[0].ChatID)
}
