package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"froggle/internal/models"
	"froggle/internal/session"
)

func driveToMedia(t *testing.T, b *Bot, userID int64) {
	t.Helper()
	ctx := context.Background()
	beginSubmission(t, b, userID, "market", "Тбилиси")
	b.HandleUpdate(ctx, callbackUpdate(userID, "tag_select:1"))
	b.HandleUpdate(ctx, callbackUpdate(userID, "next_to_title"))
	b.HandleUpdate(ctx, textUpdate(userID, "Куртка"))
	b.HandleUpdate(ctx, textUpdate(userID, "Описание"))
	b.HandleUpdate(ctx, callbackUpdate(userID, "skip_price"))
}

func TestMediaGroup_OneStatusMessagePerBatch(t *testing.T) {
	b, tg, _ := newTestBot(t)
	ctx := context.Background()

	driveToMedia(t, b, 1)
	for i := 0; i < 4; i++ {
		b.HandleUpdate(ctx, photoUpdate(1, fmt.Sprintf("photo-%d", i), "album-1"))
	}

	require.Eventually(t, func() bool {
		return len(tg.messagesContaining("Загружено")) > 0
	}, time.Second, 10*time.Millisecond)

	statuses := tg.messagesContaining("Загружено")
	require.Len(t, statuses, 1)
	assert.Equal(t, "Загружено 4 файл(ов)", statuses[0].Text)

	// The flow moved on to contacts with all four files collected.
	sess := b.sessions.Get("1")
	assert.Equal(t, session.StateAdContacts, sess.State)
	assert.Len(t, sess.Draft.Media, 4)
	require.NotEmpty(t, tg.messagesContaining("Как с вами связаться?"))
}

func TestMediaGroup_TimerResetsOnArrival(t *testing.T) {
	b, tg, _ := newTestBot(t)
	ctx := context.Background()

	driveToMedia(t, b, 1)
	b.HandleUpdate(ctx, photoUpdate(1, "photo-a", "album-1"))
	time.Sleep(10 * time.Millisecond) // inside the settle window
	b.HandleUpdate(ctx, photoUpdate(1, "photo-b", "album-1"))

	require.Eventually(t, func() bool {
		return len(tg.messagesContaining("Загружено")) > 0
	}, time.Second, 10*time.Millisecond)

	statuses := tg.messagesContaining("Загружено")
	require.Len(t, statuses, 1)
	assert.Equal(t, "Загружено 2 файл(ов)", statuses[0].Text)
}

func TestMediaGroup_LimitDropsExtraFiles(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	driveToMedia(t, b, 1)
	for i := 0; i < models.MaxListingMedia+3; i++ {
		b.HandleUpdate(ctx, photoUpdate(1, fmt.Sprintf("photo-%d", i), "album-1"))
	}

	require.Eventually(t, func() bool {
		sess := b.sessions.Get("1")
		return sess.State == session.StateAdContacts
	}, time.Second, 10*time.Millisecond)

	sess := b.sessions.Get("1")
	assert.Len(t, sess.Draft.Media, models.MaxListingMedia)
}

func TestMediaGroup_DuplicateFileCountedOnce(t *testing.T) {
	b, tg, _ := newTestBot(t)
	ctx := context.Background()

	driveToMedia(t, b, 1)
	b.HandleUpdate(ctx, photoUpdate(1, "photo-a", "album-1"))
	b.HandleUpdate(ctx, photoUpdate(1, "photo-a", "album-1"))

	require.Eventually(t, func() bool {
		return len(tg.messagesContaining("Загружено")) > 0
	}, time.Second, 10*time.Millisecond)

	statuses := tg.messagesContaining("Загружено")
	require.Len(t, statuses, 1)
	assert.Equal(t, "Загружено 1 файл(ов)", statuses[0].Text)

	sess := b.sessions.Get("1")
	assert.Len(t, sess.Draft.Media, 1)
}

func TestMediaBatcher_SettlesExactlyOnce(t *testing.T) {
	var settled int32
	mb := newMediaBatcher(15*time.Millisecond, func(string, int64) {
		atomic.AddInt32(&settled, 1)
	})
	defer mb.stop()

	// Keep arriving around the settle boundary so a fired-but-stale timer
	// callback races a fresh arrival.
	for i := 0; i < 12; i++ {
		mb.arrive("1", 1, "album-1")
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&settled) > 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&settled))
}

func TestMediaBatcher_CancelDropsBatch(t *testing.T) {
	var settled int32
	mb := newMediaBatcher(15*time.Millisecond, func(string, int64) {
		atomic.AddInt32(&settled, 1)
	})
	defer mb.stop()

	mb.arrive("1", 1, "album-1")
	mb.cancel("1")

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&settled))
}

func TestMediaGroup_VideoCollected(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	driveToMedia(t, b, 1)
	msg := photoUpdate(1, "unused", "")
	msg.Message.Photo = nil
	msg.Message.Video = &tgbotapi.Video{FileID: "video-1"}
	b.HandleUpdate(ctx, msg)

	sess := b.sessions.Get("1")
	require.Len(t, sess.Draft.Media, 1)
	assert.Equal(t, models.MediaVideo, sess.Draft.Media[0].Kind)
	assert.Equal(t, "video-1", sess.Draft.Media[0].FileID)
}
