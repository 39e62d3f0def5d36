package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/models"
	"froggle/internal/session"
)

// batchKey identifies one in-flight media batch. Telegram delivers an album
// as separate messages sharing a MediaGroupID; loose photos arrive with an
// empty one and still share a batch per user.
type batchKey struct {
	sessionKey string
	groupID    string
}

type batchState struct {
	timer *time.Timer
	gen   uint64
}

// mediaBatcher coalesces a burst of media messages into one settled event.
// Every arrival rearms the batch timer; the callback fires only after the
// settle window passes with no new file. A generation counter guards against
// a timer that already fired but whose callback lost the race to a fresh
// arrival, so a batch settles exactly once.
type mediaBatcher struct {
	mu        sync.Mutex
	settle    time.Duration
	onSettled func(sessionKey string, chatID int64)
	batches   map[batchKey]*batchState
}

func newMediaBatcher(settle time.Duration, onSettled func(sessionKey string, chatID int64)) *mediaBatcher {
	return &mediaBatcher{
		settle:    settle,
		onSettled: onSettled,
		batches:   make(map[batchKey]*batchState),
	}
}

func (m *mediaBatcher) arrive(sessionKey string, chatID int64, groupID string) {
	key := batchKey{sessionKey: sessionKey, groupID: groupID}

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.batches[key]
	if !ok {
		st = &batchState{}
		m.batches[key] = st
	} else {
		st.timer.Stop()
	}
	st.gen++
	gen := st.gen
	st.timer = time.AfterFunc(m.settle, func() {
		m.mu.Lock()
		cur, ok := m.batches[key]
		if !ok || cur.gen != gen {
			m.mu.Unlock()
			return
		}
		delete(m.batches, key)
		m.mu.Unlock()
		m.onSettled(sessionKey, chatID)
	})
}

// cancel drops every in-flight batch of the session, e.g. when the user
// skips the media step mid-burst.
func (m *mediaBatcher) cancel(sessionKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, st := range m.batches {
		if key.sessionKey != sessionKey {
			continue
		}
		st.timer.Stop()
		delete(m.batches, key)
	}
}

func (m *mediaBatcher) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, st := range m.batches {
		st.timer.Stop()
		delete(m.batches, key)
	}
}

// handleMediaMessage collects one photo or video into the draft and feeds
// the batcher. The user sees nothing until the whole burst settles.
func (b *Bot) handleMediaMessage(ctx context.Context, msg *tgbotapi.Message, sess *session.Session) {
	item, ok := mediaFromMessage(msg)
	if !ok {
		b.send(msg.Chat.ID, "Отправьте фото или видео.", skipMediaKeyboard())
		return
	}
	switch {
	case hasMediaFile(sess.Draft.Media, item.FileID):
		// Redelivered file, count it once.
	case len(sess.Draft.Media) >= models.MaxListingMedia:
		b.logger.Debug("Media limit reached, dropping file",
			zap.Int64("user_id", msg.From.ID))
	default:
		sess.Draft.Media = append(sess.Draft.Media, item)
	}
	b.batches.arrive(sessionKey(msg.From.ID), msg.Chat.ID, msg.MediaGroupID)
}

func hasMediaFile(media []models.MediaItem, fileID string) bool {
	for _, m := range media {
		if m.FileID == fileID {
			return true
		}
	}
	return false
}

func mediaFromMessage(msg *tgbotapi.Message) (models.MediaItem, bool) {
	if len(msg.Photo) > 0 {
		// The last size is the largest.
		return models.MediaItem{
			FileID: msg.Photo[len(msg.Photo)-1].FileID,
			Kind:   models.MediaPhoto,
		}, true
	}
	if msg.Video != nil {
		return models.MediaItem{
			FileID: msg.Video.FileID,
			Kind:   models.MediaVideo,
		}, true
	}
	return models.MediaItem{}, false
}

// finishMediaUpload runs once per settled batch: report the upload count in
// a single message and advance the flow to contacts.
func (b *Bot) finishMediaUpload(key string, chatID int64) {
	ctx := context.Background()

	sess, ok := b.sessions.Peek(key)
	if !ok || sess.State != session.StateAdMedia {
		return
	}

	text := fmt.Sprintf("Загружено %d файл(ов)", len(sess.Draft.Media))
	if sess.Draft.StatusMessageID != 0 {
		if err := b.tg.EditMessageText(chatID, sess.Draft.StatusMessageID, text, nil); err != nil {
			b.logger.Debug("Failed to edit upload status, sending fresh", zap.Error(err))
			sess.Draft.StatusMessageID = 0
		}
	}
	if sess.Draft.StatusMessageID == 0 {
		msgID, err := b.tg.SendMessage(chatID, text, nil)
		if err != nil {
			b.logger.Error("Failed to send upload status", zap.Error(err))
		} else {
			sess.Draft.StatusMessageID = msgID
		}
	}

	username := ""
	if user, err := b.db.UserByTelegramID(ctx, key); err == nil {
		username = user.Username
	}
	if err := b.sendContactOptions(ctx, chatID, key, username, sess); err != nil {
		b.logger.Error("Failed to send contact options", zap.Error(err))
	}
}
