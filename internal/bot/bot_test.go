package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"froggle/internal/models"
	"froggle/internal/storage/stubs"
)

type sentMessage struct {
	ChatID   int64
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
	ID       int
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  *tgbotapi.InlineKeyboardMarkup
}

type sentMediaGroup struct {
	ChatID int64
	Items  []models.MediaItem
}

type answeredCallback struct {
	ID        string
	Text      string
	ShowAlert bool
}

// fakeTransport records every outgoing interaction so tests can assert on
// the conversation as the user would see it.
type fakeTransport struct {
	mu sync.Mutex

	Messages    []sentMessage
	Edits       []editedMessage
	MarkupEdits []editedMessage
	Deleted     []int
	MediaGroups []sentMediaGroup
	Callbacks   []answeredCallback
	Uploads     []string

	nextID int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 100}
}

func (f *fakeTransport) SendMessage(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.Messages = append(f.Messages, sentMessage{ChatID: chatID, Text: text, Keyboard: kb, ID: f.nextID})
	return f.nextID, nil
}

func (f *fakeTransport) EditMessageText(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
	return nil
}

func (f *fakeTransport) EditMessageReplyMarkup(chatID int64, messageID int, kb tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MarkupEdits = append(f.MarkupEdits, editedMessage{ChatID: chatID, MessageID: messageID, Keyboard: &kb})
	return nil
}

func (f *fakeTransport) DeleteMessage(chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *fakeTransport) SendMediaGroup(chatID int64, items []models.MediaItem) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MediaGroups = append(f.MediaGroups, sentMediaGroup{ChatID: chatID, Items: items})
	ids := make([]int, len(items))
	for i := range items {
		f.nextID++
		ids[i] = f.nextID
	}
	return ids, nil
}

func (f *fakeTransport) AnswerCallback(callbackID, text string, showAlert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Callbacks = append(f.Callbacks, answeredCallback{ID: callbackID, Text: text, ShowAlert: showAlert})
	return nil
}

func (f *fakeTransport) UploadPhoto(chatID int64, filename string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uploads = append(f.Uploads, filename)
	return "uploaded-" + filename, nil
}

// messagesContaining returns the sent messages whose text contains substr.
func (f *fakeTransport) messagesContaining(substr string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.Messages {
		if strings.Contains(m.Text, substr) {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) lastMessage() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Messages) == 0 {
		return sentMessage{}
	}
	return f.Messages[len(f.Messages)-1]
}

func (f *fakeTransport) alerts() []answeredCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []answeredCallback
	for _, c := range f.Callbacks {
		if c.ShowAlert {
			out = append(out, c)
		}
	}
	return out
}

func newTestBot(t *testing.T) (*Bot, *fakeTransport, *stubs.MockDB) {
	t.Helper()
	db := stubs.NewMockDB()
	require.NoError(t, db.Initialize(context.Background()))

	tg := newFakeTransport()
	b := New(tg, db, zap.NewNop(), Options{
		AdminChatID: 900,
		MediaSettle: 20 * time.Millisecond,
	})
	t.Cleanup(b.Stop)
	return b, tg, db
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}}
}

func commandUpdate(userID int64, command string) tgbotapi.Update {
	u := textUpdate(userID, "/"+command)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return u
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
		Data: data,
	}}
}

func photoUpdate(userID int64, fileID, groupID string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID:    2,
		From:         &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
		Chat:         &tgbotapi.Chat{ID: userID},
		MediaGroupID: groupID,
		Photo: []tgbotapi.PhotoSize{
			{FileID: fileID + "-small"},
			{FileID: fileID},
		},
	}}
}
