package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"froggle/internal/models"
)

// Transport is the chat-transport capability the bot consumes: send, edit
// and delete messages, deliver media groups, answer callbacks and upload
// files. The production implementation wraps the Telegram Bot API; tests use
// a recording fake.
type Transport interface {
	SendMessage(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error)
	EditMessageText(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	EditMessageReplyMarkup(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error
	DeleteMessage(chatID int64, messageID int) error
	SendMediaGroup(chatID int64, items []models.MediaItem) ([]int, error)
	AnswerCallback(callbackID, text string, showAlert bool) error
	// UploadPhoto sends raw photo bytes to a chat and returns the durable
	// Telegram file id of the stored photo.
	UploadPhoto(chatID int64, filename string, data []byte) (string, error)
}

type telegramTransport struct {
	api *tgbotapi.BotAPI
}

func newTelegramTransport(api *tgbotapi.BotAPI) *telegramTransport {
	return &telegramTransport{api: api}
}

func (t *telegramTransport) SendMessage(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

func (t *telegramTransport) EditMessageText(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	var cfg tgbotapi.EditMessageTextConfig
	if keyboard != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	cfg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(cfg); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (t *telegramTransport) EditMessageReplyMarkup(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error {
	cfg := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, keyboard)
	if _, err := t.api.Send(cfg); err != nil {
		return fmt.Errorf("failed to edit reply markup: %w", err)
	}
	return nil
}

func (t *telegramTransport) DeleteMessage(chatID int64, messageID int) error {
	cfg := tgbotapi.NewDeleteMessage(chatID, messageID)
	if _, err := t.api.Request(cfg); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (t *telegramTransport) SendMediaGroup(chatID int64, items []models.MediaItem) ([]int, error) {
	media := make([]interface{}, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case models.MediaVideo:
			media = append(media, tgbotapi.NewInputMediaVideo(tgbotapi.FileID(item.FileID)))
		default:
			media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(item.FileID)))
		}
	}
	cfg := tgbotapi.NewMediaGroup(chatID, media)
	messages, err := t.api.SendMediaGroup(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to send media group: %w", err)
	}
	ids := make([]int, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.MessageID)
	}
	return ids, nil
}

func (t *telegramTransport) AnswerCallback(callbackID, text string, showAlert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = showAlert
	if _, err := t.api.Request(cfg); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func (t *telegramTransport) UploadPhoto(chatID int64, filename string, data []byte) (string, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	sent, err := t.api.Send(photo)
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}
	if len(sent.Photo) == 0 {
		return "", fmt.Errorf("upload produced no photo sizes")
	}
	return sent.Photo[len(sent.Photo)-1].FileID, nil
}
