package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/models"
	"froggle/internal/session"
	"froggle/internal/storage"
)

// handleAddStart opens the submission flow. The category comes from the
// browse context; without one the user is sent back to the category menu.
func (b *Bot) handleAddStart(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	key := sessionKey(cb.From.ID)
	sess := b.sessions.Get(key)
	if sess.Category == "" {
		_, err := b.tg.SendMessage(cb.Message.Chat.ID,
			"Сначала выберите категорию для объявления:", mainMenuKeyboard())
		return err
	}
	sess.Draft = session.Draft{Category: sess.Category}
	sess.State = session.StateAdCity

	_, err := b.tg.SendMessage(cb.Message.Chat.ID,
		fmt.Sprintf("📂 %s. В каком городе размещаем объявление?", categoryName(sess.Category)),
		adCityKeyboard())
	return err
}

func (b *Bot) handleAdCityOther(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	cities, err := b.db.Cities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cities: %w", err)
	}
	return b.tg.EditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		"Выберите город:", fullCityKeyboard(cities))
}

func (b *Bot) handleAdCitySelect(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	key := sessionKey(cb.From.ID)
	sess := b.sessions.Get(key)
	sess.Draft.City = a.Value

	tags, err := b.db.TagsByCategory(ctx, sess.Draft.Category)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	if len(tags) == 0 {
		// Category without tags cannot take submissions.
		b.sessions.Reset(key)
		_, err := b.tg.SendMessage(cb.Message.Chat.ID,
			"В этой категории пока нельзя подать объявление. Обратитесь к администратору.",
			mainMenuKeyboard())
		return err
	}
	sess.State = session.StateAdTags
	_, err = b.tg.SendMessage(cb.Message.Chat.ID,
		fmt.Sprintf("Выберите теги (не более %d). Обязательно отметьте основной тег:", models.MaxListingTags),
		tagKeyboard(tags, nil, false))
	return err
}

// handleTagSelect toggles a tag in the draft and refreshes the keyboard in
// place. The Далее button appears only once the primary-tag requirement is
// satisfied.
func (b *Bot) handleTagSelect(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	tags, err := b.db.TagsByCategory(ctx, sess.Draft.Category)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	var picked *models.Tag
	for i := range tags {
		if tags[i].ID == a.TagID {
			picked = &tags[i]
			break
		}
	}
	if picked == nil {
		return b.tg.AnswerCallback(cb.ID, "Тег больше недоступен", true)
	}

	idx := -1
	for i, name := range sess.Draft.Tags {
		if name == picked.Name {
			idx = i
			break
		}
	}
	if idx >= 0 {
		sess.Draft.Tags = append(sess.Draft.Tags[:idx], sess.Draft.Tags[idx+1:]...)
	} else {
		if len(sess.Draft.Tags) >= models.MaxListingTags {
			return b.tg.AnswerCallback(cb.ID,
				fmt.Sprintf("Можно выбрать не более %d тегов", models.MaxListingTags), true)
		}
		sess.Draft.Tags = append(sess.Draft.Tags, picked.Name)
	}

	if err := b.tg.EditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID,
		*tagKeyboard(tags, sess.Draft.Tags, primarySatisfied(tags, sess.Draft.Tags))); err != nil {
		b.logger.Debug("Failed to refresh tag keyboard", zap.Error(err))
	}
	return nil
}

// primarySatisfied reports whether the selection covers the primary-tag
// requirement: a primary tag is picked, or the category defines none.
func primarySatisfied(tags []models.Tag, selected []string) bool {
	hasPrimary := false
	for _, t := range tags {
		if !t.IsPrimary {
			continue
		}
		hasPrimary = true
		for _, name := range selected {
			if name == t.Name {
				return true
			}
		}
	}
	return !hasPrimary
}

func (b *Bot) handleNextToTitle(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	if len(sess.Draft.Tags) == 0 {
		return b.tg.AnswerCallback(cb.ID, "Выберите хотя бы один тег", true)
	}
	tags, err := b.db.TagsByCategory(ctx, sess.Draft.Category)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	if !primarySatisfied(tags, sess.Draft.Tags) {
		return b.tg.AnswerCallback(cb.ID, "Сначала отметьте основной тег", true)
	}
	sess.State = session.StateAdTitle
	_, err = b.tg.SendMessage(cb.Message.Chat.ID, "Введите название объявления:", nil)
	return err
}

func (b *Bot) captureTitle(ctx context.Context, msg *tgbotapi.Message, sess *session.Session) {
	title := strings.TrimSpace(msg.Text)
	if title == "" {
		b.send(msg.Chat.ID, "Название не может быть пустым. Введите название объявления:", nil)
		return
	}
	sess.Draft.Title = title
	sess.State = session.StateAdDescription
	b.send(msg.Chat.ID, "Введите описание:", nil)
}

func (b *Bot) captureDescription(ctx context.Context, msg *tgbotapi.Message, sess *session.Session) {
	sess.Draft.Description = strings.TrimSpace(msg.Text)
	sess.State = session.StateAdPrice
	b.send(msg.Chat.ID, "Укажите цену:", skipPriceKeyboard())
}

func (b *Bot) capturePrice(ctx context.Context, msg *tgbotapi.Message, sess *session.Session) {
	price := strings.TrimSpace(msg.Text)
	if runes := []rune(price); len(runes) > models.MaxPriceLen {
		price = string(runes[:models.MaxPriceLen])
	}
	sess.Draft.Price = price
	b.promptMedia(msg.Chat.ID, sess)
}

func (b *Bot) handleSkipPrice(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	sess.Draft.Price = ""
	b.promptMedia(cb.Message.Chat.ID, sess)
	return nil
}

func (b *Bot) promptMedia(chatID int64, sess *session.Session) {
	sess.State = session.StateAdMedia
	b.send(chatID,
		fmt.Sprintf("Отправьте фото или видео (не более %d файлов):", models.MaxListingMedia),
		skipMediaKeyboard())
}

// handleSkipMedia discards whatever was uploaded: skipping means the
// listing goes out with no media at all.
func (b *Bot) handleSkipMedia(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	key := sessionKey(cb.From.ID)
	b.batches.cancel(key)
	sess := b.sessions.Get(key)
	sess.Draft.Media = nil
	sess.Draft.StatusMessageID = 0
	return b.sendContactOptions(ctx, cb.Message.Chat.ID, key, cb.From.UserName, sess)
}

// sendContactOptions moves to the contact step, offering the user's own
// handle and the contact of their previous listing when available.
func (b *Bot) sendContactOptions(ctx context.Context, chatID int64, key, username string, sess *session.Session) error {
	sess.State = session.StateAdContacts

	saved := ""
	if user, err := b.db.UserByTelegramID(ctx, key); err == nil {
		if contact, err := b.db.LastContact(ctx, user.ID); err == nil {
			saved = contact
		} else {
			b.logger.Debug("Failed to load last contact", zap.Error(err))
		}
	}

	_, err := b.tg.SendMessage(chatID, "Как с вами связаться?", contactKeyboard(username, saved))
	return err
}

func (b *Bot) handleContactChoice(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	switch a.Value {
	case "username":
		sess.Draft.SelectedContact = "@" + cb.From.UserName
	case "saved":
		user, err := b.db.UserByTelegramID(ctx, sessionKey(cb.From.ID))
		if err != nil {
			return fmt.Errorf("failed to resolve user: %w", err)
		}
		saved, err := b.db.LastContact(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to load last contact: %w", err)
		}
		sess.Draft.SelectedContact = saved
	case "manual":
		sess.Draft.SelectedContact = ""
		sess.Draft.Contact = ""
		_, err := b.tg.SendMessage(cb.Message.Chat.ID, "Введите контакты (телефон, телеграм и т.д.):", nil)
		return err
	default:
		return fmt.Errorf("unknown contact choice %q", a.Value)
	}

	sess.Draft.Contact = sess.Draft.SelectedContact
	_, err := b.tg.SendMessage(cb.Message.Chat.ID,
		fmt.Sprintf("Контакт: %s\nМожете дописать дополнительные контакты сообщением или нажмите «Готово».",
			sess.Draft.Contact),
		confirmContactKeyboard())
	return err
}

// captureContactText appends free text to the chosen contact, or uses it as
// the whole contact when entering manually.
func (b *Bot) captureContactText(ctx context.Context, msg *tgbotapi.Message, sess *session.Session) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if sess.Draft.SelectedContact != "" {
		sess.Draft.Contact = sess.Draft.SelectedContact + ", " + text
	} else {
		sess.Draft.Contact = text
	}
	b.send(msg.Chat.ID,
		fmt.Sprintf("Контакт: %s\nНажмите «Готово», когда закончите.", sess.Draft.Contact),
		confirmContactKeyboard())
}

func (b *Bot) handleConfirmContact(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	if strings.TrimSpace(sess.Draft.Contact) == "" {
		return b.tg.AnswerCallback(cb.ID, "Контакт не может быть пустым", true)
	}
	sess.State = session.StateAdConfirm

	preview := draftListing(&sess.Draft)
	_, err := b.tg.SendMessage(cb.Message.Chat.ID,
		"Проверьте объявление:\n\n"+listingText(preview, false),
		confirmKeyboard())
	return err
}

// handleConfirm persists the draft or discards it.
func (b *Bot) handleConfirm(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	key := sessionKey(cb.From.ID)
	sess := b.sessions.Get(key)

	if a.Value != "save" {
		b.sessions.Reset(key)
		_, err := b.tg.SendMessage(cb.Message.Chat.ID, "Создание объявления отменено.", mainMenuKeyboard())
		return err
	}

	user, err := b.db.UserByTelegramID(ctx, key)
	if err != nil {
		// Nothing is persisted when the author cannot be resolved.
		b.sessions.Reset(key)
		if errors.Is(err, storage.ErrNotFound) {
			_, err := b.tg.SendMessage(cb.Message.Chat.ID,
				"Не удалось определить автора. Отправьте /start и попробуйте снова.", nil)
			return err
		}
		return fmt.Errorf("failed to resolve author: %w", err)
	}

	listing := draftListing(&sess.Draft)
	listing.UserID = user.ID
	listing.Status = models.StatusPending

	id, err := b.db.CreateListing(ctx, listing)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	b.sessions.Reset(key)

	_, err = b.tg.SendMessage(cb.Message.Chat.ID,
		fmt.Sprintf("✅ Объявление #%d отправлено на модерацию.", id), mainMenuKeyboard())
	return err
}

func draftListing(d *session.Draft) *models.Listing {
	media := d.Media
	if len(media) > models.MaxListingMedia {
		media = media[:models.MaxListingMedia]
	}
	return &models.Listing{
		Category:    d.Category,
		City:        d.City,
		Tags:        models.StringList(d.Tags),
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Media:       models.MediaList(media),
		ContactInfo: d.Contact,
	}
}

// send is the fire-and-forget variant used by message (non-callback)
// handlers.
func (b *Bot) send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if _, err := b.tg.SendMessage(chatID, text, kb); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
