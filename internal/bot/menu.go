package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/models"
	"froggle/internal/storage"
)

var helpTexts = map[string]string{
	"": "Это доска объявлений. Выберите категорию, чтобы посмотреть объявления, " +
		"или нажмите «Подать объявление», чтобы разместить своё.",
	"browse": "Выберите город, чтобы посмотреть объявления в нём. " +
		"Кнопка ⭐ добавляет объявление в избранное.",
	"add": "Подача объявления: выберите город и теги, затем отправьте название, " +
		"описание, цену, фотографии и контакты. Перед публикацией объявление " +
		"проверяется модератором.",
	"moderation": "Очередь модерации: одобрите, отклоните или удалите каждое " +
		"объявление. Автор получит уведомление о решении.",
}

// resolveUser looks the Telegram account up in storage, creating it on first
// contact.
func (b *Bot) resolveUser(ctx context.Context, from *tgbotapi.User) (*models.User, error) {
	return b.db.GetOrCreateUser(ctx,
		sessionKey(from.ID), from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.resolveUser(ctx, msg.From)
	if err != nil {
		b.logger.Error("Failed to resolve user", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		if _, err := b.tg.SendMessage(msg.Chat.ID, somethingWentWrong, nil); err != nil {
			b.logger.Error("Failed to send error notice", zap.Error(err))
		}
		return
	}

	key := sessionKey(msg.From.ID)
	b.sessions.Reset(key)

	greeting := fmt.Sprintf("👋 Привет, %s!\nВыберите категорию или подайте своё объявление:", user.FirstName)
	b.sendMainMenu(key, msg.Chat.ID, greeting)
}

// sendMainMenu sends the menu and remembers its message id so notifications
// can edit it in place.
func (b *Bot) sendMainMenu(key string, chatID int64, text string) {
	msgID, err := b.tg.SendMessage(chatID, text, mainMenuKeyboard())
	if err != nil {
		b.logger.Error("Failed to send main menu", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	b.sessions.Get(key).MenuMessageID = msgID
}

func (b *Bot) handleBack(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	key := sessionKey(cb.From.ID)
	b.sessions.Reset(key)
	b.sendMainMenu(key, cb.Message.Chat.ID, "Выберите категорию или подайте своё объявление:")
	return nil
}

func (b *Bot) handleHelp(_ context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	b.sendHelp(cb.Message.Chat.ID, a.Value)
	return nil
}

func (b *Bot) sendHelp(chatID int64, topic string) {
	text, ok := helpTexts[topic]
	if !ok {
		text = helpTexts[""]
	}
	if _, err := b.tg.SendMessage(chatID, text, nil); err != nil {
		b.logger.Error("Failed to send help", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleSettings(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	user, err := b.resolveUser(ctx, cb.From)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	_, err = b.tg.SendMessage(cb.Message.Chat.ID, "⚙️ Настройки:", settingsKeyboard(user.IsAdmin))
	return err
}

func (b *Bot) handleShowFavorites(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	user, err := b.resolveUser(ctx, cb.From)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	listings, err := b.db.FavoriteListings(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}
	chatID := cb.Message.Chat.ID
	if len(listings) == 0 {
		_, err := b.tg.SendMessage(chatID, "У вас пока нет избранных объявлений.", navigationKeyboard("browse"))
		return err
	}
	for _, l := range listings {
		listing := l
		if _, err := b.renderListing(ctx, chatID, &listing, renderOptions{
			Keyboard: favoriteKeyboard(listing.ID, true),
		}); err != nil {
			b.logger.Error("Failed to render favorite",
				zap.Int64("listing_id", listing.ID), zap.Error(err))
		}
	}
	_, err = b.tg.SendMessage(chatID, "⭐ Ваше избранное", navigationKeyboard("browse"))
	return err
}

func (b *Bot) handleShowMyAds(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	user, err := b.resolveUser(ctx, cb.From)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	listings, err := b.db.ListingsByOwner(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load own listings: %w", err)
	}
	chatID := cb.Message.Chat.ID
	if len(listings) == 0 {
		_, err := b.tg.SendMessage(chatID, "У вас пока нет объявлений.", navigationKeyboard("add"))
		return err
	}
	for _, l := range listings {
		listing := l
		if _, err := b.renderListing(ctx, chatID, &listing, renderOptions{
			ShowStatus: true,
			Keyboard:   myAdKeyboard(listing.ID),
		}); err != nil {
			b.logger.Error("Failed to render own listing",
				zap.Int64("listing_id", listing.ID), zap.Error(err))
		}
	}
	_, err = b.tg.SendMessage(chatID, "📋 Ваши объявления", navigationKeyboard("add"))
	return err
}

// handleMyDelete lets the owner retire a listing. The row stays for history,
// only the status flips.
func (b *Bot) handleMyDelete(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	user, err := b.resolveUser(ctx, cb.From)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	listing, err := b.db.Listing(ctx, a.ListingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return b.tg.AnswerCallback(cb.ID, "Объявление уже удалено", true)
		}
		return fmt.Errorf("failed to load listing: %w", err)
	}
	if listing.UserID != user.ID {
		b.logger.Warn("Delete attempt on foreign listing",
			zap.Int64("listing_id", a.ListingID), zap.Int64("user_id", user.ID))
		return b.tg.AnswerCallback(cb.ID, "Это не ваше объявление", true)
	}
	if listing.Status == models.StatusDeleted {
		return b.tg.AnswerCallback(cb.ID, "Объявление уже удалено", true)
	}
	if err := b.db.SetListingStatus(ctx, listing.ID, listing.Status, models.StatusDeleted); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) || errors.Is(err, storage.ErrNotFound) {
			return b.tg.AnswerCallback(cb.ID, "Объявление уже удалено", true)
		}
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	_, err = b.tg.SendMessage(cb.Message.Chat.ID,
		fmt.Sprintf("🗑 Объявление #%d удалено.", listing.ID), nil)
	return err
}

// handleSubscribe stores a filter built from the current browse context. An
// empty tag set subscribes to everything in the city and category.
func (b *Bot) handleSubscribe(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	user, err := b.resolveUser(ctx, cb.From)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	if sess.Category == "" || sess.City == "" {
		_, err := b.tg.SendMessage(cb.Message.Chat.ID,
			"Сначала выберите категорию и город, затем оформите подписку.", nil)
		return err
	}
	if _, err := b.db.CreateSubscription(ctx, &models.Subscription{
		UserID:   user.ID,
		City:     sess.City,
		Category: sess.Category,
	}); err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	_, err = b.tg.SendMessage(cb.Message.Chat.ID,
		fmt.Sprintf("🔔 Подписка оформлена: %s, %s. Вы получите уведомление о новых объявлениях.",
			categoryName(sess.Category), sess.City), nil)
	return err
}

// handleViewUnseen jumps straight to the city listing from a notification.
func (b *Bot) handleViewUnseen(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	sess.Category = a.Category
	sess.City = a.City
	return b.showCityListings(ctx, cb, a.Category, a.City, "")
}
