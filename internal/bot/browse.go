package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/session"
	"froggle/internal/storage"
)

// handleCategory shows the cities that have approved ads in the category.
func (b *Bot) handleCategory(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	sess.Category = a.Value
	sess.State = session.StateBrowseCity

	counts, err := b.db.CityCounts(ctx, a.Value)
	if err != nil {
		return fmt.Errorf("failed to load city counts: %w", err)
	}
	chatID := cb.Message.Chat.ID
	if len(counts) == 0 {
		_, err := b.tg.SendMessage(chatID,
			fmt.Sprintf("В категории «%s» пока нет объявлений.", categoryName(a.Value)),
			navigationKeyboard("browse"))
		return err
	}
	_, err = b.tg.SendMessage(chatID,
		fmt.Sprintf("📂 %s. Выберите город:", categoryName(a.Value)),
		browseCityKeyboard(counts))
	return err
}

func (b *Bot) handleBrowseCity(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	if sess.Category == "" {
		_, err := b.tg.SendMessage(cb.Message.Chat.ID, "Сначала выберите категорию.", mainMenuKeyboard())
		return err
	}
	sess.City = a.Value
	return b.showCityListings(ctx, cb, sess.Category, a.Value, "")
}

// handleTagFilter re-renders the browsed city narrowed to one tag.
func (b *Bot) handleTagFilter(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	if sess.Category == "" || sess.City == "" {
		_, err := b.tg.SendMessage(cb.Message.Chat.ID, "Сначала выберите категорию и город.", mainMenuKeyboard())
		return err
	}
	return b.showCityListings(ctx, cb, sess.Category, sess.City, a.Value)
}

// showCityListings renders the approved ads of the category in the city,
// marking each as viewed for the requesting user. A non-empty tag narrows
// the list; otherwise the tags in use are offered as filters.
func (b *Bot) showCityListings(ctx context.Context, cb *tgbotapi.CallbackQuery, category, city, tag string) error {
	user, err := b.resolveUser(ctx, cb.From)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	listings, err := b.db.ApprovedListings(ctx, category, city)
	if err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}
	if tag != "" {
		filtered := listings[:0]
		for _, l := range listings {
			if l.Tags.Contains(tag) {
				filtered = append(filtered, l)
			}
		}
		listings = filtered
	}
	chatID := cb.Message.Chat.ID
	if len(listings) == 0 {
		_, err := b.tg.SendMessage(chatID,
			fmt.Sprintf("В городе %s пока нет объявлений в этой категории.", city),
			navigationKeyboard("browse"))
		return err
	}
	for _, l := range listings {
		listing := l
		already, err := b.db.IsFavorite(ctx, user.ID, listing.ID)
		if err != nil {
			b.logger.Error("Failed to check favorite",
				zap.Int64("listing_id", listing.ID), zap.Error(err))
		}
		if _, err := b.renderListing(ctx, chatID, &listing, renderOptions{
			MarkViewed: true,
			ViewerID:   user.ID,
			Keyboard:   favoriteKeyboard(listing.ID, already),
		}); err != nil {
			b.logger.Error("Failed to render listing",
				zap.Int64("listing_id", listing.ID), zap.Error(err))
		}
	}
	if tag == "" {
		if inUse, err := b.db.TagsInUse(ctx, category, city); err != nil {
			b.logger.Error("Failed to load tags in use", zap.Error(err))
		} else if len(inUse) > 0 {
			if _, err := b.tg.SendMessage(chatID, "Показать только с тегом:", tagFilterKeyboard(inUse)); err != nil {
				b.logger.Error("Failed to send tag filter", zap.Error(err))
			}
		}
	}
	_, err = b.tg.SendMessage(chatID,
		fmt.Sprintf("Показано объявлений: %d", len(listings)),
		navigationKeyboard("browse"))
	return err
}

// handleFavorite adds or removes a favorite. Both directions are idempotent
// from the user's point of view.
func (b *Bot) handleFavorite(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	switch a.Value {
	case "already":
		return b.tg.AnswerCallback(cb.ID, "Уже в избранном", true)
	case "add":
		user, err := b.resolveUser(ctx, cb.From)
		if err != nil {
			return fmt.Errorf("failed to resolve user: %w", err)
		}
		if err := b.db.AddFavorite(ctx, user.ID, a.ListingID); err != nil {
			if errors.Is(err, storage.ErrAlreadyFavorite) {
				return b.tg.AnswerCallback(cb.ID, "Уже в избранном", true)
			}
			return fmt.Errorf("failed to add favorite: %w", err)
		}
		if err := b.tg.EditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID,
			*favoriteKeyboard(a.ListingID, true)); err != nil {
			b.logger.Debug("Failed to refresh favorite keyboard", zap.Error(err))
		}
		return b.tg.AnswerCallback(cb.ID, "⭐ Добавлено в избранное", false)
	case "remove":
		user, err := b.resolveUser(ctx, cb.From)
		if err != nil {
			return fmt.Errorf("failed to resolve user: %w", err)
		}
		if err := b.db.RemoveFavorite(ctx, user.ID, a.ListingID); err != nil {
			return fmt.Errorf("failed to remove favorite: %w", err)
		}
		if err := b.tg.EditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID,
			*favoriteKeyboard(a.ListingID, false)); err != nil {
			b.logger.Debug("Failed to refresh favorite keyboard", zap.Error(err))
		}
		return b.tg.AnswerCallback(cb.ID, "Убрано из избранного", false)
	default:
		return fmt.Errorf("unknown favorite action %q", a.Value)
	}
}
