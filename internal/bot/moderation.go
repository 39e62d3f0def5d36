package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/models"
	"froggle/internal/session"
	"froggle/internal/storage"
)

// requireAdmin re-reads the admin flag from storage on every moderation
// action, so a revoked admin loses access mid-session.
func (b *Bot) requireAdmin(ctx context.Context, cb *tgbotapi.CallbackQuery) (*models.User, bool, error) {
	user, err := b.resolveUser(ctx, cb.From)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve user: %w", err)
	}
	if !user.IsAdmin {
		b.logger.Warn("Moderation action from non-admin",
			zap.Int64("user_id", cb.From.ID))
		b.sessions.Reset(sessionKey(cb.From.ID))
		return nil, false, b.tg.AnswerCallback(cb.ID, "Недостаточно прав", true)
	}
	return user, true, nil
}

// handleModerate renders the pending queue, oldest first. Each listing gets
// its own action row that carries the rendered message ids, so the decision
// can clean the whole block up.
func (b *Bot) handleModerate(ctx context.Context, cb *tgbotapi.CallbackQuery, _ Action) error {
	_, ok, err := b.requireAdmin(ctx, cb)
	if !ok {
		return err
	}
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	sess.State = session.StateModeration

	pending, err := b.db.PendingListings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending listings: %w", err)
	}
	chatID := cb.Message.Chat.ID
	if len(pending) == 0 {
		_, err := b.tg.SendMessage(chatID, "Очередь модерации пуста.", navigationKeyboard("moderation"))
		return err
	}
	for _, l := range pending {
		listing := l
		messageIDs, err := b.renderListing(ctx, chatID, &listing, renderOptions{ShowStatus: true})
		if err != nil {
			b.logger.Error("Failed to render pending listing",
				zap.Int64("listing_id", listing.ID), zap.Error(err))
			continue
		}
		if _, err := b.tg.SendMessage(chatID,
			fmt.Sprintf("Решение по объявлению #%d:", listing.ID),
			moderationKeyboard(listing.ID, messageIDs)); err != nil {
			b.logger.Error("Failed to send moderation controls",
				zap.Int64("listing_id", listing.ID), zap.Error(err))
		}
	}
	_, err = b.tg.SendMessage(chatID,
		fmt.Sprintf("🛡 Режим модерации: объявлений в очереди: %d", len(pending)),
		navigationKeyboard("moderation"))
	return err
}

// sendModerationNav re-sends the queue status and the trailing navigation
// row after a decision, so the moderator always has controls at the bottom.
func (b *Bot) sendModerationNav(ctx context.Context, chatID int64) {
	pending, err := b.db.PendingListings(ctx)
	if err != nil {
		b.logger.Error("Failed to count pending listings", zap.Error(err))
		return
	}
	text := "Очередь модерации пуста."
	if len(pending) > 0 {
		text = fmt.Sprintf("🛡 Режим модерации: объявлений в очереди: %d", len(pending))
	}
	if _, err := b.tg.SendMessage(chatID, text, navigationKeyboard("moderation")); err != nil {
		b.logger.Error("Failed to send moderation navigation", zap.Error(err))
	}
}

func (b *Bot) handleApprove(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	admin, ok, err := b.requireAdmin(ctx, cb)
	if !ok {
		return err
	}
	listing, err := b.db.Listing(ctx, a.ListingID)
	if err != nil {
		return b.staleModeration(cb, a)
	}
	if err := b.db.SetListingStatus(ctx, a.ListingID, models.StatusPending, models.StatusApproved); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) || errors.Is(err, storage.ErrNotFound) {
			return b.staleModeration(cb, a)
		}
		return fmt.Errorf("failed to approve listing: %w", err)
	}

	b.cleanupRendered(cb.Message.Chat.ID, a.MessageIDs)
	if err := b.tg.EditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("✅ Объявление #%d одобрено.", a.ListingID), nil); err != nil {
		b.logger.Debug("Failed to edit moderation message", zap.Error(err))
	}

	b.notifyOwner(ctx, listing, admin.ID,
		fmt.Sprintf("🎉 Ваше объявление #%d одобрено и опубликовано!", listing.ID))
	b.notifySubscribers(ctx, listing)
	b.sendModerationNav(ctx, cb.Message.Chat.ID)
	return nil
}

func (b *Bot) handleReject(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	admin, ok, err := b.requireAdmin(ctx, cb)
	if !ok {
		return err
	}
	listing, err := b.db.Listing(ctx, a.ListingID)
	if err != nil {
		return b.staleModeration(cb, a)
	}
	if err := b.db.SetListingStatus(ctx, a.ListingID, models.StatusPending, models.StatusRejected); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) || errors.Is(err, storage.ErrNotFound) {
			return b.staleModeration(cb, a)
		}
		return fmt.Errorf("failed to reject listing: %w", err)
	}

	b.cleanupRendered(cb.Message.Chat.ID, a.MessageIDs)
	if err := b.tg.EditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("❌ Объявление #%d отклонено.", a.ListingID), nil); err != nil {
		b.logger.Debug("Failed to edit moderation message", zap.Error(err))
	}

	b.notifyOwner(ctx, listing, admin.ID,
		fmt.Sprintf("К сожалению, ваше объявление #%d отклонено модератором.", listing.ID))
	b.sendModerationNav(ctx, cb.Message.Chat.ID)
	return nil
}

/// handleDeleteRequest is the first step of the irreversible delete: the
// action row flips to Да/Нет.
func (b *Bot) handleDeleteRequest(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	_, ok, err := b.requireAdmin(ctx, cb)
	if !ok {
		return err
	}
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	sess.State = session.StateConfirmDelete

	return b.tg.EditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("Удалить объявление #%d безвозвратно?", a.ListingID),
		deleteConfirmKeyboard(a.ListingID, a.MessageIDs))
}

func (b *Bot) handleDeleteCancel(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	sess.State = session.StateModeration

	return b.tg.EditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("Решение по объявлению #%d:", a.ListingID),
		moderationKeyboard(a.ListingID, a.MessageIDs))
}

func (b *Bot) handleDeleteConfirm(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error {
	admin, ok, err := b.requireAdmin(ctx, cb)
	if !ok {
		return err
	}
	sess := b.sessions.Get(sessionKey(cb.From.ID))
	sess.State = session.StateModeration

	// Read the owner before the row disappears.
	listing, err := b.db.Listing(ctx, a.ListingID)
	if err != nil {
		return b.staleModeration(cb, a)
	}
	if err := b.db.DeleteListing(ctx, a.ListingID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return b.staleModeration(cb, a)
		}
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	b.cleanupRendered(cb.Message.Chat.ID, a.MessageIDs)
	if err := b.tg.EditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("🗑 Объявление #%d удалено.", a.ListingID), nil); err != nil {
		b.logger.Debug("Failed to edit moderation message", zap.Error(err))
	}

	b.notifyOwner(ctx, listing, admin.ID,
		fmt.Sprintf("Ваше объявление #%d удалено модератором.", listing.ID))
	b.sendModerationNav(ctx, cb.Message.Chat.ID)
	return nil
}

// staleModeration handles a decision on a listing someone else already
/// processed: clean the block up without changing anything.
func (b *Bot) staleModeration(cb *tgbotapi.CallbackQuery, a Action) error {
	b.cleanupRendered(cb.Message.Chat.ID, a.MessageIDs)
	if err := b.tg.EditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("Объявление #%d уже обработано.", a.ListingID), nil); err != nil {
		b.logger.Debug("Failed to edit moderation message", zap.Error(err))
	}
	return b.tg.AnswerCallback(cb.ID, "Объявление уже обработано", true)
}

func (b *Bot) cleanupRendered(chatID int64, messageIDs []int) {
	for _, id := range messageIDs {
		if err := b.tg.DeleteMessage(chatID, id); err != nil {
			b.logger.Debug("Failed to delete rendered message",
				zap.Int("message_id", id), zap.Error(err))
		}
	}
}

// notifyOwner tells the author about a moderation decision. A moderator
// acting on their own listing gets no extra message.
func (b *Bot) notifyOwner(ctx context.Context, l *models.Listing, actorID int64, text string) {
	if l.UserID == actorID {
		return
	}
	owner, err := b.db.UserByID(ctx, l.UserID)
	if err != nil {
		b.logger.Error("Failed to resolve listing owner",
			zap.Int64("listing_id", l.ID), zap.Error(err))
		return
	}
	chatID, err := strconv.ParseInt(owner.TelegramID, 10, 64)
	if err != nil {
		b.logger.Error("Owner has malformed telegram id",
			zap.String("telegram_id", owner.TelegramID), zap.Error(err))
		return
	}
	if _, err := b.tg.SendMessage(chatID, text, nil); err != nil {
		b.logger.Error("Failed to notify owner",
			zap.Int64("listing_id", l.ID), zap.Error(err))
	}
}

// notifySubscribers fans an approval out to matching subscriptions. Each
// subscriber gets their own unseen count; failures are logged and skipped so
// one blocked chat cannot stall the rest.
func (b *Bot) notifySubscribers(ctx context.Context, l *models.Listing) {
	subs, err := b.db.MatchingSubscriptions(ctx, l.City, l.Category, l.Tags)
	if err != nil {
		b.logger.Error("Failed to load subscriptions",
			zap.Int64("listing_id", l.ID), zap.Error(err))
		return
	}
	notified := make(map[int64]bool)
	for _, sub := range subs {
		if sub.UserID == l.UserID || notified[sub.UserID] {
			continue
		}
		notified[sub.UserID] = true

		count, err := b.db.UnseenCount(ctx, sub.UserID, l.City, l.Category, sub.Tags)
		if err != nil {
			b.logger.Error("Failed to count unseen listings",
				zap.Int64("user_id", sub.UserID), zap.Error(err))
			continue
		}
		if count == 0 {
			continue
		}
		subscriber, err := b.db.UserByID(ctx, sub.UserID)
		if err != nil {
			b.logger.Error("Failed to resolve subscriber",
				zap.Int64("user_id", sub.UserID), zap.Error(err))
			continue
		}
		chatID, err := strconv.ParseInt(subscriber.TelegramID, 10, 64)
		if err != nil {
			b.logger.Error("Subscriber has malformed telegram id",
				zap.String("telegram_id", subscriber.TelegramID), zap.Error(err))
			continue
		}
		text := fmt.Sprintf("🔔 %s, %s: новых объявлений: %d",
			categoryName(l.Category), l.City, count)
		if _, err := b.tg.SendMessage(chatID, text, viewUnseenKeyboard(l.Category, l.City)); err != nil {
			b.logger.Error("Failed to notify subscriber",
				zap.Int64("user_id", sub.UserID), zap.Error(err))
		}
	}
}
