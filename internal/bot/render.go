package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/models"
)

var statusNames = map[models.Status]string{
	models.StatusPending:  "На модерации",
	models.StatusApproved: "Опубликовано",
	models.StatusRejected: "Отклонено",
	models.StatusDeleted:  "Удалено",
}

// renderOptions controls how a listing is presented.
type renderOptions struct {
	// ShowStatus appends the moderation status line (owner and moderator
	// views).
	ShowStatus bool
	// MarkViewed records a viewed marker for ViewerID after rendering.
	MarkViewed bool
	ViewerID   int64
	// Keyboard is attached to the text block.
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

// renderListing sends the full presentation of one listing: a header line,
// the photo group, the video group and the text block. Photos and videos go
// in separate groups, Telegram rejects mixed ones. Returns the ids of every
// message sent, in order.
func (b *Bot) renderListing(ctx context.Context, chatID int64, l *models.Listing, opts renderOptions) ([]int, error) {
	var messageIDs []int

	header := fmt.Sprintf("*****       Объявление #%d       *****", l.ID)
	id, err := b.tg.SendMessage(chatID, header, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send header: %w", err)
	}
	messageIDs = append(messageIDs, id)

	var photos, videos []models.MediaItem
	for _, m := range l.Media {
		if m.Kind == models.MediaVideo {
			videos = append(videos, m)
		} else {
			photos = append(photos, m)
		}
	}
	for _, group := range [][]models.MediaItem{photos, videos} {
		if len(group) == 0 {
			continue
		}
		if len(group) > models.MaxListingMedia {
			group = group[:models.MaxListingMedia]
		}
		ids, err := b.tg.SendMediaGroup(chatID, group)
		if err != nil {
			return messageIDs, fmt.Errorf("failed to send media group: %w", err)
		}
		messageIDs = append(messageIDs, ids...)
	}

	id, err = b.tg.SendMessage(chatID, listingText(l, opts.ShowStatus), opts.Keyboard)
	if err != nil {
		return messageIDs, fmt.Errorf("failed to send listing text: %w", err)
	}
	messageIDs = append(messageIDs, id)

	if opts.MarkViewed && opts.ViewerID != 0 {
		if err := b.db.MarkViewed(ctx, opts.ViewerID, l.ID); err != nil {
			b.logger.Error("Failed to mark listing viewed",
				zap.Int64("listing_id", l.ID),
				zap.Int64("user_id", opts.ViewerID),
				zap.Error(err),
			)
		}
	}
	return messageIDs, nil
}

func listingText(l *models.Listing, showStatus bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s в %s\n", categoryName(l.Category), l.City)
	if len(l.Tags) > 0 {
		fmt.Fprintf(&sb, "🏷️ %s\n", strings.Join(l.Tags, ", "))
	}
	fmt.Fprintf(&sb, "📌 <b>%s</b>\n", l.Title)
	if l.Description != "" {
		sb.WriteString(l.Description)
		sb.WriteString("\n")
	}
	if l.Price != "" {
		fmt.Fprintf(&sb, "💰 %s\n", l.Price)
	} else {
		sb.WriteString("💰 без цены\n")
	}
	fmt.Fprintf(&sb, "📞 %s", l.ContactInfo)
	if showStatus {
		name, ok := statusNames[l.Status]
		if !ok {
			name = string(l.Status)
		}
		fmt.Fprintf(&sb, "\nСтатус: %s", name)
	}
	return sb.String()
}
