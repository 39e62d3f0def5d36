package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/session"
	"froggle/internal/storage"
)

// callbackHandler processes one decoded inline-keyboard action.
type callbackHandler func(ctx context.Context, cb *tgbotapi.CallbackQuery, a Action) error

// Options tunes bot behaviour beyond the mandatory dependencies.
type Options struct {
	// AdminChatID receives intake notifications.
	AdminChatID int64
	// MediaSettle is how long a media batch waits after the last file before
	// it is considered complete.
	MediaSettle time.Duration
}

const defaultMediaSettle = 1500 * time.Millisecond

// NewBot creates a Bot backed by the Telegram Bot API.
func NewBot(token string, db storage.Storage, logger *zap.Logger, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("username", api.Self.UserName))

	b := New(newTelegramTransport(api), db, logger, opts)
	b.api = api
	return b, nil
}

// New wires a Bot around an arbitrary Transport. Tests pass a recording fake.
func New(tg Transport, db storage.Storage, logger *zap.Logger, opts Options) *Bot {
	settle := opts.MediaSettle
	if settle == 0 {
		settle = defaultMediaSettle
	}

	b := &Bot{
		tg:          tg,
		db:          db,
		sessions:    session.NewStore(),
		logger:      logger,
		adminChatID: opts.AdminChatID,
	}
	b.batches = newMediaBatcher(settle, b.finishMediaUpload)
	b.routes = b.buildRoutes()
	return b
}

// buildRoutes is the single place conversation states are bound to actions.
// A (state, kind) entry wins over the (stateAny, kind) fallback; an action
// with no entry for the current state is ignored with a soft notice.
func (b *Bot) buildRoutes() map[routeKey]callbackHandler {
	return map[routeKey]callbackHandler{
		// Available from any state.
		{stateAny, ActionBack}:          b.handleBack,
		{stateAny, ActionHelp}:          b.handleHelp,
		{stateAny, ActionCategory}:      b.handleCategory,
		{stateAny, ActionBrowseCity}:    b.handleBrowseCity,
		{stateAny, ActionTagFilter}:     b.handleTagFilter,
		{stateAny, ActionAdd}:           b.handleAddStart,
		{stateAny, ActionSettings}:      b.handleSettings,
		{stateAny, ActionShowFavorites}: b.handleShowFavorites,
		{stateAny, ActionShowMyAds}:     b.handleShowMyAds,
		{stateAny, ActionMyDelete}:      b.handleMyDelete,
		{stateAny, ActionFavorite}:      b.handleFavorite,
		{stateAny, ActionSubscribe}:     b.handleSubscribe,
		{stateAny, ActionViewUnseen}:    b.handleViewUnseen,
		{stateAny, ActionModerate}:      b.handleModerate,

		// Ad submission.
		{session.StateAdCity, ActionAdCity}:           b.handleAdCitySelect,
		{session.StateAdCity, ActionAdCityOther}:      b.handleAdCityOther,
		{session.StateAdTags, ActionTagSelect}:        b.handleTagSelect,
		{session.StateAdTags, ActionNextToTitle}:      b.handleNextToTitle,
		{session.StateAdPrice, ActionSkipPrice}:       b.handleSkipPrice,
		{session.StateAdMedia, ActionSkipMedia}:       b.handleSkipMedia,
		{session.StateAdContacts, ActionContact}:      b.handleContactChoice,
		{session.StateAdContacts, ActionConfirmContact}: b.handleConfirmContact,
		{session.StateAdConfirm, ActionConfirm}:       b.handleConfirm,

		// Moderation.
		{session.StateModeration, ActionApprove}:       b.handleApprove,
		{session.StateModeration, ActionReject}:        b.handleReject,
		{session.StateModeration, ActionDelete}:        b.handleDeleteRequest,
		{session.StateConfirmDelete, ActionDeleteConfirm}: b.handleDeleteConfirm,
		{session.StateConfirmDelete, ActionDeleteCancel}:  b.handleDeleteCancel,
	}
}
