package bot

import (
	"context"
	"runtime/debug"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/session"
)

const somethingWentWrong = "Что-то пошло не так, попробуйте ещё раз."

func sessionKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// HandleUpdate routes one Telegram update. A panic in a handler is contained
// here so one broken conversation cannot take the bot down.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic in update handler",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	key := sessionKey(msg.From.ID)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "help":
			b.sendHelp(msg.Chat.ID, "")
		default:
			b.logger.Debug("Unknown command", zap.String("command", msg.Command()))
		}
		return
	}

	sess := b.sessions.Get(key)
	switch sess.State {
	case session.StateAdTitle:
		b.captureTitle(ctx, msg, sess)
	case session.StateAdDescription:
		b.captureDescription(ctx, msg, sess)
	case session.StateAdPrice:
		b.capturePrice(ctx, msg, sess)
	case session.StateAdMedia:
		b.handleMediaMessage(ctx, msg, sess)
	case session.StateAdContacts:
		b.captureContactText(ctx, msg, sess)
	default:
		// Free text outside a flow is ignored; the inline menus drive
		// everything else.
		b.logger.Debug("Ignoring message outside flow",
			zap.String("state", string(sess.State)),
			zap.Int64("user_id", msg.From.ID),
		)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}

	action, err := ParseAction(cb.Data)
	if err != nil {
		b.logger.Warn("Failed to decode callback data",
			zap.String("data", cb.Data),
			zap.Error(err),
		)
		b.ackCallback(cb.ID)
		return
	}

	sess := b.sessions.Get(sessionKey(cb.From.ID))
	handler, ok := b.routes[routeKey{sess.State, action.Kind}]
	if !ok {
		handler, ok = b.routes[routeKey{stateAny, action.Kind}]
	}
	if !ok {
		b.logger.Debug("Action not available in current state",
			zap.String("state", string(sess.State)),
			zap.String("action", string(action.Kind)),
		)
		if err := b.tg.AnswerCallback(cb.ID, "Действие сейчас недоступно", false); err != nil {
			b.logger.Debug("Failed to answer callback", zap.Error(err))
		}
		return
	}

	if err := handler(ctx, cb, action); err != nil {
		b.logger.Error("Callback handler failed",
			zap.String("action", string(action.Kind)),
			zap.Int64("user_id", cb.From.ID),
			zap.Error(err),
		)
		if _, sendErr := b.tg.SendMessage(cb.Message.Chat.ID, somethingWentWrong, nil); sendErr != nil {
			b.logger.Error("Failed to send error notice", zap.Error(sendErr))
		}
	}
	b.ackCallback(cb.ID)
}

// ackCallback stops the client-side spinner. Handlers that showed an alert
// already answered, in which case this is a no-op failure.
func (b *Bot) ackCallback(callbackID string) {
	if err := b.tg.AnswerCallback(callbackID, "", false); err != nil {
		b.logger.Debug("Failed to ack callback", zap.Error(err))
	}
}
