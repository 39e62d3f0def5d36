package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"froggle/internal/session"
	"froggle/internal/storage"
)

// Bot wraps the Telegram transport, the datastore and the per-user
// conversation state.
type Bot struct {
	api      *tgbotapi.BotAPI // nil when built around a fake transport
	tg       Transport
	db       storage.Storage
	sessions *session.Store
	batches  *mediaBatcher
	routes   map[routeKey]callbackHandler
	logger   *zap.Logger

	adminChatID int64
}

// routeKey selects a callback handler by (conversation state, action kind).
type routeKey struct {
	state session.State
	kind  ActionKind
}

// stateAny matches any conversation state in the routing table.
const stateAny session.State = "*"
