package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"froggle/internal/models"
	"froggle/internal/storage"
)

// errNoCategoryTags means the submitted category defines no tags at all, so
// no listing in it can be made findable.
var errNoCategoryTags = errors.New("no tags for category")

// IntakeServer accepts listings from external partner systems over HTTP and
// feeds them into the moderation queue.
type IntakeServer struct {
	bot            *Bot
	apiKey         string
	mediaChannelID int64
	logger         *zap.Logger
}

func NewIntakeServer(b *Bot, apiKey string, mediaChannelID int64) *IntakeServer {
	return &IntakeServer{
		bot:            b,
		apiKey:         apiKey,
		mediaChannelID: mediaChannelID,
		logger:         b.logger.Named("intake"),
	}
}

// RegisterRoutes registers intake handlers on the mux.
func (s *IntakeServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/notify_admins", s.handleNotifyAdmins)
}

func (s *IntakeServer) handleNotifyAdmins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "malformed multipart body", http.StatusBadRequest)
		return
	}

	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = r.FormValue("api_key")
	}
	if key != s.apiKey {
		s.logger.Warn("Intake request with bad api key", zap.String("remote", r.RemoteAddr))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx := r.Context()
	user, err := s.bot.db.UserByTelegramID(ctx, r.FormValue("user_id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Intake request for unknown user",
				zap.String("user_id", r.FormValue("user_id")))
			http.Error(w, "unknown user", http.StatusBadRequest)
			return
		}
		s.logger.Error("Failed to resolve intake user", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	category := r.FormValue("category")
	tags := parseTags(r.FormValue("tags"))
	if len(tags) == 0 {
		http.Error(w, "empty tag set", http.StatusBadRequest)
		return
	}
	tags, err = s.validTags(r, category, tags)
	if err != nil {
		if errors.Is(err, errNoCategoryTags) {
			s.logger.Warn("Intake request for category without tags",
				zap.String("category", category))
			http.Error(w, "no tags for category", http.StatusBadRequest)
			return
		}
		s.logger.Error("Failed to validate tags", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	price := r.FormValue("price")
	if runes := []rune(price); len(runes) > models.MaxPriceLen {
		price = string(runes[:models.MaxPriceLen])
	}

	media, err := s.uploadFiles(r)
	if err != nil {
		s.logger.Error("Failed to upload intake files", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Intake never publishes directly; whatever status the partner sent,
	// the listing enters the moderation queue.
	if st := r.FormValue("status"); st != "" && st != string(models.StatusPending) {
		s.logger.Info("Overriding submitted status",
			zap.String("submitted", st), zap.String("forced", string(models.StatusPending)))
	}

	listing := &models.Listing{
		UserID:      user.ID,
		Category:    category,
		City:        r.FormValue("city"),
		Tags:        models.StringList(tags),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       price,
		Media:       models.MediaList(media),
		ContactInfo: r.FormValue("contact_info"),
		Status:      models.StatusPending,
	}
	id, err := s.bot.db.CreateListing(ctx, listing)
	if err != nil {
		s.logger.Error("Failed to create intake listing", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.logger.Info("Intake listing created",
		zap.Int64("listing_id", id), zap.Int64("user_id", user.ID))

	s.notifyAdmins(id)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]int64{"ad_id": id}); err != nil {
		s.logger.Error("Failed to write intake response", zap.Error(err))
	}
}

// parseTags accepts either a JSON array string or a comma-separated list
// (a bare single tag included).
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)

	var parts []string
	var arr []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &arr) == nil {
		parts = arr
	} else {
		parts = strings.Split(raw, ",")
	}

	var tags []string
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// validTags keeps the submitted tags the category actually defines. When
// none survive, one random category tag stands in so the listing remains
// findable. A category with no tags at all cannot take listings.
func (s *IntakeServer) validTags(r *http.Request, category string, submitted []string) ([]string, error) {
	known, err := s.bot.db.TagsByCategory(r.Context(), category)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	if len(known) == 0 {
		return nil, errNoCategoryTags
	}
	byName := make(map[string]bool, len(known))
	for _, t := range known {
		byName[t.Name] = true
	}

	var valid []string
	for _, t := range submitted {
		if byName[t] {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		fallback := known[rand.Intn(len(known))].Name
		s.logger.Info("No submitted tag recognized, using fallback",
			zap.Strings("submitted", submitted), zap.String("fallback", fallback))
		valid = []string{fallback}
	}
	if len(valid) > models.MaxListingTags {
		valid = valid[:models.MaxListingTags]
	}
	return valid, nil
}

// uploadFiles pushes the submitted photos into the media channel so the
// listing references durable Telegram file ids.
func (s *IntakeServer) uploadFiles(r *http.Request) ([]models.MediaItem, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var media []models.MediaItem
	for _, fh := range r.MultipartForm.File["media"] {
		if len(media) >= models.MaxListingMedia {
			break
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", fh.Filename, err)
		}
		fileID, err := s.bot.tg.UploadPhoto(s.mediaChannelID, fh.Filename, data)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %q: %w", fh.Filename, err)
		}
		media = append(media, models.MediaItem{FileID: fileID, Kind: models.MediaPhoto})
	}
	return media, nil
}

// notifyAdmins refreshes the admin chat: edit the remembered menu message in
// place, fall back to a fresh message when the edit fails.
func (s *IntakeServer) notifyAdmins(listingID int64) {
	if s.bot.adminChatID == 0 {
		return
	}
	text := fmt.Sprintf("📥 Новое объявление #%d ожидает модерации.", listingID)
	key := fmt.Sprintf("%d", s.bot.adminChatID)

	if sess, ok := s.bot.sessions.Peek(key); ok && sess.MenuMessageID != 0 {
		if err := s.bot.tg.EditMessageText(s.bot.adminChatID, sess.MenuMessageID, text, mainMenuKeyboard()); err == nil {
			return
		} else {
			s.logger.Debug("Failed to edit admin menu, sending fresh", zap.Error(err))
		}
	}
	if _, err := s.bot.tg.SendMessage(s.bot.adminChatID, text, nil); err != nil {
		s.logger.Error("Failed to notify admins", zap.Error(err))
	}
}
