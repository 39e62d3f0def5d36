package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"froggle/internal/models"
	"froggle/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu            sync.RWMutex
	nextID        int64
	users         map[int64]*models.User
	listings      map[int64]*models.Listing
	tags          []models.Tag
	cities        []models.City
	favorites     map[[2]int64]time.Time
	viewed        map[[2]int64]bool
	subscriptions map[int64]*models.Subscription
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users:         make(map[int64]*models.User),
		listings:      make(map[int64]*models.Listing),
		favorites:     make(map[[2]int64]time.Time),
		viewed:        make(map[[2]int64]bool),
		subscriptions: make(map[int64]*models.Subscription),
	}
}

// Initialize seeds reference data used by most tests: the market category
// with two primary tags and one regular tag, and a few cities.
func (m *MockDB) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tags = []models.Tag{
		{ID: 1, Name: "продам", Category: "market", IsPrimary: true, DisplayOrder: 1},
		{ID: 2, Name: "даром", Category: "market", IsPrimary: true, DisplayOrder: 2},
		{ID: 3, Name: "одежда", Category: "market", DisplayOrder: 3},
		{ID: 4, Name: "тюнинг", Category: "auto", IsPrimary: true, DisplayOrder: 1},
		{ID: 5, Name: "ремонт", Category: "auto", DisplayOrder: 2},
	}
	m.cities = []models.City{
		{ID: 1, Name: "Тбилиси"},
		{ID: 2, Name: "Батуми"},
		{ID: 3, Name: "Кутаиси"},
		{ID: 4, Name: "Гори"},
		{ID: 5, Name: "Зугдиди"},
		{ID: 6, Name: "Поти"},
	}
	return nil
}

func (m *MockDB) Close() error {
	return nil
}

// SeedTags replaces the tag set; tests use it to model categories with no
// primary tags or no tags at all.
func (m *MockDB) SeedTags(tags []models.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = tags
}

// SetAdmin flips the is_admin flag, emulating the out-of-band grant.
func (m *MockDB) SetAdmin(userID int64, isAdmin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.IsAdmin = isAdmin
	}
}

func (m *MockDB) GetOrCreateUser(ctx context.Context, telegramID, firstName, lastName, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TelegramID == telegramID {
			copied := *u
			return &copied, nil
		}
	}
	m.nextID++
	user := &models.User{
		ID:         m.nextID,
		TelegramID: telegramID,
		FirstName:  firstName,
		LastName:   lastName,
		Username:   username,
	}
	m.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (m *MockDB) UserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.TelegramID == telegramID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *MockDB) UserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (m *MockDB) CreateListing(ctx context.Context, l *models.Listing) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(l.Tags) > models.MaxListingTags {
		l.Tags = l.Tags[:models.MaxListingTags]
	}
	if len(l.Media) > models.MaxListingMedia {
		l.Media = l.Media[:models.MaxListingMedia]
	}
	if l.Status == "" {
		l.Status = models.StatusPending
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	m.nextID++
	l.ID = m.nextID
	copied := *l
	m.listings[l.ID] = &copied
	return l.ID, nil
}

func (m *MockDB) Listing(ctx context.Context, id int64) (*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.listings[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (m *MockDB) PendingListings(ctx context.Context) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listingsWhere(func(l *models.Listing) bool {
		return l.Status == models.StatusPending
	}), nil
}

func (m *MockDB) ApprovedListings(ctx context.Context, category, city string) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listingsWhere(func(l *models.Listing) bool {
		return l.Status == models.StatusApproved && l.Category == category && l.City == city
	}), nil
}

func (m *MockDB) ListingsByOwner(ctx context.Context, userID int64) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listingsWhere(func(l *models.Listing) bool {
		return l.UserID == userID && l.Status != models.StatusDeleted
	}), nil
}

// listingsWhere returns matching listings ordered by id. Callers must hold
// the lock.
func (m *MockDB) listingsWhere(pred func(*models.Listing) bool) []models.Listing {
	var out []models.Listing
	for _, l := range m.listings {
		if pred(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockDB) SetListingStatus(ctx context.Context, id int64, from, to models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return storage.ErrNotFound
	}
	if l.Status != from {
		return storage.ErrStatusConflict
	}
	l.Status = to
	return nil
}

func (m *MockDB) DeleteListing(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.listings, id)
	for key := range m.viewed {
		if key[1] == id {
			delete(m.viewed, key)
		}
	}
	for key := range m.favorites {
		if key[1] == id {
			delete(m.favorites, key)
		}
	}
	return nil
}

func (m *MockDB) LastContact(ctx context.Context, userID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *models.Listing
	for _, l := range m.listings {
		if l.UserID != userID || l.ContactInfo == "" {
			continue
		}
		if best == nil || l.CreatedAt.After(best.CreatedAt) {
			best = l
		}
	}
	if best == nil {
		return "", nil
	}
	return best.ContactInfo, nil
}

func (m *MockDB) TagsByCategory(ctx context.Context, category string) ([]models.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Tag
	for _, t := range m.tags {
		if t.Category == category {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *MockDB) TagsInUse(ctx context.Context, category, city string) ([]models.Tag, error) {
	approved, err := m.ApprovedListings(ctx, category, city)
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool)
	for _, l := range approved {
		for _, name := range l.Tags {
			used[name] = true
		}
	}
	all, err := m.TagsByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	var out []models.Tag
	for _, t := range all {
		if used[t.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockDB) Cities(ctx context.Context) ([]models.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.City, len(m.cities))
	copy(out, m.cities)
	return out, nil
}

func (m *MockDB) CityCounts(ctx context.Context, category string) ([]models.CityCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, l := range m.listings {
		if l.Category == category && l.Status == models.StatusApproved {
			counts[l.City]++
		}
	}
	var out []models.CityCount
	for city, count := range counts {
		out = append(out, models.CityCount{City: city, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].City < out[j].City
	})
	return out, nil
}

func (m *MockDB) AddFavorite(ctx context.Context, userID, listingID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{userID, listingID}
	if _, ok := m.favorites[key]; ok {
		return storage.ErrAlreadyFavorite
	}
	m.favorites[key] = time.Now()
	return nil
}

func (m *MockDB) RemoveFavorite(ctx context.Context, userID, listingID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{userID, listingID}
	if _, ok := m.favorites[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.favorites, key)
	return nil
}

func (m *MockDB) IsFavorite(ctx context.Context, userID, listingID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.favorites[[2]int64{userID, listingID}]
	return ok, nil
}

func (m *MockDB) FavoriteListings(ctx context.Context, userID int64) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listingsWhere(func(l *models.Listing) bool {
		_, ok := m.favorites[[2]int64{userID, l.ID}]
		return ok
	}), nil
}

func (m *MockDB) MarkViewed(ctx context.Context, userID, listingID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewed[[2]int64{userID, listingID}] = true
	return nil
}

func (m *MockDB) UnseenCount(ctx context.Context, userID int64, city, category string, tags []string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, l := range m.listings {
		if l.Status != models.StatusApproved || l.City != city || l.Category != category {
			continue
		}
		if m.viewed[[2]int64{userID, l.ID}] {
			continue
		}
		if len(tags) == 0 || l.Tags.Intersects(tags) {
			count++
		}
	}
	return count, nil
}

func (m *MockDB) CreateSubscription(ctx context.Context, s *models.Subscription) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(s.Tags) > models.MaxListingTags {
		s.Tags = s.Tags[:models.MaxListingTags]
	}
	m.nextID++
	s.ID = m.nextID
	copied := *s
	m.subscriptions[s.ID] = &copied
	return s.ID, nil
}

func (m *MockDB) MatchingSubscriptions(ctx context.Context, city, category string, tags []string) ([]models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Subscription
	for _, s := range m.subscriptions {
		if s.City != city || s.Category != category {
			continue
		}
		if len(s.Tags) == 0 || s.Tags.Intersects(tags) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
