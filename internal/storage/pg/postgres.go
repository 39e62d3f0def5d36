package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"froggle/internal/models"
	"froggle/internal/storage"
)

// DB is the gorm-backed implementation of storage.Storage.
type DB struct {
	g *gorm.DB
}

// Open connects to PostgreSQL using the given DSN.
func Open(dsn string) (*DB, error) {
	return New(postgres.Open(dsn))
}

// New creates a DB on top of any gorm dialector. Tests use the sqlite
// dialector here; production goes through Open.
func New(dialector gorm.Dialector) (*DB, error) {
	g, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{g: g}, nil
}

// Initialize brings the schema up to date. The canonical schema lives in the
// goose migrations; AutoMigrate keeps test databases and fresh environments
// in sync with the models.
func (db *DB) Initialize(ctx context.Context) error {
	err := db.g.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Tag{},
		&models.City{},
		&models.Favorite{},
		&models.ViewedMarker{},
		&models.Subscription{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetOrCreateUser resolves a user by Telegram id, inserting a new row on the
// first interaction.
func (db *DB) GetOrCreateUser(ctx context.Context, telegramID, firstName, lastName, username string) (*models.User, error) {
	var user models.User
	err := db.g.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	user = models.User{
		TelegramID: telegramID,
		FirstName:  firstName,
		LastName:   lastName,
		Username:   username,
	}
	if err := db.g.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (db *DB) UserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	var user models.User
	err := db.g.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

func (db *DB) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := db.g.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

// CreateListing persists a new listing in a single insert. Tag and media
// limits are clamped here as a backstop; the submission flow enforces them
// interactively.
func (db *DB) CreateListing(ctx context.Context, l *models.Listing) (int64, error) {
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
	if err := db.g.WithContext(ctx).Create(l).Error; err != nil {
		return 0, fmt.Errorf("failed to create listing: %w", err)
	}
	return l.ID, nil
}

func (db *DB) Listing(ctx context.Context, id int64) (*models.Listing, error) {
	var l models.Listing
	err := db.g.WithContext(ctx).First(&l, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	return &l, nil
}

// PendingListings returns the moderation queue in stable id order.
func (db *DB) PendingListings(ctx context.Context) ([]models.Listing, error) {
	var listings []models.Listing
	err := db.g.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("id").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending listings: %w", err)
	}
	return listings, nil
}

func (db *DB) ApprovedListings(ctx context.Context, category, city string) ([]models.Listing, error) {
	var listings []models.Listing
	err := db.g.WithContext(ctx).
		Where("category = ? AND city = ? AND status = ?", category, city, models.StatusApproved).
		Order("id").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list approved listings: %w", err)
	}
	return listings, nil
}

func (db *DB) ListingsByOwner(ctx context.Context, userID int64) ([]models.Listing, error) {
	var listings []models.Listing
	err := db.g.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, models.StatusDeleted).
		Order("id").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list own listings: %w", err)
	}
	return listings, nil
}

// SetListingStatus performs the guarded transition from -> to. The WHERE on
// the source status makes concurrent moderation actions lose cleanly instead
// of double-applying.
func (db *DB) SetListingStatus(ctx context.Context, id int64, from, to models.Status) error {
	res := db.g.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to update listing status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.g.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check listing: %w", err)
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrStatusConflict
	}
	return nil
}

// DeleteListing removes the row and its dependents in one transaction.
func (db *DB) DeleteListing(ctx context.Context, id int64) error {
	return db.g.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", id).Delete(&models.ViewedMarker{}).Error; err != nil {
			return fmt.Errorf("failed to delete viewed markers: %w", err)
		}
		if err := tx.Where("listing_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return fmt.Errorf("failed to delete favorites: %w", err)
		}
		res := tx.Delete(&models.Listing{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete listing: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (db *DB) LastContact(ctx context.Context, userID int64) (string, error) {
	var l models.Listing
	err := db.g.WithContext(ctx).
		Where("user_id = ? AND contact_info <> ''", userID).
		Order("created_at DESC").
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch last contact: %w", err)
	}
	return l.ContactInfo, nil
}

func (db *DB) TagsByCategory(ctx context.Context, category string) ([]models.Tag, error) {
	var tags []models.Tag
	err := db.g.WithContext(ctx).
		Where("category = ?", category).
		Order("display_order").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// TagsInUse filters the category's tags down to those present on approved
// listings in the city. Listing tags live in a JSON column, so the overlap is
// computed here rather than in SQL.
func (db *DB) TagsInUse(ctx context.Context, category, city string) ([]models.Tag, error) {
	listings, err := db.ApprovedListings(ctx, category, city)
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool)
	for _, l := range listings {
		for _, name := range l.Tags {
			used[name] = true
		}
	}
	all, err := db.TagsByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	var tags []models.Tag
	for _, t := range all {
		if used[t.Name] {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

func (db *DB) Cities(ctx context.Context) ([]models.City, error) {
	var cities []models.City
	if err := db.g.WithContext(ctx).Order("name").Find(&cities).Error; err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	return cities, nil
}

func (db *DB) CityCounts(ctx context.Context, category string) ([]models.CityCount, error) {
	var counts []models.CityCount
	err := db.g.WithContext(ctx).
		Model(&models.Listing{}).
		Select("city, count(id) as count").
		Where("category = ? AND status = ?", category, models.StatusApproved).
		Group("city").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count listings per city: %w", err)
	}
	return counts, nil
}

func (db *DB) AddFavorite(ctx context.Context, userID, listingID int64) error {
	exists, err := db.IsFavorite(ctx, userID, listingID)
	if err != nil {
		return err
	}
	if exists {
		return storage.ErrAlreadyFavorite
	}
	fav := models.Favorite{UserID: userID, ListingID: listingID, AddedAt: time.Now()}
	if err := db.g.WithContext(ctx).Create(&fav).Error; err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (db *DB) RemoveFavorite(ctx context.Context, userID, listingID int64) error {
	res := db.g.WithContext(ctx).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Delete(&models.Favorite{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (db *DB) IsFavorite(ctx context.Context, userID, listingID int64) (bool, error) {
	var count int64
	err := db.g.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return count > 0, nil
}

func (db *DB) FavoriteListings(ctx context.Context, userID int64) ([]models.Listing, error) {
	var listings []models.Listing
	err := db.g.WithContext(ctx).
		Joins("JOIN favorites ON favorites.listing_id = listings.id").
		Where("favorites.user_id = ?", userID).
		Order("listings.id").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return listings, nil
}

// MarkViewed is idempotent: repeated renders of the same listing keep a
// single marker row.
func (db *DB) MarkViewed(ctx context.Context, userID, listingID int64) error {
	var count int64
	err := db.g.WithContext(ctx).
		Model(&models.ViewedMarker{}).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check viewed marker: %w", err)
	}
	if count > 0 {
		return nil
	}
	marker := models.ViewedMarker{UserID: userID, ListingID: listingID}
	if err := db.g.WithContext(ctx).Create(&marker).Error; err != nil {
		return fmt.Errorf("failed to mark viewed: %w", err)
	}
	return nil
}

func (db *DB) UnseenCount(ctx context.Context, userID int64, city, category string, tags []string) (int, error) {
	viewed := db.g.Model(&models.ViewedMarker{}).
		Select("listing_id").
		Where("user_id = ?", userID)

	var listings []models.Listing
	err := db.g.WithContext(ctx).
		Where("category = ? AND city = ? AND status = ?", category, city, models.StatusApproved).
		Where("id NOT IN (?)", viewed).
		Find(&listings).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute unseen count: %w", err)
	}
	count := 0
	for _, l := range listings {
		if len(tags) == 0 || l.Tags.Intersects(tags) {
			count++
		}
	}
	return count, nil
}

func (db *DB) CreateSubscription(ctx context.Context, s *models.Subscription) (int64, error) {
	if len(s.Tags) > models.MaxListingTags {
		s.Tags = s.Tags[:models.MaxListingTags]
	}
	if err := db.g.WithContext(ctx).Create(s).Error; err != nil {
		return 0, fmt.Errorf("failed to create subscription: %w", err)
	}
	return s.ID, nil
}

func (db *DB) MatchingSubscriptions(ctx context.Context, city, category string, tags []string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := db.g.WithContext(ctx).
		Where("city = ? AND category = ?", city, category).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	var matched []models.Subscription
	for _, s := range subs {
		if len(s.Tags) == 0 || s.Tags.Intersects(tags) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}
