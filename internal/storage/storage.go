package storage

import (
	"context"
	"errors"

	"froggle/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict is returned by SetListingStatus when the listing is
	// no longer in the expected source status.
	ErrStatusConflict = errors.New("listing status conflict")
	// ErrAlreadyFavorite is returned by AddFavorite for a duplicate pair.
	ErrAlreadyFavorite = errors.New("already favorited")
)

// Storage defines the interface for data storage operations
type Storage interface {
	// User operations. GetOrCreateUser resolves by Telegram id and inserts
	// the user on first interaction.
	GetOrCreateUser(ctx context.Context, telegramID, firstName, lastName, username string) (*models.User, error)
	UserByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)

	// Listing operations
	CreateListing(ctx context.Context, l *models.Listing) (int64, error)
	Listing(ctx context.Context, id int64) (*models.Listing, error)
	PendingListings(ctx context.Context) ([]models.Listing, error)
	ApprovedListings(ctx context.Context, category, city string) ([]models.Listing, error)
	ListingsByOwner(ctx context.Context, userID int64) ([]models.Listing, error)

	// SetListingStatus flips the status only when the listing is currently
	// in the from status; otherwise ErrStatusConflict (or ErrNotFound).
	SetListingStatus(ctx context.Context, id int64, from, to models.Status) error

	// DeleteListing removes the listing row together with its viewed markers
	// and favorites, in one transaction.
	DeleteListing(ctx context.Context, id int64) error

	// LastContact returns the contact string of the user's most recently
	// created listing, or "" if none.
	LastContact(ctx context.Context, userID int64) (string, error)

	// Reference data
	TagsByCategory(ctx context.Context, category string) ([]models.Tag, error)
	// TagsInUse returns the category's tags that appear on at least one
	// approved listing in the given city (browse filtering, unlike
	// submission which offers all tags).
	TagsInUse(ctx context.Context, category, city string) ([]models.Tag, error)
	Cities(ctx context.Context) ([]models.City, error)
	CityCounts(ctx context.Context, category string) ([]models.CityCount, error)

	// Favorites
	AddFavorite(ctx context.Context, userID, listingID int64) error
	RemoveFavorite(ctx context.Context, userID, listingID int64) error
	IsFavorite(ctx context.Context, userID, listingID int64) (bool, error)
	FavoriteListings(ctx context.Context, userID int64) ([]models.Listing, error)

	// View tracking and subscriptions
	MarkViewed(ctx context.Context, userID, listingID int64) error
	// UnseenCount counts approved listings in city+category with tag overlap
	// that the user has no viewed marker for. Empty tags match everything.
	UnseenCount(ctx context.Context, userID int64, city, category string, tags []string) (int, error)
	CreateSubscription(ctx context.Context, s *models.Subscription) (int64, error)
	MatchingSubscriptions(ctx context.Context, city, category string, tags []string) ([]models.Subscription, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
