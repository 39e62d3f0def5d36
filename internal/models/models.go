package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Field limits enforced by the submission flow and re-checked at persistence.
const (
	MaxListingTags  = 3
	MaxListingMedia = 10
	MaxPriceLen     = 30
)

// Status is the moderation status of a listing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDeleted  Status = "deleted"
)

// MediaKind distinguishes photo and video attachments; Telegram cannot mix
// kinds within one media group.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaItem is one attachment of a listing, referenced by its Telegram file id.
type MediaItem struct {
	FileID string    `json:"id"`
	Kind   MediaKind `json:"type"`
}

// MediaList stores listing media as a JSON column.
type MediaList []MediaItem

func (m MediaList) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *MediaList) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// StringList stores an ordered set of strings (listing or subscription tags)
// as a JSON column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Contains reports whether name is in the list.
func (s StringList) Contains(name string) bool {
	for _, v := range s {
		if v == name {
			return true
		}
	}
	return false
}

// Intersects reports whether the two lists share at least one element.
func (s StringList) Intersects(other []string) bool {
	for _, v := range other {
		if s.Contains(v) {
			return true
		}
	}
	return false
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}

// User is a Telegram account known to the bot. Created lazily on first
// interaction, never deleted. IsAdmin is toggled out of band.
type User struct {
	ID         int64  `gorm:"primaryKey"`
	TelegramID string `gorm:"uniqueIndex;size:64"`
	FirstName  string
	LastName   string
	Username   string
	IsAdmin    bool
}

// Listing is a single classified ad.
type Listing struct {
	ID          int64      `gorm:"primaryKey"`
	UserID      int64      `gorm:"index"`
	Category    string     `gorm:"index;size:64"`
	City        string     `gorm:"index;size:128"`
	Tags        StringList `gorm:"type:text"`
	Title       string
	Description string
	Price       string    `gorm:"size:30"`
	Media       MediaList `gorm:"type:text"`
	ContactInfo string
	Status      Status `gorm:"index;size:16;default:pending"`
	CreatedAt   time.Time
	IsTest      bool
}

// Tag is static reference data: the selectable tags of one category.
// At least one IsPrimary tag must be chosen during submission, unless the
// category defines no primary tags at all.
type Tag struct {
	ID           int64  `gorm:"primaryKey"`
	Name         string `gorm:"size:128"`
	Category     string `gorm:"index;size:64"`
	IsPrimary    bool
	DisplayOrder int
}

// City is reference data for the city pickers.
type City struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:128"`
}

// Favorite links a user to a listing; at most one row per pair.
type Favorite struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"uniqueIndex:idx_fav_user_listing"`
	ListingID int64 `gorm:"uniqueIndex:idx_fav_user_listing"`
	AddedAt   time.Time
}

// ViewedMarker records that a listing was rendered to a user in a browse
// context. Used only for unseen counts.
type ViewedMarker struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"uniqueIndex:idx_viewed_user_listing"`
	ListingID int64 `gorm:"uniqueIndex:idx_viewed_user_listing"`
}

// Subscription is a stored listing filter. A newly approved listing matching
// city+category with overlapping tags triggers an unseen-count notice to the
// subscriber. An empty tag set matches any tags.
type Subscription struct {
	ID       int64      `gorm:"primaryKey"`
	UserID   int64      `gorm:"index"`
	City     string     `gorm:"size:128"`
	Category string     `gorm:"size:64"`
	Tags     StringList `gorm:"type:text"`
}

// CityCount is one row of the cities-with-approved-counts query.
type CityCount struct {
	City  string
	Count int64
}
