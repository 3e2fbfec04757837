package memes

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Category classifies an item for filtering and trending membership.
type Category string

const (
	// CategoryTrending marks items eligible for the trending view.
	CategoryTrending Category = "trending"
	// CategoryNew marks recently created items, including every local upload.
	CategoryNew Category = "new"
	// CategoryClassic marks long-lived items.
	CategoryClassic Category = "classic"
	// CategoryRandom marks items with no particular ranking.
	CategoryRandom Category = "random"
)

// Categories lists every category in seeding order.
var Categories = []Category{CategoryTrending, CategoryNew, CategoryClassic, CategoryRandom}

const maxIdentifierLength = 190

var (
	// ErrValidation indicates that user supplied input was rejected before any state change.
	ErrValidation = errors.New("memes: validation failed")
	// ErrInvalidItemID indicates that an item identifier is empty or exceeds storage bounds.
	ErrInvalidItemID = errors.New("memes: invalid item id")
	// ErrInvalidCategory indicates an unknown category label.
	ErrInvalidCategory = errors.New("memes: invalid category")
)

// ParseCategory validates raw input and returns a Category.
func ParseCategory(rawInput string) (Category, error) {
	normalized := Category(strings.ToLower(strings.TrimSpace(rawInput)))
	for _, category := range Categories {
		if category == normalized {
			return category, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, rawInput)
}

// ItemID represents a validated item identifier.
type ItemID string

// NewItemID validates raw input and returns an ItemID.
func NewItemID(rawInput string) (ItemID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidItemID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidItemID, maxIdentifierLength)
	}
	return ItemID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ItemID) String() string {
	return string(id)
}

// Author is the snapshot of a user attached to a comment at creation time.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"profilePicture"`
}

// Comment is an append-only remark on an item.
type Comment struct {
	ID        string    `json:"id" validate:"required"`
	Text      string    `json:"text" validate:"required"`
	Author    Author    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// Item is a shareable unit of the catalog, either fetched or uploaded locally.
type Item struct {
	ID           string    `json:"id" validate:"required,max=190"`
	Title        string    `json:"name" validate:"required"`
	MediaURL     string    `json:"url" validate:"required"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CaptionSlots int       `json:"box_count"`
	Captions     []string  `json:"captions"`
	LikeCount    int       `json:"likes" validate:"gte=0"`
	Comments     []Comment `json:"comments"`
	CreatedAt    time.Time `json:"createdAt"`
	Category     Category  `json:"category" validate:"required,oneof=trending new classic random"`
	OwnerID      string    `json:"userId,omitempty"`
}

// Clone returns a copy of the item that shares no slices with the receiver.
func (item Item) Clone() Item {
	cloned := item
	cloned.Captions = slices.Clone(item.Captions)
	cloned.Comments = slices.Clone(item.Comments)
	return cloned
}

// CommentCount reports the number of comments held by the item.
func (item Item) CommentCount() int {
	return len(item.Comments)
}

// CloneItems deep-copies a sequence of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	cloned := make([]Item, len(items))
	for index, item := range items {
		cloned[index] = item.Clone()
	}
	return cloned
}
