package memes

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	uploadWidth        = 500
	uploadHeight       = 500
	uploadCaptionSlots = 2
)

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func validate() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidator
}

// ValidateItem checks the structural invariants of an item.
func ValidateItem(item Item) error {
	return wrapValidation(validate().Struct(item))
}

// ValidateComment checks the structural invariants of a comment.
func ValidateComment(comment Comment) error {
	if strings.TrimSpace(comment.Text) == "" {
		return fmt.Errorf("%w: comment text is empty", ErrValidation)
	}
	return wrapValidation(validate().Struct(comment))
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		return fmt.Errorf("%w: %s failed %s", ErrValidation, first.Field(), first.Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// NewComment builds a comment authored by the supplied snapshot.
func NewComment(ids IDProvider, clock func() time.Time, author Author, text string) (Comment, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Comment{}, fmt.Errorf("%w: comment text is empty", ErrValidation)
	}
	if ids == nil {
		ids = NewUUIDProvider()
	}
	if clock == nil {
		clock = time.Now
	}
	commentID, err := ids.NewID()
	if err != nil {
		return Comment{}, err
	}
	return Comment{
		ID:        commentID,
		Text:      trimmed,
		Author:    author,
		CreatedAt: clock().UTC(),
	}, nil
}

// UploadInput carries the user supplied fields of a local upload.
type UploadInput struct {
	Title    string
	MediaURL string
	Caption  string
}

// NewUpload builds a locally owned item from user input.
func NewUpload(ids IDProvider, clock func() time.Time, owner Author, input UploadInput) (Item, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Item{}, fmt.Errorf("%w: title is empty", ErrValidation)
	}
	mediaURL := strings.TrimSpace(input.MediaURL)
	if mediaURL == "" {
		return Item{}, fmt.Errorf("%w: media url is empty", ErrValidation)
	}
	if ids == nil {
		ids = NewUUIDProvider()
	}
	if clock == nil {
		clock = time.Now
	}
	itemID, err := ids.NewID()
	if err != nil {
		return Item{}, err
	}

	captions := []string{}
	if caption := strings.TrimSpace(input.Caption); caption != "" {
		captions = append(captions, caption)
	}

	item := Item{
		ID:           itemID,
		Title:        title,
		MediaURL:     mediaURL,
		Width:        uploadWidth,
		Height:       uploadHeight,
		CaptionSlots: uploadCaptionSlots,
		Captions:     captions,
		LikeCount:    0,
		Comments:     []Comment{},
		CreatedAt:    clock().UTC(),
		Category:     CategoryNew,
		OwnerID:      owner.ID,
	}
	if err := ValidateItem(item); err != nil {
		return Item{}, err
	}
	return item, nil
}
