package users

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DefaultAvatarURL is assigned to newly registered users.
	DefaultAvatarURL = "/placeholder.svg?height=200&width=200"

	opDirectoryNew = "users.directory.new"
	opRegister     = "users.register"
	opUpdate       = "users.update_profile"
)

var (
	// ErrEmailTaken indicates that another user already registered the email.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidCredentials indicates that the email and secret do not match a user.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrNotFound indicates that no user has the requested id.
	ErrNotFound = errors.New("users: not found")
	// ErrInvalidInput indicates that registration or profile input failed validation.
	ErrInvalidInput = errors.New("users: invalid input")

	errMissingDatabase = errors.New("database handle is required")
)

// RegistrationInput carries the fields supplied at sign up.
type RegistrationInput struct {
	DisplayName string `validate:"required,max=320"`
	Email       string `validate:"required,email,max=320"`
	Secret      string `validate:"required,min=1,max=512"`
}

// ProfileUpdate carries optional profile changes; nil fields are left as is.
type ProfileUpdate struct {
	DisplayName *string `validate:"omitempty,min=1,max=320"`
	Bio         *string `validate:"omitempty,max=1024"`
	AvatarURL   *string `validate:"omitempty,max=512"`
}

// DirectoryConfig describes the dependencies of a Directory.
type DirectoryConfig struct {
	Database   *gorm.DB
	IDProvider memes.IDProvider
	Logger     *zap.Logger
}

// Directory registers, authenticates and updates users. Credential handling is
// illustrative: secrets are stored as supplied.
type Directory struct {
	db         *gorm.DB
	idProvider memes.IDProvider
	logger     *zap.Logger
	validate   *validator.Validate
}

// NewDirectory constructs a Directory.
func NewDirectory(cfg DirectoryConfig) (*Directory, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("%s: %w", opDirectoryNew, errMissingDatabase)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = memes.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		db:         cfg.Database,
		idProvider: idProvider,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Register creates a user with a default bio and avatar.
func (d *Directory) Register(ctx context.Context, input RegistrationInput) (User, error) {
	input.DisplayName = normalize(input.DisplayName)
	input.Email = normalizeEmail(input.Email)
	if err := d.validate.Struct(input); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var existing int64
	if err := d.db.WithContext(ctx).Model(&User{}).Where("email = ?", input.Email).Count(&existing).Error; err != nil {
		d.logError(opRegister, "email_lookup_failed", err)
		return User{}, err
	}
	if existing > 0 {
		return User{}, ErrEmailTaken
	}

	userID, err := d.idProvider.NewID()
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:               userID,
		DisplayName:      input.DisplayName,
		Email:            input.Email,
		CredentialSecret: input.Secret,
		Bio:              fmt.Sprintf("Hi, I'm %s!", input.DisplayName),
		AvatarURL:        DefaultAvatarURL,
	}
	if err := d.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, ErrEmailTaken
		}
		d.logError(opRegister, "user_create_failed", err, zap.String("user_id", userID))
		return User{}, err
	}
	return user, nil
}

// Authenticate returns the user whose email and secret match.
func (d *Directory) Authenticate(ctx context.Context, email, secret string) (User, error) {
	var user User
	err := d.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if subtle.ConstantTimeCompare([]byte(user.CredentialSecret), []byte(secret)) != 1 {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Lookup returns the user with the supplied id.
func (d *Directory) Lookup(ctx context.Context, userID string) (User, error) {
	var user User
	err := d.db.WithContext(ctx).Where("user_id = ?", normalize(userID)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of update and returns the stored record.
func (d *Directory) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	if err := d.validate.Struct(update); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user, err := d.Lookup(ctx, userID)
	if err != nil {
		return User{}, err
	}

	updates := map[string]interface{}{}
	if update.DisplayName != nil {
		if display := normalize(*update.DisplayName); display != "" && display != user.DisplayName {
			updates["display_name"] = display
		}
	}
	if update.Bio != nil && normalize(*update.Bio) != user.Bio {
		updates["bio"] = normalize(*update.Bio)
	}
	if update.AvatarURL != nil {
		if avatar := normalize(*update.AvatarURL); avatar != "" && avatar != user.AvatarURL {
			updates["avatar_url"] = avatar
		}
	}
	if len(updates) == 0 {
		return user, nil
	}
	updates["updated_at"] = time.Now().UTC()
	if err := d.db.WithContext(ctx).Model(&User{}).Where("user_id = ?", user.ID).Updates(updates).Error; err != nil {
		d.logError(opUpdate, "user_update_failed", err, zap.String("user_id", user.ID))
		return User{}, err
	}
	return d.Lookup(ctx, user.ID)
}

func (d *Directory) logError(operation, reason string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	d.logger.Error("user directory operation failed", allFields...)
}
