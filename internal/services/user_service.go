package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/campus-events/internal/helpers"
	"github.com/joshua-takyi/campus-events/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email *string `json:"email" validate:"omitempty,email,max=254"`
}

// PreferencesInput is merged into the stored preferences; absent fields
// keep their current value.
type PreferencesInput struct {
	EventTypes    []string `json:"event_types" validate:"omitempty,max=8,dive,oneof=workshop seminar club sports academic social career other"`
	Notifications *bool    `json:"notifications"`
}

type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type UserService struct {
	userRepo  models.UserRepo
	eventRepo models.EventRepo
	tokens    *helpers.JWTManager
	logger    *slog.Logger
}

func NewUserService(userRepo models.UserRepo, eventRepo models.EventRepo, tokens *helpers.JWTManager, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		userRepo:  userRepo,
		eventRepo: eventRepo,
		tokens:    tokens,
		logger:    logger,
	}
}

func (us *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = models.NormalizeEmail(in.Email)
	if err := models.ValidateStruct(in); err != nil {
		return nil, err
	}
	if len(in.Password) > helpers.MaxPasswordBytes {
		return nil, models.NewValidationError("password must be at most %d bytes", helpers.MaxPasswordBytes)
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError("failed to hash password", err)
	}

	user, err := us.userRepo.CreateUser(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Preferences:  models.Preferences{EventTypes: []string{}, Notifications: true},
	})
	if err != nil {
		return nil, err
	}

	us.logger.Info("user registered", "user_id", user.ID.Hex())
	return us.issue(user)
}

// Login fails with the same error whether the email is unknown or the
// password is wrong.
func (us *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if err := models.ValidateStruct(in); err != nil {
		return nil, err
	}

	user, err := us.userRepo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if models.IsKind(err, models.KindNotFound) {
			helpers.BurnPasswordCheck(in.Password)
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if !helpers.CheckPassword(user.PasswordHash, in.Password) {
		return nil, models.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := us.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		us.logger.Warn("failed to record last login", "user_id", user.ID.Hex(), "error", err)
	} else {
		user.LastLogin = now
	}
	return us.issue(user)
}

func (us *UserService) issue(user *models.User) (*AuthResult, error) {
	token, expires, err := us.tokens.Generate(user.ID.Hex())
	if err != nil {
		return nil, models.NewInternalError("failed to sign token", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate resolves a bearer token to the caller's user id.
func (us *UserService) Authenticate(token string) (*helpers.Claims, primitive.ObjectID, error) {
	claims, err := us.tokens.Validate(token)
	if err != nil {
		return nil, primitive.NilObjectID, models.NewUnauthorizedError(err.Error())
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, primitive.NilObjectID, models.NewUnauthorizedError(helpers.ErrInvalidToken.Error())
	}
	return claims, id, nil
}

func (us *UserService) GetProfile(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return us.userRepo.GetUserByID(ctx, id)
}

func (us *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, in ProfileInput) (*models.User, error) {
	in.Name = helpers.StringTrim(in.Name)
	if in.Email != nil {
		e := models.NormalizeEmail(*in.Email)
		in.Email = &e
	}
	if err := models.ValidateStruct(in); err != nil {
		return nil, err
	}
	update := models.ProfileUpdate{Name: in.Name, Email: in.Email}
	if update.IsEmpty() {
		return us.userRepo.GetUserByID(ctx, id)
	}
	return us.userRepo.UpdateUser(ctx, id, update)
}

func (us *UserService) UpdatePreferences(ctx context.Context, id primitive.ObjectID, in PreferencesInput) (*models.Preferences, error) {
	if err := models.ValidateStruct(in); err != nil {
		return nil, err
	}
	current, err := us.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prefs := current.Preferences
	if in.EventTypes != nil {
		prefs.EventTypes = dedupe(in.EventTypes)
	}
	if in.Notifications != nil {
		prefs.Notifications = *in.Notifications
	}

	updated, err := us.userRepo.UpdatePreferences(ctx, id, prefs)
	if err != nil {
		return nil, err
	}
	return &updated.Preferences, nil
}

// RegisteredEvents lists the events the caller holds a seat for.
func (us *UserService) RegisteredEvents(ctx context.Context, id primitive.ObjectID) ([]*models.Event, error) {
	user, err := us.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return us.eventRepo.ListEventsByIDs(ctx, user.RegisteredEvents)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
