package services

import (
	"context"
	"log/slog"

	"github.com/joshua-takyi/campus-events/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminStats struct {
	Users              int64 `json:"users"`
	Events             int64 `json:"events"`
	TotalCapacity      int64 `json:"total_capacity"`
	TotalRegistrations int64 `json:"total_registrations"`
}

type AdminService struct {
	userRepo  models.UserRepo
	eventRepo models.EventRepo
	logger    *slog.Logger
}

func NewAdminService(userRepo models.UserRepo, eventRepo models.EventRepo, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{userRepo: userRepo, eventRepo: eventRepo, logger: logger}
}

func (as *AdminService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return as.userRepo.ListUsers(ctx)
}

func (as *AdminService) Stats(ctx context.Context) (*AdminStats, error) {
	users, err := as.userRepo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	events, err := as.eventRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &AdminStats{
		Users:              users,
		Events:             events.Events,
		TotalCapacity:      events.TotalCapacity,
		TotalRegistrations: events.TotalRegistrations,
	}, nil
}

// SetAdmin changes a user's administrator flag. Administrators cannot
// revoke their own access.
func (as *AdminService) SetAdmin(ctx context.Context, actor, target primitive.ObjectID, isAdmin bool) (*models.User, error) {
	if actor == target && !isAdmin {
		return nil, models.NewValidationError("you cannot revoke your own admin access")
	}
	user, err := as.userRepo.SetAdmin(ctx, target, isAdmin)
	if err != nil {
		return nil, err
	}
	as.logger.Info("admin flag changed", "actor", actor.Hex(), "user_id", target.Hex(), "is_admin", isAdmin)
	return user, nil
}

// SetAdminByEmail is the operator path used by the CLI.
func (as *AdminService) SetAdminByEmail(ctx context.Context, email string, isAdmin bool) (*models.User, error) {
	user, err := as.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return as.userRepo.SetAdmin(ctx, user.ID, isAdmin)
}
