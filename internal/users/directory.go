// Package users is the minimal identity directory used to attribute bids.
// It performs no authentication.
package users

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Olivier33jnspe/bidmenow/internal/biddingerrors"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/utils"
)

// Starting reputation for a freshly registered profile
const (
	InitialRating      = 5.0
	InitialReviewCount = 0
)

// Directory is a concurrency-safe in-memory user registry
type Directory struct {
	mu    sync.RWMutex
	users map[string]model.User // key: userID -> value: user
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{
		users: make(map[string]model.User),
	}
}

// NewUser validates a profile and builds the user it describes without storing it
func NewUser(profile model.Profile, now time.Time) (model.User, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Email = strings.TrimSpace(profile.Email)
	profile.Skills = utils.CleanList(profile.Skills)

	if err := utils.Validate(profile); err != nil {
		return model.User{}, fmt.Errorf("register user: %w - %v", biddingerrors.ErrInvalidProfile, err)
	}

	return model.User{
		UserID:      utils.GenerateID(),
		Name:        profile.Name,
		Email:       profile.Email,
		Bio:         profile.Bio,
		Skills:      profile.Skills,
		Rating:      InitialRating,
		ReviewCount: InitialReviewCount,
		CreatedAt:   now.UTC(),
	}, nil
}

// Register validates a profile and stores a new user
func (d *Directory) Register(profile model.Profile, now time.Time) (model.User, error) {
	user, err := NewUser(profile, now)
	if err != nil {
		return model.User{}, err
	}
	if err := d.Insert(user); err != nil {
		return model.User{}, err
	}
	return cloneUser(user), nil
}

// Insert stores a freshly built user; ids are never reused
func (d *Directory) Insert(user model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.users[user.UserID]; exists {
		return fmt.Errorf("insert user %s: %w - duplicate id", user.UserID, biddingerrors.ErrInvalidProfile)
	}
	d.users[user.UserID] = cloneUser(user)
	return nil
}

// Get returns the user with the given id
func (d *Directory) Get(userID string) (model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return cloneUser(user), nil
}

// DisplayName resolves a user id to the name shown next to their bids
func (d *Directory) DisplayName(userID string) (string, error) {
	user, err := d.Get(userID)
	if err != nil {
		return "", err
	}
	return user.Name, nil
}

// Restore inserts or replaces a user loaded from the journal
func (d *Directory) Restore(user model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.UserID] = cloneUser(user)
}

func cloneUser(u model.User) model.User {
	if u.Skills != nil {
		u.Skills = append(make([]string, 0, len(u.Skills)), u.Skills...)
	}
	return u
}
