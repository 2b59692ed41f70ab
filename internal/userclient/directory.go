package userclient

import (
	"context"
	"sync"

	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

// Directory is an in-memory Lookup. In trusting mode unknown ids resolve to a
// bare user, which is how the service runs without a user directory.
type Directory struct {
	mu       sync.RWMutex
	users    map[string]User
	trusting bool
}

// NewDirectory returns a Directory that knows exactly the given users.
func NewDirectory(users ...User) *Directory {
	d := &Directory{users: make(map[string]User, len(users))}
	for _, user := range users {
		d.users[user.ID] = user
	}
	return d
}

// NewLocalDirectory returns a trusting Directory that fills in names from the
// caller's token claims.
func NewLocalDirectory() *Directory {
	d := NewDirectory()
	d.trusting = true
	return d
}

// Put adds or replaces a user.
func (d *Directory) Put(user User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

// GetUser implements Lookup.
func (d *Directory) GetUser(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, apperrors.ErrTimeout.WithInternal(err)
	}
	if id == "" {
		return User{}, apperrors.NewNotFound("user not found")
	}

	d.mu.RLock()
	user, ok := d.users[id]
	d.mu.RUnlock()
	if ok {
		return user, nil
	}

	if !d.trusting {
		return User{}, apperrors.NewNotFound("user not found")
	}
	if caller, ok := CallerFromContext(ctx); ok && caller.ID == id {
		return caller, nil
	}
	return User{ID: id}, nil
}
