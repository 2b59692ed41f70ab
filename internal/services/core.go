package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/userclient"
)

// Core bundles the collaborators shared by the engagement services.
type Core struct {
	db         *gorm.DB
	store      *EventStore
	counters   *CounterManager
	composer   *Composer
	dispatcher *Dispatcher
	users      userclient.Lookup
}

// NewCore wires the event store, counter manager and composer around db.
func NewCore(db *gorm.DB, dispatcher *Dispatcher, users userclient.Lookup) (*Core, error) {
	if db == nil {
		return nil, errors.New("core: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("core: dispatcher is required")
	}
	if users == nil {
		return nil, errors.New("core: user lookup is required")
	}

	store, err := NewEventStore(db)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterManager(db)
	if err != nil {
		return nil, err
	}
	composer, err := NewComposer(store)
	if err != nil {
		return nil, err
	}

	return &Core{
		db:         db,
		store:      store,
		counters:   counters,
		composer:   composer,
		dispatcher: dispatcher,
		users:      users,
	}, nil
}

// Store returns the event store.
func (c *Core) Store() *EventStore {
	return c.store
}

// Counters returns the counter manager.
func (c *Core) Counters() *CounterManager {
	return c.counters
}

func (c *Core) loadPost(ctx context.Context, postID int64) (*models.Post, error) {
	var post models.Post
	if err := c.db.WithContext(ensureContext(ctx)).Take(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPostNotFound
		}
		return nil, translateStoreError(err)
	}
	return &post, nil
}

func (c *Core) lookupUser(ctx context.Context, userID string) (userclient.User, error) {
	userID = trimmed(userID)
	if userID == "" {
		return userclient.User{}, errUserRequired
	}
	return c.users.GetUser(ctx, userID)
}
