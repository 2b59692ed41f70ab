package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/api"
	"github.com/anaslahboub/app-microservice/internal/app"
	"github.com/anaslahboub/app-microservice/internal/app/maintenance"
	iauth "github.com/anaslahboub/app-microservice/internal/auth"
	"github.com/anaslahboub/app-microservice/internal/cache"
	"github.com/anaslahboub/app-microservice/internal/database"
	"github.com/anaslahboub/app-microservice/internal/monitoring"
	"github.com/anaslahboub/app-microservice/internal/monitoring/checks"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/internal/userclient"
	"github.com/anaslahboub/app-microservice/pkg/logger"
)

const toggleLockShards = 64

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Hub        *realtime.Hub
	Dispatcher *services.Dispatcher
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine

	stopRelay context.CancelFunc
}

// bootstrapRuntime initialises the database, caches, the notification pipeline, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	var unreadCache cache.Store = dbStore

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			unreadCache = cache.NewRedisStore(stack.Redis)
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	users, err := userLookup(cfg)
	if err != nil {
		return nil, err
	}

	// The group registry depends on the hub through the dispatcher, so the
	// hub resolves it lazily.
	var groups *services.GroupService
	stack.Hub = realtime.NewHub(
		realtime.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		realtime.WithAuthorizer(realtime.AuthorizerFunc(func(ctx context.Context, userID, destination string) error {
			if groups == nil {
				return errors.New("group registry not ready")
			}
			return groups.AuthorizeSubscription(ctx, userID, destination)
		})),
	)

	publishers := []realtime.Publisher{stack.Hub}
	if cfg.Relay.Enabled {
		if stack.Redis == nil {
			log.Warn("relay enabled without redis; fan-out stays local to this instance")
		} else {
			relay := realtime.NewRedisRelay(stack.Redis, cfg.Relay.Channel, stack.Hub)
			publishers = append(publishers, relay)

			relayCtx, cancel := context.WithCancel(context.Background())
			stack.stopRelay = cancel
			go func() {
				if err := relay.Run(relayCtx); err != nil {
					log.Error("relay stopped", zap.Error(err))
				}
			}()
		}
	}

	store, err := services.NewEventStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise event store: %w", err)
	}

	inbox, err := services.NewInboxService(store, unreadCache, cfg.Cache.UnreadTTL)
	if err != nil {
		return nil, fmt.Errorf("initialise inbox service: %w", err)
	}

	stack.Dispatcher, err = services.NewDispatcher(stack.DB, cfg.Notifications.DispatcherConfig(cfg.Timeouts),
		services.WithPublishers(publishers...),
		services.WithUnreadInvalidator(inbox),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise dispatcher: %w", err)
	}

	core, err := services.NewCore(stack.DB, stack.Dispatcher, users)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	toggles, err := services.NewToggleEngine(core, services.NewKeyedLock(toggleLockShards))
	if err != nil {
		return nil, fmt.Errorf("initialise toggle engine: %w", err)
	}
	posts, err := services.NewPostService(core)
	if err != nil {
		return nil, fmt.Errorf("initialise post service: %w", err)
	}
	comments, err := services.NewCommentService(core)
	if err != nil {
		return nil, fmt.Errorf("initialise comment service: %w", err)
	}

	media, err := services.NewFileMediaStore(cfg.Media.Dir)
	if err != nil {
		return nil, fmt.Errorf("initialise media store: %w", err)
	}
	chats, err := services.NewChatService(core, media, services.ChatConfig{
		MaxMediaBytes:    cfg.Media.MaxBytes,
		InlineMediaBytes: cfg.Media.InlineMaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise chat service: %w", err)
	}

	groups, err = services.NewGroupService(core)
	if err != nil {
		return nil, fmt.Errorf("initialise group service: %w", err)
	}

	cleanerOpts := []maintenance.Option{
		maintenance.WithRetentionDays(cfg.Notifications.RetentionDays),
		maintenance.WithPruneSchedule(cfg.Notifications.PruneSchedule),
		maintenance.WithReconcileSchedule(cfg.Notifications.ReconcileSchedule),
	}
	if stack.Redis == nil {
		cleanerOpts = append(cleanerOpts, maintenance.WithCachePurger(dbStore))
	}
	stack.Cleaner = maintenance.NewCleaner(store, core.Counters(), cleanerOpts...)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	health := monitoring.NewHealthManager(0)
	health.RegisterLiveness(checks.Dispatcher(stack.Dispatcher))
	health.RegisterLiveness(checks.Realtime(stack.Hub))
	health.RegisterReadiness(checks.Database(stack.DB))
	health.RegisterReadiness(checks.Redis(stack.Redis, cfg.Cache.Redis.Enabled))
	health.RegisterReadiness(checks.Maintenance(stack.Cleaner, 0, nil))

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:       stack.DB,
		JWT:      jwtSvc,
		Config:   cfg,
		Hub:      stack.Hub,
		Inbox:    inbox,
		Toggles:  toggles,
		Posts:    posts,
		Comments: comments,
		Chats:    chats,
		Groups:   groups,
		Health:   health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background work and releases resources. Queued
// notifications are flushed before the stores close.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	var errs error

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("maintenance jobs: %w", ctx.Err()))
		}
	}

	if s.Dispatcher != nil {
		errs = multierr.Append(errs, s.Dispatcher.Close(ctx))
	}

	if s.stopRelay != nil {
		s.stopRelay()
	}

	if s.Hub != nil {
		s.Hub.Close()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("database: %w", err))
		}
	}

	for _, err := range multierr.Errors(errs) {
		log.Warn("shutdown", zap.Error(err))
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func userLookup(cfg *app.Config) (userclient.Lookup, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.UserService.Mode)) {
	case "http":
		client, err := userclient.New(cfg.UserService.ClientConfig(cfg.Timeouts))
		if err != nil {
			return nil, fmt.Errorf("initialise user client: %w", err)
		}
		return client, nil
	default:
		return userclient.NewLocalDirectory(), nil
	}
}
