package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/justestif/wellness-tracker/internal/auth"
	"github.com/justestif/wellness-tracker/internal/config"
	"github.com/justestif/wellness-tracker/internal/db"
	"github.com/justestif/wellness-tracker/internal/insights"
	"github.com/justestif/wellness-tracker/internal/realtime"
	"github.com/justestif/wellness-tracker/internal/tracker"
	"github.com/justestif/wellness-tracker/internal/web"
	webfs "github.com/justestif/wellness-tracker/web"
)

// janitorInterval is how often the janitor runs.
const janitorInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().String("addr", web.DefaultAddr, "address to listen on")
	serveCmd.Flags().Bool("in-memory", false, "keep all data in memory instead of PostgreSQL")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// stores are the backends the services run on.
type stores struct {
	auth    auth.Store
	tracker tracker.Store
	// deleteUser removes tracker data when the store does not cascade.
	deleteUser func(ctx context.Context, userID uuid.UUID) error
	ping       func(ctx context.Context) error
	purge      func(ctx context.Context) (int64, error)
	close      func()
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Create sub-filesystems for templates and static files
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	serverCfg := web.ServerConfig{
		Addr:          cfg.Addr,
		TemplatesFS:   templates,
		StaticFS:      static,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.SecureCookies(),
		Insights:      insights.DefaultConfig(),
		Logger:        logger,
	}

	if !cfg.Configured() {
		logger.Warn("no database configured; serving setup page only")
	} else {
		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.close()

		hub := realtime.NewHub()
		var publisher realtime.Publisher = hub
		if cfg.RedisURL != "" {
			bridge, closeRedis, err := startRedisBridge(ctx, cfg.RedisURL, hub, logger)
			if err != nil {
				return err
			}
			defer closeRedis()
			publisher = bridge
		}

		trackers := tracker.NewService(st.tracker, tracker.WithPublisher(publisher))

		svc, err := newAuthService(ctx, cfg, st, trackers, logger)
		if err != nil {
			return err
		}

		go janitor(ctx, svc, st.purge, logger)

		serverCfg.Auth = svc
		serverCfg.Tracker = trackers
		serverCfg.Hub = hub
		serverCfg.Ping = st.ping
	}

	server, err := web.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run(ctx)
}

// openStores connects to PostgreSQL, or builds memory stores when
// in-memory mode is on.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.InMemory || cfg.DatabaseURL == "" {
		logger.Warn("using in-memory storage; data is lost on restart")
		trackerStore := tracker.NewMemoryStore()
		return &stores{
			auth:       auth.NewMemoryStore(),
			tracker:    trackerStore,
			deleteUser: trackerStore.DeleteUser,
			close:      func() {},
		}, nil
	}

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	applied, err := database.Migrate(ctx)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	for _, name := range applied {
		logger.Info("applied migration", "name", name)
	}

	authStore := database.AuthStore()
	return &stores{
		auth:    authStore,
		tracker: database.TrackerStore(),
		ping:    database.Ping,
		purge:   authStore.PurgeExpired,
		close:   database.Close,
	}, nil
}

// startRedisBridge connects to Redis and relays changes between instances
// until ctx is done.
func startRedisBridge(ctx context.Context, redisURL string, hub *realtime.Hub, logger *slog.Logger) (*realtime.RedisBridge, func(), error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	bridge := realtime.NewRedisBridge(client, hub, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("redis bridge stopped", "error", err)
		}
	}()

	logger.Info("realtime changes shared through redis", "addr", opts.Addr)
	return bridge, func() { client.Close() }, nil
}

func newAuthService(ctx context.Context, cfg *config.Config, st *stores, trackers *tracker.Service, logger *slog.Logger) (*auth.Service, error) {
	if cfg.GeneratedSecret {
		logger.Warn("no jwt_secret configured; generated one for this process, sessions end on restart")
	}

	var mailer auth.Mailer = auth.NewLogMailer(logger)
	if cfg.Mailer == config.MailerSES {
		ses, err := auth.NewSESMailer(ctx, cfg.AWSRegion, cfg.MailFrom)
		if err != nil {
			return nil, fmt.Errorf("creating ses mailer: %w", err)
		}
		mailer = ses
	}

	opts := []auth.Option{
		auth.WithMailer(mailer),
		auth.WithLogger(logger),
		// Every account gets a profile row seeded from the sign-up form.
		auth.WithUserCreatedHook(func(ctx context.Context, u *auth.User) error {
			p := tracker.NewProfile(u.ID, u.FullName)
			if u.DateOfBirth != nil {
				dob := tracker.DateOf(*u.DateOfBirth)
				p.DateOfBirth = &dob
			}
			return trackers.SaveProfile(ctx, p)
		}),
	}
	if st.deleteUser != nil {
		opts = append(opts, auth.WithDeleteHook(st.deleteUser))
	}

	svc, err := auth.NewService(st.auth, auth.Config{
		JWTSecret:           []byte(cfg.JWTSecret),
		Issuer:              cfg.JWTIssuer,
		AccessTokenTTL:      cfg.AccessTokenTTL,
		SessionTTL:          cfg.SessionTTL,
		RequireConfirmation: cfg.RequireEmailConfirmation,
		BaseURL:             cfg.BaseURL,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating auth service: %w", err)
	}
	return svc, nil
}

// janitor purges expired sessions and one-time tokens, when the store keeps
// them, and forgets stale email cooldowns until ctx is done.
func janitor(ctx context.Context, svc *auth.Service, purge func(ctx context.Context) (int64, error), logger *slog.Logger) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.PruneEmailCooldowns(); n > 0 {
				logger.Debug("pruned email cooldowns", "count", n)
			}
			if purge == nil {
				continue
			}
			n, err := purge(ctx)
			if err != nil {
				logger.Error("purging expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions and tokens", "count", n)
			}
		}
	}
}
