package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"study-service/internal/ai"
	"study-service/internal/app"
	"study-service/internal/config"
	"study-service/internal/infra/memory"
	mongostore "study-service/internal/infra/mongo"
	"study-service/internal/infra/postgres"
	redisstore "study-service/internal/infra/redis"
	"study-service/internal/logger"
	transport "study-service/internal/transport/http"
	"study-service/internal/video"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is what a storage driver provides. close releases its connections.
type stores struct {
	studies app.StudyRepository
	users   app.UserRepository
	close   func(context.Context)
}

func openStores(ctx context.Context, cfg config.Config, log *logger.Logger) (stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		client, db, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return stores{}, err
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return stores{}, err
		}
		log.Info("using mongo storage", "database", cfg.Mongo.Database)
		return stores{
			studies: mongostore.NewStudyRepository(db),
			users:   mongostore.NewUserRepository(db),
			close:   func(ctx context.Context) { _ = client.Disconnect(ctx) },
		}, nil
	case config.DriverPostgres:
		if err := runMigrations(ctx, cfg, log); err != nil {
			return stores{}, err
		}
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return stores{}, err
		}
		log.Info("using postgres storage")
		return stores{
			studies: postgres.NewStudyRepository(pool),
			users:   postgres.NewUserRepository(pool),
			close:   func(context.Context) { pool.Close() },
		}, nil
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		return stores{
			studies: memory.NewStudyRepository(),
			users:   memory.NewUserRepository(),
			close:   func(context.Context) {},
		}, nil
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close(context.Background())

	var (
		studies  app.StudyRepository
		sessions app.SessionRepository
		locks    app.StreamLocks
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		studies = redisstore.NewStudyCache(redisClient, st.studies, cfg.StudyCacheTTL(), log)
		sessions = redisstore.NewSessionStore(redisClient, cfg.RedisTTL())
		locks = redisstore.NewStreamLocks(redisClient)
		log.Info("redis enabled", "addr", cfg.Redis.Addr)
	} else {
		studies = memory.NewStudyCache(st.studies, cfg.StudyCacheTTL())
		sessions = memory.NewSessionStore()
		locks = memory.NewStreamLocks()
	}

	// Services take the AI ports as interfaces; a nil *ai.Client must not leak
	// into them as a non-nil interface.
	var (
		topics  app.TopicExtractor
		quizAI  app.QuizAI
		scripts app.ScriptWriter
		chatAI  app.ChatAI
	)
	if cfg.AI.APIKey != "" {
		client, err := ai.New(ai.Config{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AITimeout(),
		}, log)
		if err != nil {
			return err
		}
		topics, quizAI, scripts, chatAI = client, client, client, client
	} else {
		log.Warn("no AI api key configured; topics are split locally and AI routes return 503")
	}

	var renderer app.VideoRenderer
	if cfg.Video.URL != "" {
		renderer = video.New(cfg.Video.URL, cfg.VideoTimeout(), log)
	}

	auth := app.NewAuthService(st.users, cfg.Auth.JWTSecret, cfg.TokenTTL(), log)
	studySvc := app.NewStudyService(studies, topics, scripts, log)

	if !isDevMode(cfg.Server.LogMode) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(transport.RouterConfig{
		Auth:         auth,
		Studies:      studySvc,
		Quiz:         app.NewQuizService(studies, sessions, quizAI, log),
		Chat:         app.NewChatService(studies, locks, chatAI, log),
		Video:        app.NewVideoService(studySvc, renderer, log),
		Log:          log,
		CORSOrigins:  cfg.Server.CORSOrigins,
		SecureCookie: cfg.Server.SecureCookie,
		ChatRPS:      cfg.Limits.ChatRPS,
		ChatBurst:    cfg.Limits.ChatBurst,
	})
	server := transport.NewServer(":"+finalPort, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting study service", "port", finalPort, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-errCh:
		log.Error("server failed", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func isDevMode(mode string) bool {
	return mode != "prod" && mode != "production"
}
