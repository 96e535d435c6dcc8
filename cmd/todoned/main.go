package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"todone/internal/api"
	"todone/internal/config"
	"todone/internal/database"
	"todone/internal/domain"
	"todone/internal/events"
	"todone/internal/export"
	"todone/internal/logging"
	"todone/internal/metrics"
	"todone/internal/models"
	"todone/internal/notify"
	"todone/internal/remote"
	"todone/internal/repository"
	"todone/internal/service"
	"todone/internal/state"
	"todone/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	remoteClient := remote.New(cfg.Remote)
	if redisClient != nil && cfg.Remote.CacheTTL > 0 {
		remoteClient.UseRedisCache(redisClient, cfg.Remote.CacheTTLDuration())
	}

	stateStore := state.New()
	if err := restoreState(ctx, db, stateStore, &logger); err != nil {
		return err
	}

	eventBus := events.NewEventBus()
	subscribeStatePersistence(ctx, db, stateStore, &logger)
	subscribeNotifier(ctx, cfg, eventBus, db, &logger)

	engine := worker.NewEngine(db, remoteClient, stateStore, eventBus, redisClient, worker.PolicyFromConfig(cfg.Sync), &logger)
	engine.SetBatchSize(cfg.Sync.BatchSize)
	engine.SetPollInterval(cfg.Sync.PollIntervalDuration())
	go engine.Start(ctx)

	watcher := worker.NewConnectivityWatcher(remoteClient, stateStore, cfg.Sync.ConnectivityProbeDuration(), &logger)
	go watcher.Start(ctx)

	presenceRepo := initPresenceRepository(ctx, redisClient, &logger)

	taskService := service.NewTaskService(db, stateStore, eventBus, &logger)
	projectService := service.NewProjectService(db, stateStore, eventBus, &logger)
	labelService := service.NewLabelService(db, stateStore)
	collabService := service.NewCollabService(db, stateStore, presenceRepo, eventBus, &logger)

	if cfg.API.Enabled {
		var exporter *export.ExcelExporter
		if cfg.Exports.Path != "" {
			exporter = export.NewExcelExporter(db, cfg.Exports.Path, &logger)
		}
		apiServer := api.NewHTTPServer(cfg.API, db, taskService, projectService, labelService, collabService, engine, stateStore, exporter, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	logger.Info().Msg("todoned started")
	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := logging.Component(baseLogger, "todoned-main")

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
			return err
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return nil, err
	}

	if err := seedFromConfig(context.Background(), db, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Ошибка загрузки стартовых данных")
	}
	return db, nil
}

// seedFromConfig mirrors the projects/labels from config.yaml plus the
// optional PROJECTS_PATH file into the local store.
func seedFromConfig(ctx context.Context, db *database.DB, cfg *config.Config, logger *zerolog.Logger) error {
	projects := cfg.Projects
	labels := cfg.Labels

	projectsPath := os.Getenv("PROJECTS_PATH")
	if projectsPath != "" {
		data, err := os.ReadFile(projectsPath)
		if err != nil {
			logger.Error().Err(err).Msgf("Ошибка чтения %s", projectsPath)
			return err
		}

		var seed struct {
			Projects []models.Project `yaml:"projects"`
			Labels   []models.Label   `yaml:"labels"`
		}
		if err := yaml.Unmarshal(data, &seed); err != nil {
			logger.Error().Err(err).Msg("Ошибка парсинга файла проектов")
			return err
		}
		projects = append(projects, seed.Projects...)
		labels = append(labels, seed.Labels...)
	}

	if err := config.ValidateProjects(projects); err != nil {
		return err
	}

	if len(projects) > 0 {
		if err := db.SyncProjects(ctx, projects); err != nil {
			return err
		}
	}
	if len(labels) > 0 {
		if err := db.SyncLabels(ctx, labels); err != nil {
			return err
		}
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}
	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}
	return redisClient
}

func initPresenceRepository(ctx context.Context, redisClient *redis.Client, logger *zerolog.Logger) domain.PresenceRepository {
	fallback := repository.NewMemoryPresenceRepository(models.DefaultRedisTTL)
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisPresenceRepository(redisClient, models.DefaultRedisTTL)
	return repository.NewFailoverPresenceRepository(primary, fallback, logger)
}

// restoreState seeds the observable sync state from the persisted snapshot
// and the current queue depth.
func restoreState(ctx context.Context, db *database.DB, stateStore *state.Store, logger *zerolog.Logger) error {
	snapshot, err := db.LoadOfflineSnapshot(ctx)
	if err != nil {
		return err
	}
	pending, err := db.CountPendingQueueItems(ctx)
	if err != nil {
		return err
	}

	stateStore.Restore(snapshot, pending)
	logger.Info().Int("pending", pending).Msg("sync state restored")
	return nil
}

// subscribeStatePersistence writes the snapshot back to the local store on
// every state change, keeping restarts consistent.
func subscribeStatePersistence(ctx context.Context, db *database.DB, stateStore *state.Store, logger *zerolog.Logger) {
	stateStore.Subscribe(func(status models.SyncStatus) {
		snapshot := &models.OfflineSnapshot{LastSynced: status.LastSynced}
		if err := db.SaveOfflineSnapshot(ctx, snapshot); err != nil {
			logger.Error().Err(err).Msg("persist sync snapshot")
		}
	})
}

// subscribeNotifier wires the Telegram notifier to dead-lettered queue items.
func subscribeNotifier(ctx context.Context, cfg *config.Config, bus *events.EventBus, db *database.DB, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		return
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Telegram notifier disabled")
		return
	}

	bus.Subscribe(events.EventSyncItemFailed, func(ev *events.Event) error {
		var payload events.SyncEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Msg("event bus: decode payload")
			return nil
		}

		item := &models.QueueItem{
			ID:         payload.QueueItemID,
			Op:         payload.Op,
			Collection: payload.Collection,
			EntityID:   payload.EntityID,
			Attempts:   payload.Attempts,
		}
		if payload.Error != "" {
			item.LastError = &payload.Error
		}
		if err := notifier.NotifySyncFailure(item); err != nil {
			logger.Error().Err(err).Msg("notify sync failure")
		}
		return nil
	})

	reminder := worker.NewReminderWorker(db, notifier, logger)
	go reminder.Start(ctx)
}
