// todone-export snapshots the local store into an Excel workbook and,
// when Google credentials are configured, publishes it to Google Sheets.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"todone/internal/config"
	"todone/internal/database"
	"todone/internal/export"
	"todone/internal/google"
	"todone/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to config.yaml (defaults to CONFIG_PATH or configs/config.yaml)")
		sheets     = flag.Bool("sheets", false, "also publish the snapshot to Google Sheets")
	)
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := logging.Component(baseLogger, "export-main")

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exportPath := cfg.Exports.Path
	if exportPath == "" {
		exportPath = "exports"
	}

	exporter := export.NewExcelExporter(db, exportPath, &logger)
	filePath, err := exporter.ExportTasks(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка экспорта")
		return err
	}
	logger.Info().Str("file", filePath).Msg("export finished")

	if !*sheets {
		return nil
	}
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.ProjectsSpreadSheetID == "" {
		logger.Error().Msg("Нехватает переменных для подключения к Гуглу")
		return os.ErrInvalid
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.ProjectsSpreadSheetID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize Google Sheets service")
		return err
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("Google Sheets connection test failed")
		return err
	}

	projects, err := db.GetProjects(ctx)
	if err != nil {
		return err
	}
	tasks, err := db.GetTasks(ctx)
	if err != nil {
		return err
	}

	if err := sheetsService.PublishSnapshot(ctx, projects, tasks); err != nil {
		logger.Error().Err(err).Msg("Ошибка публикации в Google Sheets")
		return err
	}
	logger.Info().Msg("Google Sheets snapshot published")
	return nil
}
