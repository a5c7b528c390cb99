// Package jobs runs background maintenance for the interview service. The
// exporter periodically snapshots completed interviews to JSON files so
// reviewers can archive results outside the live store.
package jobs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BTreeMap/Crisp/internal/models"
	"github.com/BTreeMap/Crisp/internal/store"
)

// DefaultSchedule exports nightly at 02:00.
const DefaultSchedule = "0 2 * * *"

// DefaultExportDir is where export files land unless configured otherwise.
const DefaultExportDir = "exports"

const exportFilePermissions = 0644
const exportDirPermissions = 0755

// Opts holds exporter configuration.
type Opts struct {
	Schedule  string
	ExportDir string
}

// Option configures the exporter.
type Option func(*Opts)

// WithSchedule overrides the cron schedule.
func WithSchedule(schedule string) Option {
	return func(o *Opts) { o.Schedule = schedule }
}

// WithExportDir overrides the export directory.
func WithExportDir(dir string) Option {
	return func(o *Opts) { o.ExportDir = dir }
}

// Export is the on-disk snapshot format.
type Export struct {
	ExportedAt time.Time          `json:"exported_at"`
	Count      int                `json:"count"`
	Candidates []models.Candidate `json:"candidates"`
}

// Exporter writes periodic snapshots of completed interviews.
type Exporter struct {
	store    store.Store
	schedule string
	dir      string
	cron     *cron.Cron
}

// NewExporter creates an exporter over the given store.
func NewExporter(st store.Store, opts ...Option) *Exporter {
	o := Opts{Schedule: DefaultSchedule, ExportDir: DefaultExportDir}
	for _, opt := range opts {
		opt(&o)
	}
	return &Exporter{store: st, schedule: o.Schedule, dir: o.ExportDir}
}

// Start registers the export job and begins the cron loop.
func (e *Exporter) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(e.schedule, func() {
		if _, err := e.RunExport(); err != nil {
			slog.Error("Exporter: scheduled export failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to register export schedule %q: %w", e.schedule, err)
	}
	c.Start()
	e.cron = c
	slog.Info("Exporter started", "schedule", e.schedule, "dir", e.dir)
	return nil
}

// Stop halts the cron loop and waits for a running export to finish.
func (e *Exporter) Stop() {
	if e.cron == nil {
		return
	}
	ctx := e.cron.Stop()
	<-ctx.Done()
	e.cron = nil
	slog.Info("Exporter stopped")
}

// RunExport snapshots all completed interviews into a timestamped JSON file
// and returns its path.
func (e *Exporter) RunExport() (string, error) {
	completed, err := e.store.ListCompleted()
	if err != nil {
		return "", fmt.Errorf("failed to list completed interviews: %w", err)
	}
	export := Export{
		ExportedAt: time.Now().UTC(),
		Count:      len(completed),
		Candidates: completed,
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	if err := os.MkdirAll(e.dir, exportDirPermissions); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(e.dir, fmt.Sprintf("interviews-%s.json", export.ExportedAt.Format("20060102-150405")))
	if err := os.WriteFile(path, data, exportFilePermissions); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	slog.Info("Exporter: export written", "path", path, "count", export.Count)
	return path, nil
}
