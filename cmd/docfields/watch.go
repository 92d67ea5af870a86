package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docfields/internal/async"
	"github.com/joseph-ayodele/docfields/internal/ingest"
	"github.com/joseph-ayodele/docfields/internal/metrics"
	"github.com/joseph-ayodele/docfields/internal/pipeline"
	repo "github.com/joseph-ayodele/docfields/internal/repository"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

var (
	watchDirs     []string
	watchSchema   string
	watchMetrics  string
	watchDebounce time.Duration
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch directories and extract every new document",
	Long: `Watch registers each document created under the watched directories
and queues it for extraction. Progress is kept in the status store; use
"docfields documents" to inspect it.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVarP(&watchDirs, "dir", "d", nil, "directory to watch (repeatable)")
	watchCmd.Flags().StringVarP(&watchSchema, "schema", "s", "", "schema file (.yaml or .json)")
	watchCmd.Flags().StringVar(&watchMetrics, "metrics-addr", "", "serve prometheus metrics on this address (overrides METRICS_ADDR)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is queued")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also queue documents already present")
	_ = watchCmd.MarkFlagRequired("dir")
	_ = watchCmd.MarkFlagRequired("schema")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sc, err := schema.Load(watchSchema)
	if err != nil {
		return err
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if watchMetrics == "" {
		watchMetrics = cfg.Metrics.Addr
	}
	if watchMetrics != "" {
		srv := &http.Server{Addr: watchMetrics, Handler: metricsMux(a), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", "addr", watchMetrics)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	queue := async.NewQueue(a.processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.Timeout),
		async.WithMetrics(a.metrics),
		async.WithResultHandler(func(job async.Job, res pipeline.Result, err error) {
			if err != nil {
				logger.Warn("document failed", "document_id", job.DocumentID, "path", job.Path, "error", err)
				return
			}
			logger.Info("document extracted", "document_id", job.DocumentID, "path", job.Path, "fields", res.Fields)
		}),
	)

	events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:       watchDirs,
		SkipHidden:  true,
		InitialScan: watchExisting,
		Debounce:    watchDebounce,
		Logger:      logger,
	})
	if err != nil {
		queue.Shutdown(context.Background())
		return err
	}
	logger.Info("watching", "dirs", watchDirs, "schema", sc.Name)

loop:
	for {
		select {
		case path, ok := <-events:
			if !ok {
				break loop
			}
			doc, err := a.docs.Create(ctx, repo.CreateDocumentRequest{Name: filepath.Base(path), SourcePath: path, SchemaName: sc.Name})
			if err != nil {
				logger.Error("failed to register document", "path", path, "error", err)
				continue
			}
			if err := queue.Enqueue(ctx, async.Job{DocumentID: doc.ID, Path: path, Schema: sc}); err != nil {
				logger.Error("failed to enqueue document", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.Timeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	return nil
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.HealthCheck(r.Context(), 2*time.Second); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
