package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"authflow/internal/api"
	"authflow/pkg/audio"
	"authflow/pkg/cache"
	"authflow/pkg/config"
	"authflow/pkg/db"
	"authflow/pkg/db/maintenance"
	"authflow/pkg/flow"
	"authflow/pkg/logging"
	"authflow/pkg/loop"
	"authflow/pkg/narration"
	"authflow/pkg/probe"
	"authflow/pkg/speech"
	"authflow/pkg/store"
	"authflow/pkg/tts"
	"authflow/pkg/version"
	"authflow/pkg/voice"
)

const defaultConfigPath = "configs/authflow.yaml"

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to the YAML config file")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: " + *configPath)
		return
	}

	// Missing files are fine; real environment variables win
	_ = godotenv.Load(".env", ".env.local")

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	tts.SetLogPath(appCfg.Log.TTS.Path)

	slog.Info("AuthFlow Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	retention := maintenance.Retention{
		Clips: appCfg.DB.ClipRetention.Std(),
		Runs:  appCfg.DB.RunRetention.Std(),
	}
	maintenance.Run(ctx, dbConn, retention)
	go runMaintenance(ctx, dbConn, retention, appCfg.DB.MaintainPeriod.Std())

	// Speech chain
	provider, err := initProvider(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tts: %w", err)
	}
	catalog := voice.NewCatalog(provider)
	go catalog.Watch(ctx, appCfg.TTS.VoiceRefresh.Std())

	player := audio.New(audio.Effects{
		Terminal:   appCfg.Audio.Terminal,
		LowCutoff:  float64(appCfg.Audio.LowCutoff),
		HighCutoff: float64(appCfg.Audio.HighCutoff),
	})
	synthOpts := speech.Options{
		Provider: provider,
		Player:   player,
		Catalog:  catalog,
		TempDir:  appCfg.TTS.TempDir,
	}
	clips := cache.NewClips(st)
	if appCfg.TTS.Cache {
		synthOpts.Cache = clips
		synthOpts.KeyFunc = cache.Key
	}
	synth := speech.NewSynth(synthOpts)
	defer synth.Close()

	// Everything stateful runs on one loop. It outlives ctx so shutdown
	// work can still be posted to it.
	runner := loop.NewRunner()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go runner.Run(loopCtx)

	cfgProv := config.NewProvider(appCfg, st)
	engine := narration.New(runner, synth, narrationConfig(ctx, cfgProv))
	defer shutdownOnLoop(runner, engine.Shutdown)

	ctrl := flow.NewController(runner, flow.NewFactory(runner, engine, scriptsFromConfig(appCfg)), flow.Options{
		RedirectURL: cfgProv.RedirectURL(ctx),
		Greeting: flow.Greeting{
			Title:    appCfg.Flow.Title,
			Subtitle: appCfg.Flow.Subtitle,
		},
		Runs: st,
	})
	engine.OnLine(ctrl.NoteLine)
	defer ctrl.Close()
	defer shutdownOnLoop(runner, ctrl.Stop)
	go recordEvents(ctx, ctrl)

	// Startup Probes
	probes := []probe.Probe{
		{
			Name:     "Database Directory",
			Check:    probe.ParentWritable(appCfg.DB.Path),
			Critical: true,
		},
		{
			Name:     "TTS Temp Directory",
			Check:    probe.DirWritable(appCfg.TTS.TempDir),
			Critical: true,
		},
		{
			Name: "TTS Voices",
			Check: func(ctx context.Context) error {
				_, err := provider.Voices(ctx)
				return err
			},
			Critical: false, // narration degrades to silent stages
		},
	}
	report := probe.Run(ctx, probes)
	report.Log()
	if err := report.Err(); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	// Warm up the capability probe so the first line is not delayed
	go engine.Init(ctx)

	return runServer(ctx, appCfg, runner, ctrl, engine, synth, cfgProv, st, clips, provider.Name())
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func shutdownOnLoop(l loop.Loop, fn func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := loop.Await(ctx, l, fn); err != nil {
		slog.Warn("Shutdown task did not run", "error", err)
	}
}

func runMaintenance(ctx context.Context, d *db.DB, r maintenance.Retention, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			maintenance.Run(ctx, d, r)
		}
	}
}

func narrationConfig(ctx context.Context, p config.Provider) narration.Config {
	return narration.Config{
		Rate:     p.NarrationRate(ctx),
		Pitch:    p.NarrationPitch(ctx),
		Volume:   p.NarrationVolume(ctx),
		Voice:    p.NarrationVoice(ctx),
		Watchdog: p.NarrationWatchdog(ctx),
	}
}

// recordEvents mirrors flow events into the event log until ctx ends.
func recordEvents(ctx context.Context, ctrl *flow.Controller) {
	events, unsubscribe := ctrl.Subscribe(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == flow.EventState {
				continue
			}
			logging.LogEvent(eventLogEntry(ev))
		}
	}
}

func eventLogEntry(ev flow.Event) *logging.Event {
	e := &logging.Event{
		Timestamp: ev.At,
		Type:      string(ev.Type),
		Title:     string(ev.Stage),
		Summary:   ev.RunID,
	}
	switch ev.Type {
	case flow.EventLine:
		e.Summary = ev.Line
	case flow.EventRedirect:
		e.Summary = ev.URL
	}
	return e
}

func runServer(ctx context.Context, cfg *config.Config, l loop.Loop, ctrl *flow.Controller, engine *narration.Engine, synth *speech.Synth, cfgProv config.Provider, st store.Store, clips *cache.Clips, engineName string) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	busy := func() bool { return ctrl.Snapshot().Running }
	applied := func(ctx context.Context) {
		ncfg := narrationConfig(ctx, cfgProv)
		redirect := cfgProv.RedirectURL(ctx)
		l.Post(func() {
			engine.Configure(ncfg)
			ctrl.SetRedirectURL(redirect)
		})
	}

	srv := api.NewServer(cfg.Server.Address, api.Handlers{
		Flow:      api.NewFlowHandler(l, ctrl, st),
		Stream:    api.NewStreamHandler(ctrl),
		Narration: api.NewNarrationHandler(l, engine, synth, busy),
		Config:    api.NewConfigHandler(st, cfgProv, applied),
		Stats:     api.NewStatsHandler(clips, engineName),
	}, shutdownFunc)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
