package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/NagiElgarhi/view-tours/internal/api"
	"github.com/NagiElgarhi/view-tours/pkg/audio"
	"github.com/NagiElgarhi/view-tours/pkg/config"
	"github.com/NagiElgarhi/view-tours/pkg/db"
	"github.com/NagiElgarhi/view-tours/pkg/db/maintenance"
	"github.com/NagiElgarhi/view-tours/pkg/discovery"
	"github.com/NagiElgarhi/view-tours/pkg/gateway"
	"github.com/NagiElgarhi/view-tours/pkg/imagesource"
	"github.com/NagiElgarhi/view-tours/pkg/llm"
	"github.com/NagiElgarhi/view-tours/pkg/llm/failover"
	"github.com/NagiElgarhi/view-tours/pkg/llm/gemini"
	"github.com/NagiElgarhi/view-tours/pkg/llm/openai"
	"github.com/NagiElgarhi/view-tours/pkg/logging"
	"github.com/NagiElgarhi/view-tours/pkg/narration"
	"github.com/NagiElgarhi/view-tours/pkg/probe"
	"github.com/NagiElgarhi/view-tours/pkg/prompt"
	"github.com/NagiElgarhi/view-tours/pkg/request"
	"github.com/NagiElgarhi/view-tours/pkg/speech"
	"github.com/NagiElgarhi/view-tours/pkg/speech/edgetts"
	"github.com/NagiElgarhi/view-tours/pkg/speech/sapi"
	"github.com/NagiElgarhi/view-tours/pkg/store"
	"github.com/NagiElgarhi/view-tours/pkg/tracker"
	"github.com/NagiElgarhi/view-tours/pkg/version"
	"github.com/NagiElgarhi/view-tours/pkg/wiki"
)

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", "configs/viewtours.yaml", "Path to config file")
	port       = flag.Int("port", 0, "Override the listen port from the config")
	trace      = flag.Bool("trace", false, "Enable high-frequency trace logging (per-frame events)")
)

func main() {
	flag.Parse()
	logging.EnableTrace = *trace

	// API keys may live in a .env next to the binary.
	_ = godotenv.Load()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

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
	if *port != 0 {
		appCfg.Server.Address = fmt.Sprintf("localhost:%d", *port)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	speech.SetLogPath(appCfg.Log.Speech.Path)

	slog.Info("ViewTours Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, dbConn, appCfg.Speech.CacheDir); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	tr := tracker.New()
	reqClient := request.New(st, tr, appCfg.Request)
	cfgProv := config.NewProvider(appCfg, st)

	llmProv, closeLLM, err := initLLM(appCfg, tr, reqClient)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM chain: %w", err)
	}
	defer closeLLM()

	promptMgr, err := prompt.NewManager("prompts")
	if err != nil {
		return fmt.Errorf("failed to initialize prompt manager: %w", err)
	}
	builder := prompt.NewBuilder(cfgProv, promptMgr)

	camMgr := imagesource.NewManager(time.Duration(appCfg.Discovery.CameraWarmup), true)
	defer camMgr.ReleaseAll()

	audioMgr := audio.New()
	defer audioMgr.Shutdown()
	restoreVolume(ctx, st, audioMgr, appCfg.Audio.Volume)

	engines := map[string]speech.Provider{
		"edge-tts":     edgetts.NewProvider(tr),
		"windows-sapi": sapi.NewProvider(),
	}
	narrator := narration.New(cfgProv, engines, "windows-sapi", audioMgr, appCfg.Speech.CacheDir)

	grounder := wiki.NewClient(reqClient, appCfg.Wiki)

	orch := discovery.New(cfgProv, builder, gateway.New(llmProv), &cameraSource{mgr: camMgr}, narrator, grounder)
	defer orch.Shutdown()

	if err := runProbes(ctx, appCfg, llmProv, engines, grounder, cfgProv.Locale(ctx)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	return runServer(ctx, appCfg, orch, camMgr, audioMgr, cfgProv, st, tr)
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initLLM builds the provider fallback chain in configured order. The
// returned closer releases every provider that holds a connection.
func initLLM(cfg *config.Config, tr *tracker.Tracker, rc *request.Client) (llm.Provider, func(), error) {
	var providers []llm.Provider
	var names []string
	var closers []func()

	for _, name := range cfg.LLM.Fallback {
		pcfg, ok := cfg.LLM.Providers[name]
		if !ok {
			return nil, nil, fmt.Errorf("fallback entry %q has no provider config", name)
		}
		switch pcfg.Type {
		case "gemini":
			client, err := gemini.NewClient(pcfg, cfg.LLM, cfg.Log.LLM.Path, tr)
			if err != nil {
				return nil, nil, fmt.Errorf("provider %q: %w", name, err)
			}
			providers = append(providers, client)
			closers = append(closers, client.Close)
		case "openai":
			client, err := openai.NewClient(pcfg, "https://api.openai.com/v1", rc)
			if err != nil {
				return nil, nil, fmt.Errorf("provider %q: %w", name, err)
			}
			providers = append(providers, client)
		default:
			return nil, nil, fmt.Errorf("provider %q has unknown type %q", name, pcfg.Type)
		}
		names = append(names, name)
	}

	chain, err := failover.New(providers, names, nil, cfg.Log.LLM.Path, cfg.Log.LLM.Path != "")
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return chain, closeAll, nil
}

func restoreVolume(ctx context.Context, st store.StateStore, audioMgr audio.Service, fallback float64) {
	vol := fallback
	if volStr, ok := st.GetState(ctx, config.KeyVolume); ok && volStr != "" {
		if _, err := fmt.Sscanf(volStr, "%f", &vol); err != nil {
			vol = fallback
		}
	}
	audioMgr.SetVolume(vol)
}

func runProbes(ctx context.Context, cfg *config.Config, llmProv llm.Provider, engines map[string]speech.Provider, grounder *wiki.Client, locale string) error {
	probes := []probe.Probe{
		probe.LLM(llmProv),
		probe.DataDir("data"),
	}
	if engine, ok := engines[cfg.Speech.Engine]; ok {
		probes = append(probes, probe.Speech(cfg.Speech.Engine, engine))
	}
	if cfg.Wiki.Enabled {
		probes = append(probes, probe.Grounding(func(ctx context.Context) error {
			_, err := grounder.Subject(ctx, "Earth", locale)
			return err
		}))
	}
	return probe.AnalyzeResults(probe.Run(ctx, probes))
}

func runServer(ctx context.Context, cfg *config.Config, orch *discovery.Orchestrator, camMgr *imagesource.Manager, audioMgr audio.Service, cfgProv config.Provider, st store.StateStore, tr *tracker.Tracker) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewDiscoveryHandler(orch, camMgr),
		api.NewAudioHandler(audioMgr),
		api.NewSettingsHandler(cfgProv, st),
		api.NewStatsHandler(tr, cfg.LLM.Fallback),
		shutdownFunc,
	)
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
	// Preview frames and status polls arrive several times a second and
	// would drown the request log; they only show up with --trace.
	chatty := map[string]bool{
		"/api/discover/frame": true,
		"/api/session":        true,
		"/api/audio/status":   true,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if chatty[r.URL.Path] {
			logging.Trace(logging.RequestLogger, "Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
			return
		}
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// cameraSource adapts the concrete stream manager to the interface the
// orchestrator consumes.
type cameraSource struct {
	mgr *imagesource.Manager
}

func (c *cameraSource) Acquire(ctx context.Context) (discovery.Stream, error) {
	s, err := c.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *cameraSource) DecodeUpload(r io.Reader) ([]byte, error) {
	return c.mgr.DecodeUpload(r)
}

func (c *cameraSource) ReleaseAll() {
	c.mgr.ReleaseAll()
}
