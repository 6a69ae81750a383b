// ambientlog — continuous audio capture and annotation service.
//
// ambientlog records fixed-duration chunks from the local microphone,
// transcribes each chunk through an OpenAI-compatible speech-to-text API,
// asks a chat model to annotate the transcript against the running
// conversation, appends every transcript/annotation pair to an append-only
// journal, and streams new records live to connected browsers over SSE.
package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jwhitfield/ambientlog/internal/capture"
	"github.com/jwhitfield/ambientlog/internal/config"
	"github.com/jwhitfield/ambientlog/internal/history"
	"github.com/jwhitfield/ambientlog/internal/httputil"
	"github.com/jwhitfield/ambientlog/internal/journal"
	"github.com/jwhitfield/ambientlog/internal/openai"
	"github.com/jwhitfield/ambientlog/internal/ratelimit"
	"github.com/jwhitfield/ambientlog/internal/session"
	"github.com/jwhitfield/ambientlog/internal/tlscert"
	"github.com/jwhitfield/ambientlog/internal/watch"
)

const version = "0.3.1"

//go:embed all:web
var webFS embed.FS

func main() {
	// --- CLI flags ---
	// Priority: CLI flag > environment variable > default
	var (
		flagPort    = flag.Int("port", 0, "Server port (default: 8080)")
		flagHost    = flag.String("host", "", "Bind address (default: 0.0.0.0)")
		flagJournal = flag.String("journal", "", "Append-only journal file path")
		flagChunk   = flag.Int("chunk-seconds", 0, "Seconds of audio per capture chunk (default: 5)")
		flagVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *flagVersion {
		fmt.Println("ambientlog", version)
		return
	}

	cfg := config.Load()
	if *flagPort > 0 {
		cfg.Port = *flagPort
	}
	if *flagHost != "" {
		cfg.Host = *flagHost
	}
	if *flagJournal != "" {
		cfg.JournalPath = *flagJournal
	}
	if *flagChunk > 0 {
		cfg.ChunkSeconds = *flagChunk
	}

	// --- Logger setup ---
	// All output goes to stdout so it's visible in journalctl, docker logs,
	// etc. If AMBIENTLOG_LOG_DIR is set, also tee into a rotating file.
	var logWriter io.Writer = os.Stdout
	if cfg.LogDir != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "ambientlog.log"),
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		logWriter = io.MultiWriter(os.Stdout, rotator)
	}

	var logger *slog.Logger
	if cfg.LogFormat == "json" {
		logger = slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: slog.LevelInfo}))
	} else {
		logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		logger.Warn("invalid AMBIENTLOG_OPENAI_BASE_URL — must start with http:// or https://", "url", cfg.BaseURL)
	}

	// --- Pipeline wiring ---
	jnl := journal.New(cfg.JournalPath, logger)
	hist := history.New(cfg.HistoryMax)
	client := openai.New(cfg.BaseURL, cfg.APIKey, cfg.WhisperModel, cfg.ChatModel, logger)
	ctrl := session.NewController(
		logger,
		&capture.ArecordRecorder{},
		client,
		client,
		hist,
		jnl,
		time.Duration(cfg.ChunkSeconds)*time.Second,
		cfg.SystemPrompt,
	)

	var watcher *watch.Watcher
	if cfg.WatchDir != "" {
		watcher = watch.New(cfg.WatchDir, client, jnl, logger)
		if err := watcher.Start(); err != nil {
			logger.Error("drop folder watcher failed to start", "dir", cfg.WatchDir, "error", err)
			watcher = nil
		}
	}

	// --- Routes ---
	mux := http.NewServeMux()

	mux.HandleFunc("/api/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w, r, logger, http.MethodPost)
			return
		}
		if err := ctrl.Start(); err != nil {
			// Not a failure — the defined alternate outcome of a duplicate start.
			httputil.JSON(w, map[string]string{"status": "already active"})
			return
		}
		httputil.JSON(w, map[string]string{"status": "started"})
	})

	mux.HandleFunc("/api/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w, r, logger, http.MethodPost)
			return
		}
		ctrl.Stop()
		httputil.JSON(w, map[string]string{"status": "stopped"})
	})

	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, ctrl.State())
	})

	mux.HandleFunc("/api/log", func(w http.ResponseWriter, r *http.Request) {
		data, err := jnl.ReadAll()
		if err != nil {
			httputil.Error(w, r, logger, http.StatusInternalServerError, "journal read failed", err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(data)
	})

	mux.HandleFunc("/api/live", jnl.SSEHandler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, map[string]any{
			"status":      "ok",
			"version":     version,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"active":      ctrl.State().Active,
			"journal":     jnl.Path(),
			"subscribers": jnl.SubscriberCount(),
			"watch_dir":   cfg.WatchDir,
		})
	})

	// --- Static control page ---
	webSub, err := fs.Sub(webFS, "web")
	if err != nil {
		logger.Error("failed to load embedded web files", "error", err)
		os.Exit(1)
	}
	mux.Handle("/", http.FileServer(http.FS(webSub)))

	// --- Middleware ---
	secure := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}

	accessLog := func(next http.Handler) http.Handler {
		if !cfg.AccessLog {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote", r.RemoteAddr,
			)
		})
	}

	limiter := ratelimit.New(cfg.RateLimit, time.Minute, strings.Split(cfg.RateAllow, ","))
	if cfg.RateLimit > 0 {
		go func() {
			for {
				time.Sleep(5 * time.Minute)
				limiter.Prune(10 * time.Minute)
			}
		}()
	}

	// --- Server ---
	server := &http.Server{
		Addr:        cfg.ListenAddr(),
		Handler:     accessLog(limiter.Middleware(secure(mux))),
		ReadTimeout: 60 * time.Second,
		// SSE streams are long-lived; no write timeout on purpose.
		IdleTimeout: 120 * time.Second,
	}

	proto := "http"
	if cfg.EnableTLS {
		certDir := filepath.Join(os.Getenv("HOME"), ".config", "ambientlog", "tls")
		tlsConfig, err := tlscert.GenerateOrLoad(certDir, nil, logger)
		if err != nil {
			logger.Error("TLS setup failed, falling back to HTTP", "error", err)
		} else {
			server.TLSConfig = tlsConfig
			proto = "https"
		}
	}

	logger.Info("ambientlog starting",
		"addr", cfg.ListenAddr(),
		"proto", proto,
		"journal", cfg.JournalPath,
		"chunk_seconds", cfg.ChunkSeconds,
		"history_max", cfg.HistoryMax,
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err error
		if proto == "https" {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down")

	// Let an in-flight cycle finish, then stop taking requests.
	ctrl.Stop()
	waitCtx, cancelWait := context.WithTimeout(context.Background(), 15*time.Second)
	if err := ctrl.Wait(waitCtx); err != nil {
		logger.Warn("capture loop still running at shutdown", "error", err)
	}
	cancelWait()

	if watcher != nil {
		watcher.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("goodbye")
}
