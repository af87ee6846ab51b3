package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doc-clustering/clusterview/internal/api"
	"github.com/doc-clustering/clusterview/internal/config"
	"github.com/doc-clustering/clusterview/internal/session"
	"github.com/doc-clustering/clusterview/internal/storage"
	"github.com/doc-clustering/clusterview/internal/upload"
	"github.com/doc-clustering/clusterview/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// services bundles everything the HTTP server and the janitor share.
type services struct {
	screens *session.Manager
	uploads *upload.Manager
	blobs   *storage.LocalStore
}

// runServer serves the web client until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.AppConfig, configPath string, out io.Writer) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	log.SetLevel(parseLogLevel(cfg.Advanced.LogLevel))

	client := newBackendClient(cfg)

	blobs, err := storage.NewLocalStore(cfg.Storage.BlobDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	svc := &services{
		screens: session.NewManager(client, blobs, session.Options{
			Poll:       pollConfig(cfg),
			MaxScreens: cfg.Screens.MaxScreens,
		}),
		uploads: upload.NewManager(client),
		blobs:   blobs,
	}

	renderer, err := web.NewEmbeddedRenderer()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	e := newServer(cfg, renderer)

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Screens:  svc.screens,
		Files:    client,
		Blobs:    blobs,
		Uploads:  svc.uploads,
		SpoolDir: cfg.Storage.SpoolDirectory,
		Backend:  client.BaseURL(),
		Version:  Version,
	}))
	if err := web.RegisterStaticRoutes(e); err != nil {
		return fmt.Errorf("failed to register static routes: %w", err)
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(out, cfg, configPath, client.BaseURL())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		// Closing screens first ends hijacked WebSocket handlers, which
		// Shutdown does not wait for.
		svc.screens.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// e.Shutdown only knows echo's own server, not s
		return s.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		runJanitor(gctx, svc, cfg.CleanupInterval(), cfg.ScreenIdleTimeout(), cfg.JobMaxAge())
		return nil
	})

	return g.Wait()
}

// newServer builds the echo instance with the middleware stack from cfg.
func newServer(cfg *config.AppConfig, renderer echo.Renderer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = api.NewErrorHandler(strings.EqualFold(cfg.Advanced.LogLevel, "debug"))

	// Runs first so it sees the connection's own ResponseWriter
	e.Use(liftUploadDeadlines)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			return api.QuietRoute(c)
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	// Compression middleware
	if cfg.Advanced.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Skipper: func(c echo.Context) bool {
				req := c.Request()
				// Upgrades need the raw connection; file bodies are
				// already compressed or served with ranges.
				return req.Header.Get(echo.HeaderUpgrade) != "" ||
					strings.HasPrefix(req.URL.Path, "/blobs/") ||
					strings.HasPrefix(req.URL.Path, "/raw/")
			},
		}))
	}

	if cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}

	return e
}

// liftUploadDeadlines clears the server read and write deadlines for
// POST /upload. The body is spooled whole and the backend may then take up
// to backend.upload_timeout_seconds, both longer than the server timeouts;
// the backend call stays bounded by the client's upload timeout.
func liftUploadDeadlines(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.Method == http.MethodPost && req.URL.Path == "/upload" {
			rc := http.NewResponseController(c.Response().Writer)
			if err := rc.SetReadDeadline(time.Time{}); err != nil {
				log.Debugf("[Upload] Cannot clear read deadline: %v", err)
			}
			if err := rc.SetWriteDeadline(time.Time{}); err != nil {
				log.Debugf("[Upload] Cannot clear write deadline: %v", err)
			}
		}
		return next(c)
	}
}

// runJanitor reaps idle screens and finished upload jobs until ctx ends.
func runJanitor(ctx context.Context, svc *services, every, maxIdle, jobMaxAge time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reapOnce(svc, maxIdle, jobMaxAge)
		}
	}
}

func reapOnce(svc *services, maxIdle, jobMaxAge time.Duration) {
	if maxIdle > 0 {
		if n := svc.screens.CleanupIdle(maxIdle); n > 0 {
			log.Infof("[Janitor] Closed %d idle screens, %d blobs held", n, svc.blobs.Count())
		}
	}
	if jobMaxAge > 0 {
		if n := svc.uploads.CleanupOldJobs(jobMaxAge); n > 0 {
			log.Infof("[Janitor] Removed %d upload jobs", n)
		}
	}
}

func printBanner(w io.Writer, cfg *config.AppConfig, configPath, backendURL string) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║           clusterview                                     ║\n")
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Version:    %-45s║\n", Version)
	fmt.Fprintf(w, "║  Build Time: %-45s║\n", BuildTime)
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Config:    %-46s║\n", configPath)
	fmt.Fprintf(w, "║  Listen:    http://%-39s║\n", cfg.GetServerAddr())
	fmt.Fprintf(w, "║  Backend:   %-46s║\n", backendURL)
	fmt.Fprintf(w, "║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Fprintf(w, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(w, "\n")
}
