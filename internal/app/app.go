package app

import (
	"context"
	"errors"
	"facestream/internal/capture"
	"facestream/internal/config"
	"facestream/internal/detection"
	"facestream/internal/dispatch"
	"facestream/internal/display"
	"facestream/internal/gate"
	"facestream/internal/inbound"
	"facestream/internal/link"
	"facestream/internal/logger"
	"facestream/internal/metrics"
	"facestream/internal/region"
	"facestream/internal/render"
	"facestream/internal/routes"
	"facestream/internal/status"
	"facestream/internal/viewer"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config    *config.Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	sessionID string
	display   *display.State
	reporter  status.Reporter
	hub       *viewer.Hub
	machine   *link.Machine
	detector  *detection.DNNDetector
	canvas    *render.Canvas
	window    *render.WindowSink
	loop      *dispatch.Loop
}

// NewApp wires one streaming session from the environment.
func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)
	m := metrics.New()
	sessionID := uuid.NewString()

	state := display.New()
	hub := viewer.NewHub(sessionID, log, m)
	reporter := status.Multi{status.NewLogReporter(log), hub}

	handler := inbound.NewHandler(state, reporter, log, m)
	machine, err := link.New(link.Options{
		URL:       cfg.ClassifierURL,
		Header:    http.Header{"X-Session-Id": []string{sessionID}},
		Policy:    link.DefaultPolicy,
		OnMessage: handler.HandleMessage,
		Reporter:  reporter,
		Logger:    log,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("configure classifier link: %w", err)
	}

	detector, err := detection.NewDNNDetector(cfg.DetectorModelPath, cfg.DetectorConfigPath, log)
	if err != nil {
		return nil, fmt.Errorf("load face detector: %w", err)
	}
	if err := detector.SetOptions(detection.Options{Model: cfg.DetectorModel, MinDetectionConfidence: cfg.MinDetectionConfidence}); err != nil {
		detector.Close()
		return nil, fmt.Errorf("configure face detector: %w", err)
	}

	sinks := []render.Sink{hub}
	var window *render.WindowSink
	if cfg.ShowWindow {
		window = render.NewWindowSink("facestream")
		sinks = append(sinks, window)
	}
	canvas := render.NewCanvas(log, sinks...)

	loop := dispatch.NewLoop(dispatch.Options{
		Surface:   canvas,
		Display:   state,
		Extractor: region.NewExtractor(cfg.JPEGQuality, log, m),
		Link:      machine,
		Gate:      gate.New(gate.DefaultInterval),
		Logger:    log,
		Metrics:   m,
	})
	detector.OnResults(loop.HandleResults)

	return &App{
		config:    cfg,
		logger:    log,
		metrics:   m,
		sessionID: sessionID,
		display:   state,
		reporter:  reporter,
		hub:       hub,
		machine:   machine,
		detector:  detector,
		canvas:    canvas,
		window:    window,
		loop:      loop,
	}, nil
}

// Run blocks until ctx is cancelled or the session ends. It must be called
// from the main goroutine when the preview window is enabled.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	go a.hub.Run(ctx)
	server := a.startServer()

	fmt.Printf("🚀 Face stream session %s\n", a.sessionID)
	fmt.Printf("🧠 Classifier: %s\n", a.config.ClassifierURL)
	fmt.Printf("📷 Camera: %s\n", a.config.CameraDevice)
	if server != nil {
		fmt.Printf("📍 Viewer: http://localhost:%d/api/view\n", a.config.ViewerPort)
	}

	source, err := capture.Acquire(ctx, a.config.CameraDevice, capture.DefaultConstraints, a.logger)
	if err != nil {
		a.reporter.Report(status.Status{
			Kind:    status.KindFatal,
			Message: fmt.Sprintf("%v. Check CAMERA_DEVICE and that no other program holds the camera.", err),
			Time:    time.Now(),
		})
		a.shutdown(server)
		return err
	}
	defer source.Close()

	a.machine.Connect()

	err = source.Run(ctx, a.detector)
	a.shutdown(server)
	if errors.Is(err, capture.ErrCaptureLost) {
		a.reporter.Report(status.Status{Kind: status.KindFatal, Message: err.Error(), Time: time.Now()})
	}
	return err
}

func (a *App) startServer() *http.Server {
	if a.config.ViewerPort == 0 {
		return nil
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", a.config.ViewerPort),
		Handler: routes.SetupRoutes(routes.Deps{
			SessionID: a.sessionID,
			Hub:       a.hub,
			Link:      a.machine,
			Display:   a.display,
			Metrics:   a.metrics,
			Logger:    a.logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Viewer server stopped: %v", err)
		}
	}()
	return server
}

func (a *App) shutdown(server *http.Server) {
	a.machine.Shutdown()
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		a.logger.Warning("Viewer server shutdown: %v", err)
	}
}

func (a *App) close() {
	if err := a.detector.Close(); err != nil {
		a.logger.Warning("Failed to close detector: %v", err)
	}
	a.canvas.Close()
	if a.window != nil {
		a.window.Close()
	}
}
