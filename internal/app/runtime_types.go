package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/project-assistant/internal/config"
	"github.com/dwizi/project-assistant/internal/heartbeat"
	"github.com/dwizi/project-assistant/internal/safety"
	"github.com/dwizi/project-assistant/internal/scheduler"
	"github.com/dwizi/project-assistant/internal/store"
	"github.com/dwizi/project-assistant/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	store            *store.Store
	httpServer       *http.Server
	watcher          *watcher.Service
	scheduler        *scheduler.Service
	limiter          *safety.Policy
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}
