package handlers

import (
	"context"
	"net/http"
	"time"

	"taskManager/internal/handlers/dto"
	"taskManager/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = 2 * time.Second

// Probe проверяет одну зависимость: хранилище, redis и т.п.
type Probe struct {
	Name  string
	Check func(context.Context) error
}

type HealthHandler struct {
	name    string
	version string
	probes  []Probe
}

func NewHealthHandler(name, version string, probes ...Probe) *HealthHandler {
	return &HealthHandler{name: name, version: version, probes: probes}
}

func (h *HealthHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.InfoResponse{
		Name:    h.name,
		Version: h.version,
		Status:  "running",
	})
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	results := make([]string, len(h.probes))

	// без общего контекста отмены: каждая проба должна дать свой результат
	var g errgroup.Group
	for i, p := range h.probes {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()

			if err := p.Check(ctx); err != nil {
				results[i] = err.Error()
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	err := g.Wait()

	resp := dto.HealthResponse{
		Status:     "healthy",
		Version:    h.version,
		Components: make(map[string]string, len(h.probes)),
	}
	for i, p := range h.probes {
		resp.Components[p.Name] = results[i]
	}

	code := http.StatusOK
	if err != nil {
		logger.Warn("HTTP: Проверка здоровья не пройдена", zap.Error(err))
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
