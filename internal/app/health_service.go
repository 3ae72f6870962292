package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/config"
)

// HealthService provides HTTP health check and status endpoints.
type HealthService struct {
	cfg      *config.Config
	clock    *Clock
	control  *ControlService
	recovery *RecoveryService
	server   *http.Server
}

func NewHealthService(cfg *config.Config, clock *Clock, control *ControlService, recovery *RecoveryService) *HealthService {
	return &HealthService{
		cfg:      cfg,
		clock:    clock,
		control:  control,
		recovery: recovery,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.Host, s.cfg.Healthcheck.Port)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := s.control.Snapshot()
		resp := map[string]interface{}{
			"mode":             st.Mode.String(),
			"light_is_on":      st.LightOn,
			"brightness":       st.BrightnessPercent,
			"color_temp":       st.ColorTempK,
			"config_fallback":  s.recovery.Active(),
			"device_time":      s.clock.Now().Format(time.RFC3339),
			"motion_last_seen": st.MotionLastSeenAt.Format(time.RFC3339),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	})

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}
