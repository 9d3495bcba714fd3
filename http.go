package comelithkbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brutella/hap/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

const (
	devicesCacheKey = "devices"
	devicesCacheTTL = 2 * time.Second
)

type statusServer struct {
	platform *Platform
	cache    *cache.Cache
}

func newStatusServer(p *Platform) *statusServer {
	return &statusServer{
		platform: p,
		cache:    cache.New(devicesCacheTTL, 10*devicesCacheTTL),
	}
}

func (s *statusServer) router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/", s.index)
	router.Get("/devices", s.devices)
	router.Get("/devices/{category}/{id}", s.device)

	return router
}

type statusResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Online    bool   `json:"online"`
	Keepalive string `json:"keepalive"`
	Devices   int    `json:"devices"`
}

func (s *statusServer) index(w http.ResponseWriter, r *http.Request) {
	n := 0
	if reg := s.platform.Registry(); reg != nil {
		n = reg.Len()
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Name:      s.platform.bridge.A.Info.Name.Value(),
		Version:   firmware,
		Online:    s.platform.bridge.Settings.Online.Value() == 1,
		Keepalive: s.platform.KeepaliveState().String(),
		Devices:   n,
	})
}

func (s *statusServer) devices(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.Get(devicesCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	snapshots := []DeviceSnapshot{}
	if reg := s.platform.Registry(); reg != nil {
		snapshots = reg.Snapshots()
	}
	s.cache.SetDefault(devicesCacheKey, snapshots)
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *statusServer) device(w http.ResponseWriter, r *http.Request) {
	category := comelit.DeviceType(chi.URLParam(r, "category"))
	id := chi.URLParam(r, "id")

	reg := s.platform.Registry()
	if reg == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "not started"})
		return
	}

	snap, err := reg.Snapshot(category, id)
	if errors.Is(err, ErrUnknownDevice) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug.Printf("status server: %s", err.Error())
	}
}

// HTTPServer serves the device states on addr until ctx is done
func HTTPServer(ctx context.Context, addr string, p *Platform) error {
	srv := &http.Server{
		Handler:      newStatusServer(p).router(),
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errc := make(chan error, 1)
	log.Info.Printf("starting http service at %s", addr)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	log.Info.Printf("stopping http service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
