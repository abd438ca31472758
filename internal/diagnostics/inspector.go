package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InspectPath is where the inspector serves its snapshot.
const InspectPath = "/debug/inspect"

// Probe returns a JSON-encodable view of some live component.
type Probe func() any

// Inspector is a registry of live components, handed explicitly to the
// services that want to be inspectable.
type Inspector struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

// NewInspector creates an empty registry.
func NewInspector() *Inspector {
	return &Inspector{probes: make(map[string]Probe)}
}

// Register adds or replaces a probe.
func (i *Inspector) Register(name string, probe Probe) {
	if i == nil || probe == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.probes[name] = probe
}

// Unregister removes a probe.
func (i *Inspector) Unregister(name string) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.probes, name)
}

// Names lists registered probes in sorted order.
func (i *Inspector) Names() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := make([]string, 0, len(i.probes))
	for name := range i.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot evaluates every probe.
func (i *Inspector) Snapshot() map[string]any {
	i.mu.RLock()
	probes := make(map[string]Probe, len(i.probes))
	for name, p := range i.probes {
		probes[name] = p
	}
	i.mu.RUnlock()

	out := make(map[string]any, len(probes))
	for name, p := range probes {
		out[name] = p()
	}
	return out
}

// ServeHTTP writes the snapshot as JSON. A name query parameter restricts it
// to one probe.
func (i *Inspector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := i.Snapshot()
	var body any = snapshot
	if name := r.URL.Query().Get("name"); name != "" {
		v, ok := snapshot[name]
		if !ok {
			http.Error(w, "unknown probe", http.StatusNotFound)
			return
		}
		body = v
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// Serve exposes the inspector on addr until ctx is cancelled.
func (i *Inspector) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(InspectPath, i)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("inspector listening", zap.String("address", addr), zap.String("path", InspectPath))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
