// Package recovery serves the config-fallback portal: a minimal local
// web form that accepts a replacement API key after the server has
// rejected the stored one. Fallback is terminal for the running
// process; the only way out is the restart requested on acceptance.
package recovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const formHTML = `<html><body><h1>LumiRum Device Config</h1>
<p>Device is unauthorized. Please update API Key.</p>
<form action='/save' method='POST'>
API Key: <input type='text' name='apikey' size='70'><br><br>
<input type='submit' value='Save &amp; Reboot'>
</form></body></html>`

// KeyStore persists the replacement credential.
type KeyStore interface {
	StoreKey(key string) error
}

// Server is the recovery portal HTTP server.
type Server struct {
	addr       string
	keyLength  int
	store      KeyStore
	onAccepted func()
	httpServer *http.Server
}

// NewServer creates a recovery server. onAccepted is invoked after a
// key of the required length has been persisted; the app uses it to
// restart the process.
func NewServer(host string, port, keyLength int, store KeyStore, onAccepted func()) *Server {
	return &Server{
		addr:       fmt.Sprintf("%s:%d", host, port),
		keyLength:  keyLength,
		store:      store,
		onAccepted: onAccepted,
	}
}

// Run starts the portal. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleForm)
	mux.HandleFunc("/save", s.handleSave)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	log.Info().Str("addr", s.addr).Msg("Starting recovery portal")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Recovery portal shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Handler returns the portal's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleForm)
	mux.HandleFunc("/save", s.handleSave)
	return mux
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(formHTML))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad form", http.StatusBadRequest)
		return
	}

	key := strings.TrimSpace(r.PostFormValue("apikey"))
	if key == "" {
		http.Error(w, "Missing apikey", http.StatusBadRequest)
		return
	}

	if len(key) != s.keyLength {
		log.Warn().Int("length", len(key)).Int("required", s.keyLength).
			Msg("Rejected replacement API key of wrong length")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("<body>Invalid Key Length</body>"))
		return
	}

	if err := s.store.StoreKey(key); err != nil {
		log.Error().Err(err).Msg("Failed to persist replacement API key")
		http.Error(w, "Storage failure", http.StatusInternalServerError)
		return
	}

	log.Info().Msg("Replacement API key accepted, restarting")

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<body>Saved! Rebooting...</body>"))

	if s.onAccepted != nil {
		s.onAccepted()
	}
}
