package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var ErrNoPort = errors.New("no port available")

// Server — health-check и (в режиме вебхука) приём апдейтов Telegram.
type Server struct {
	router chi.Router
	host   string
	ports  []string
	log    *zap.Logger
}

func New(host string, ports []string, log *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", handleHealth)
	r.Get("/healthz", handleHealth)

	return &Server{router: r, host: host, ports: ports, log: log.Named("http")}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Webhook вешает обработчик апдейтов на секретный путь.
func (s *Server) Webhook(path string, h http.Handler) {
	s.router.Method(http.MethodPost, path, h)
}

func (s *Server) Handler() http.Handler { return s.router }

// Listen пробует порты по порядку и возвращает первый свободный.
func (s *Server) Listen() (net.Listener, error) {
	for _, p := range s.ports {
		ln, err := net.Listen("tcp", net.JoinHostPort(s.host, p))
		if err == nil {
			return ln, nil
		}
		s.log.Warn("port busy, trying next", zap.String("port", p), zap.Error(err))
	}
	return nil, fmt.Errorf("%w: tried %v", ErrNoPort, s.ports)
}

// Serve работает до отмены ctx. Если ни один порт не занять, бот продолжает
// работать без HTTP: Serve просто ждёт ctx.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		s.log.Error("http server not started", zap.Error(err))
		<-ctx.Done()
		return nil
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
