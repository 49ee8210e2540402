package http

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fleamarket/frontend/shared/api"
	sessioncontext "fleamarket/frontend/shared/context"
	"fleamarket/infrastructure/checkout"
	"fleamarket/infrastructure/rbac"
	"fleamarket/infrastructure/session"
	"fleamarket/models"
)

var ShutdownTimeout = 2 * time.Second

// Server bundles dependencies and route wiring.
type Server struct {
	Addr   string
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	Env  *api.Env
	Rbac *rbac.Rbac
}

// NewServer creates the checkout API server.
func NewServer(addr string, env *api.Env, r *rbac.Rbac) *Server {
	s := &Server{
		Addr:   addr,
		router: chi.NewRouter(),
		Env:    env,
		Rbac:   r,
		server: &http.Server{
			MaxHeaderBytes:    1 << 20,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	// Secure headers first.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(middleware.RequestID)
	s.router.Use(s.RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.CSRFMiddleware)

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		s.RegisterClerkRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(s.AuthenticateMiddleware)
			s.RegisterItemRoutes(r)
			s.RegisterReceiptRoutes(r)
			s.RegisterCompensationRoutes(r)
			s.RegisterVendorRoutes(r)
			s.RegisterReportRoutes(r)
			s.RegisterStaffRoutes(r)
		})
	})

	s.server.Handler = s.router
	return s
}

// RequestLogger logs one line per request with zap.
func (s *Server) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				s.Env.Log.Error("request", fields...)
				return
			}
			s.Env.Log.Info("request", fields...)
		}()
		next.ServeHTTP(ww, r)
	})
}

// AuthenticateMiddleware loads the clerk session and applies RBAC checks.
func (s *Server) AuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil || cookie.Value == "" {
			s.Env.WriteError(w, r, &checkout.Error{Kind: checkout.KindAuthFailed, Message: "Clerk is not logged in."})
			return
		}

		token := cookie.Value
		sess, ok := s.resolveSession(r.Context(), token)
		if !ok || sess.Expired() {
			s.Env.Sessions.Delete(token)
			if ok {
				if err := session.Delete(r.Context(), s.Env.DB, token); err != nil {
					s.Env.Log.Error("cannot delete session from DB", zap.String("session_id", token), zap.Error(err))
				}
			}
			http.SetCookie(w, session.SessionCookie("", -1, s.Env.SecureCookie))
			s.Env.WriteError(w, r, &checkout.Error{Kind: checkout.KindAuthFailed, Message: "Clerk is not logged in."})
			return
		}

		if !s.Rbac.Allowed(sess.UserRoles, r.URL.Path, r.Method) {
			s.Env.Log.Warn("rbac denied",
				zap.Int64("clerk_id", sess.ClerkID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))
			s.Env.WriteError(w, r, &checkout.Error{Kind: checkout.KindAuthFailed, Message: "Overseer permission required."})
			return
		}

		ctx := sessioncontext.NewContextWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolveSession(ctx context.Context, token string) (models.ClerkSession, bool) {
	if cached, found := s.Env.Sessions.Get(token); found {
		return cached, true
	}

	sess, err := session.Load(ctx, s.Env.DB, token)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.Env.Log.Error("load session from db failed", zap.String("session_id", token), zap.Error(err))
		}
		return models.ClerkSession{}, false
	}

	s.Env.Sessions.Put(sess)
	return sess, true
}

// Handler exposes the router for in-process servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	var err error
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go s.server.Serve(s.ln)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.ln == nil {
		return fmt.Errorf("HTTP server has not been started or is already stopped")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	s.ln = nil
	return nil
}
