// Package devserver es el backend de referencia de la consola: una
// implementación en memoria del contrato REST que la consola consume.
//
// No es el backend de producción. Existe para desarrollar y testear la
// consola de punta a punta sin infraestructura: levanta con un admin
// sembrado, aplica el mismo enforcement que el contrato promete (403/404) y
// produce los mismos payloads de error {code, message, detail}.
package devserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/dropDatabas3/rbacadm/internal/observability/logger"
	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// Options configura el devserver.
type Options struct {
	AdminEmail    string
	AdminPassword string

	// Rate limit para /auth/login.
	LoginLimit  int
	LoginWindow time.Duration
}

// Server implementa el contrato del backend RBAC en memoria.
type Server struct {
	store    *Store
	validate *validator.Validate
}

type ctxKeyActor struct{}

// actorFrom extrae el actor autenticado del contexto del request.
func actorFrom(ctx context.Context) (rbac.User, bool) {
	u, ok := ctx.Value(ctxKeyActor{}).(rbac.User)
	return u, ok
}

// New crea el server con su store sembrado.
func New(opts Options) (*Server, error) {
	if opts.AdminEmail == "" {
		opts.AdminEmail = "admin@localhost"
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = "admin"
	}
	store, err := NewStore(opts.AdminEmail, opts.AdminPassword)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:    store,
		validate: validator.New(),
	}, nil
}

// Store expone el store para seeds adicionales (tests, comando seed).
func (s *Server) Store() *Store {
	return s.store
}

// Handler arma el router chi completo.
func (s *Server) Handler(opts Options) http.Handler {
	if opts.LoginLimit == 0 {
		opts.LoginLimit = 10
	}
	if opts.LoginWindow == 0 {
		opts.LoginWindow = time.Minute
	}

	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(requestLogger)

	r.Handle("/metrics", registerMetrics(nil))

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(opts.LoginLimit, opts.LoginWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/auth/login", s.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/auth/profile", s.handleGetProfile)
		r.Put("/auth/profile", s.handleUpdateProfile)

		r.Get("/users", s.handleListUsers)
		r.Delete("/users/{id}", s.handleDeleteUser)
		r.Post("/users/assign-role", s.handleAssignRole)

		r.Get("/roles", s.handleListRoles)
		r.Post("/roles", s.handleCreateRole)
		r.Put("/roles/{id}", s.handleUpdateRole)
		r.Delete("/roles/{id}", s.handleDeleteRole)
	})

	return r
}

// requireAuth resuelve la credencial bearer y deja el actor en el contexto.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			WriteError(w, ErrUnauthorized)
			return
		}
		actor, ok := s.store.UserByToken(token)
		if !ok {
			WriteError(w, ErrUnauthorized.WithDetail("token desconocido o revocado"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyActor{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger loguea cada request con el logger scoped en el contexto.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := logger.With(
			logger.Component("devserver"),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
		)
		ctx := logger.ToContext(r.Context(), log)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		log.Debug("request served",
			logger.Status(rec.status),
			logger.Duration(time.Since(start)),
		)
	})
}
