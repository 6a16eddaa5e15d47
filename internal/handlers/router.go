package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appMiddleware "github.com/keepwaifu/backend/internal/middleware"
	"github.com/keepwaifu/backend/internal/services"
)

type RouterOptions struct {
	JWTSecret string
	AdminRole string
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter mounts every route on a chi router.
func NewRouter(core *services.Core, opts RouterOptions) http.Handler {
	users := NewUserHandler(core)
	leaderboard := NewLeaderboardHandler(core)
	admin := NewAdminHandler(core)
	stream := NewStreamHandler(core)

	r := chi.NewRouter()

	if opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(appMiddleware.JWTIdentity(opts.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/user_info", users.UserInfo)
		r.Post("/user_info", users.UserInfo)
		r.Get("/my_collection", users.MyCollection)
		r.Get("/top", leaderboard.Top)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireRole(opts.AdminRole))

			r.Post("/charms", admin.UpdateCharms)
			r.Get("/inspect_user", admin.InspectUser)
			r.Post("/rebuild_leaderboard", leaderboard.Rebuild)
		})
	})

	r.Get("/stream/charms", stream.ServeSSE)
	r.Get("/ws/charms", stream.ServeWS)

	return r
}
