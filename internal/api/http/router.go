package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortly/internal/models"
)

type LinkService interface {
	CreateLink(ctx context.Context, targetURL, title string) (*models.Link, error)
	ResolveLink(ctx context.Context, shortCode string) (string, error)
	ListLinks(ctx context.Context, cursor string, limit int) ([]*models.Link, string, error)
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter wires the public surface: the JSON management API under /api
// and the bare redirect route at the root.
func NewRouter(logger *httplog.Logger, linkSvc LinkService, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*"},
			AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))

		validate := getValidate()

		r.Get("/ping", handlePing)
		r.Post("/links", handleCreateLink(linkSvc, validate, baseURL))
		r.Get("/links", handleListLinks(linkSvc))
	})

	r.Get("/{shortCode}", handleRedirect(linkSvc))

	return r
}
