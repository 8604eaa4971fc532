package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortly/internal/database"
	"github.com/vadimbarashkov/shortly/internal/models"
	"github.com/vadimbarashkov/shortly/internal/service"
	"github.com/vadimbarashkov/shortly/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

type createLinkRequest struct {
	TargetURL string `json:"targetUrl" validate:"required"`
	Title     string `json:"title" validate:"omitempty,max=256"`
}

type linkResponse struct {
	Code      string    `json:"code"`
	ShortURL  string    `json:"shortUrl,omitempty"`
	TargetURL string    `json:"targetUrl"`
	Title     string    `json:"title,omitempty"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"createdAt"`
}

func toLinkResponse(link *models.Link, baseURL string) linkResponse {
	resp := linkResponse{
		Code:      link.ShortCode,
		TargetURL: link.TargetURL,
		Title:     link.Title,
		Clicks:    link.ClickCount,
		CreatedAt: link.CreatedAt,
	}

	if baseURL != "" {
		resp.ShortURL = strings.TrimRight(baseURL, "/") + "/" + link.ShortCode
	}

	return resp
}

type listLinksResponse struct {
	Links      []linkResponse `json:"links"`
	NextCursor string         `json:"nextCursor,omitempty"`
	HasMore    bool           `json:"hasMore"`
}

func handleCreateLink(svc LinkService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleCreateLink"

	return func(w http.ResponseWriter, r *http.Request) {
		var req createLinkRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "targetUrl" {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidTargetURLResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		link, err := svc.CreateLink(r.Context(), req.TargetURL, req.Title)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidTargetURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidTargetURLResponse)
			case errors.Is(err, service.ErrUnsafeTargetURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.UnsafeTargetURLResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, toLinkResponse(link, baseURL))
	}
}

func handleListLinks(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleListLinks"

	return func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
				return
			}
			limit = n
		}

		links, nextCursor, err := svc.ListLinks(r.Context(), cursor, limit)
		if err != nil {
			if errors.Is(err, database.ErrInvalidCursor) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidCursorResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		resp := listLinksResponse{
			Links:   make([]linkResponse, 0, len(links)),
			HasMore: nextCursor != "",
		}
		resp.NextCursor = nextCursor

		for _, link := range links {
			resp.Links = append(resp.Links, toLinkResponse(link, ""))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, resp)
	}
}

func handleRedirect(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		target, err := svc.ResolveLink(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.NotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, target, http.StatusFound)
	}
}
