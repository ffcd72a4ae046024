package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/catalog"
	"fabrics-catalog-service/internal/domain"
	"fabrics-catalog-service/internal/reservation"
)

// CatalogService is the read side of the catalog. *catalog.Service implements it.
type CatalogService interface {
	Hierarchy(ctx context.Context) (*catalog.Hierarchy, domain.Snapshot, error)
	Product(ctx context.Context, id string) (*domain.Product, error)
}

// ReservationCreator creates reservations. *reservation.Service implements it.
type ReservationCreator interface {
	Create(ctx context.Context, req reservation.Request) (domain.Reservation, error)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog      CatalogService
	reservations ReservationCreator
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(cs CatalogService, rc ReservationCreator) *HTTPHandler {
	return &HTTPHandler{catalog: cs, reservations: rc}
}

// --- Helpers ---

// Envelope is the shape of every REST response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Envelope{Success: false, Message: message})
}

func respondWithData(w http.ResponseWriter, code int, data any) {
	respondWithJSON(w, code, Envelope{Success: true, Data: data})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.WithError(err).Error("api: failed to encode JSON response")
		}
	}
}

// respondWithCatalogError maps catalog failures to HTTP statuses.
func respondWithCatalogError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrDataSource):
		log.WithError(err).WithField("op", op).Error("api: catalog source failed")
		respondWithError(w, http.StatusBadGateway, "Catalog source unavailable")
	default:
		log.WithError(err).WithField("op", op).Error("api: catalog operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to load catalog")
	}
}

// --- Category Handlers ---

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	hier, _, err := h.catalog.Hierarchy(r.Context())
	if err != nil {
		respondWithCatalogError(w, "ListCategories", err)
		return
	}
	respondWithData(w, http.StatusOK, hier.All())
}

func (h *HTTPHandler) ListMainCategories(w http.ResponseWriter, r *http.Request) {
	hier, _, err := h.catalog.Hierarchy(r.Context())
	if err != nil {
		respondWithCatalogError(w, "ListMainCategories", err)
		return
	}
	respondWithData(w, http.StatusOK, hier.MainCategories())
}

func (h *HTTPHandler) GetCategoryTree(w http.ResponseWriter, r *http.Request) {
	hier, _, err := h.catalog.Hierarchy(r.Context())
	if err != nil {
		respondWithCatalogError(w, "GetCategoryTree", err)
		return
	}
	respondWithData(w, http.StatusOK, hier.BuildTree())
}

func (h *HTTPHandler) GetCategoryByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "categoryId")
	hier, _, err := h.catalog.Hierarchy(r.Context())
	if err != nil {
		respondWithCatalogError(w, "GetCategoryByID", err)
		return
	}
	c, ok := hier.Category(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Category not found")
		return
	}
	respondWithData(w, http.StatusOK, c)
}

func (h *HTTPHandler) ListSubCategories(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "categoryId")
	hier, _, err := h.catalog.Hierarchy(r.Context())
	if err != nil {
		respondWithCatalogError(w, "ListSubCategories", err)
		return
	}
	if _, ok := hier.Category(id); !ok {
		respondWithError(w, http.StatusNotFound, "Category not found")
		return
	}
	respondWithData(w, http.StatusOK, hier.SubCategories(id))
}

// ListCategoryProducts lists products of a category. includeChildren defaults to true
// for main categories and false for sub categories.
func (h *HTTPHandler) ListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "categoryId")
	hier, snap, err := h.catalog.Hierarchy(r.Context())
	if err != nil {
		respondWithCatalogError(w, "ListCategoryProducts", err)
		return
	}
	c, ok := hier.Category(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Category not found")
		return
	}

	includeChildren := c.IsMain()
	if raw := r.URL.Query().Get("includeChildren"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid includeChildren: must be true or false")
			return
		}
		includeChildren = v
	}
	respondWithData(w, http.StatusOK, hier.ProductsOf(snap.Products, id, includeChildren))
}

// --- Product Handlers ---

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	_, snap, err := h.catalog.Hierarchy(r.Context())
	if err != nil {
		respondWithCatalogError(w, "ListProducts", err)
		return
	}
	respondWithData(w, http.StatusOK, snap.Products)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Product(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		respondWithCatalogError(w, "GetProductByID", err)
		return
	}
	respondWithData(w, http.StatusOK, p)
}

// --- Reservation Handlers ---

func (h *HTTPHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var input reservation.Request
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	created, err := h.reservations.Create(r.Context(), input)
	if err != nil {
		var verr *reservation.ValidationError
		switch {
		case errors.As(err, &verr):
			respondWithJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "Validation failed", Data: verr.Fields})
		case errors.Is(err, reservation.ErrCreateFailed):
			respondWithError(w, http.StatusBadGateway, "Failed to create reservation")
		default:
			log.WithError(err).Error("api: CreateReservation failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to create reservation")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, Envelope{
		Success: true,
		Message: "Reservation created",
		Data:    map[string]string{"reservationId": created.ID},
	})
}

// --- Route Registration ---

// RegisterRoutes sets up the REST routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Get("/main", h.ListMainCategories)
			r.Get("/tree", h.GetCategoryTree)
			r.Route("/{categoryId}", func(r chi.Router) {
				r.Get("/", h.GetCategoryByID)
				r.Get("/subcategories", h.ListSubCategories)
				r.Get("/products", h.ListCategoryProducts)
			})
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{productId}", h.GetProductByID)
		})
	})
	r.Post("/api/v1/reservations", h.CreateReservation)
}
