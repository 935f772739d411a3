package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/analytics"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
)

type AnalyticsHandler struct {
	service analytics.Service
	now     func() time.Time
}

func NewAnalyticsHandler(service analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, now: time.Now}
}

func (h *AnalyticsHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/stats", h.handleStats)
	router.Get("/earnings", h.handleEarnings)
	router.Get("/top-manufacturers", h.handleTopManufacturers)
	router.Get("/top-medicines", h.handleTopMedicines)
}

// intQuery returns fallback when the parameter is missing or not a number.
func intQuery(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n == 0 {
		return fallback
	}
	return n
}

func (h *AnalyticsHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to compute stats")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func (h *AnalyticsHandler) handleEarnings(w http.ResponseWriter, r *http.Request) {
	year := intQuery(r, "year", h.now().UTC().Year())

	earnings, err := h.service.MonthlyEarnings(r.Context(), year)
	if err != nil {
		respondWithServiceError(w, err, "Failed to compute earnings")
		return
	}

	respondWithJSON(w, http.StatusOK, earnings)
}

func (h *AnalyticsHandler) period(r *http.Request) (int, int, int) {
	now := h.now().UTC()
	return intQuery(r, "year", now.Year()),
		intQuery(r, "month", int(now.Month())),
		intQuery(r, "limit", analytics.DefaultTopLimit)
}

func (h *AnalyticsHandler) handleTopManufacturers(w http.ResponseWriter, r *http.Request) {
	year, month, limit := h.period(r)

	ranked, err := h.service.TopManufacturers(r.Context(), year, month, limit)
	if err != nil {
		respondWithServiceError(w, err, "Failed to rank manufacturers")
		return
	}

	respondWithJSON(w, http.StatusOK, ranked)
}

func (h *AnalyticsHandler) handleTopMedicines(w http.ResponseWriter, r *http.Request) {
	year, month, limit := h.period(r)

	ranked, err := h.service.TopMedicines(r.Context(), year, month, limit)
	if err != nil {
		respondWithServiceError(w, err, "Failed to rank medicines")
		return
	}

	respondWithJSON(w, http.StatusOK, ranked)
}

type CatalogHandler struct {
	service catalog.Service
}

func NewCatalogHandler(service catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := listing.NewProductQuery(listing.FromValues(r.URL.Query()))

	page, err := h.service.ListProducts(r.Context(), q)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}
