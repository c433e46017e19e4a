package cities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"cityinfo-api/internal/httpx"
	"cityinfo-api/internal/observability"
)

type Store interface {
	ListCities(ctx context.Context, query ListQuery) ([]City, PaginationMetadata, error)
	GetCity(ctx context.Context, cityID int64) (City, error)
	CityExists(ctx context.Context, cityID int64) (bool, error)
	ListPointsOfInterest(ctx context.Context, cityID int64) ([]PointOfInterest, error)
	GetPointOfInterest(ctx context.Context, cityID, poiID int64) (PointOfInterest, error)
	CreatePointOfInterest(ctx context.Context, cityID int64, input PointOfInterestInput) (PointOfInterest, error)
	UpdatePointOfInterest(ctx context.Context, cityID, poiID int64, input PointOfInterestInput) error
	DeletePointOfInterest(ctx context.Context, cityID, poiID int64) error
}

type Handler struct {
	store  Store
	logger *observability.Logger
}

func NewHandler(store Store, logger *observability.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, meta, err := h.store.ListCities(r.Context(), query)
	if err != nil {
		h.internalError(w, err, "failed to list cities")
		return
	}

	encoded, _ := json.Marshal(meta)
	w.Header().Set("X-Pagination", string(encoded))
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	cityID, ok := pathID(w, r, "cityId")
	if !ok {
		return
	}

	includePOIs := false
	if raw := r.URL.Query().Get("includePointsOfInterest"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid includePointsOfInterest")
			return
		}
		includePOIs = parsed
	}

	city, err := h.store.GetCity(r.Context(), cityID)
	if err != nil {
		h.notFoundOr500(w, err, "city not found", "failed to load city")
		return
	}

	if !includePOIs {
		httpx.WriteJSON(w, http.StatusOK, city)
		return
	}

	pois, err := h.store.ListPointsOfInterest(r.Context(), cityID)
	if err != nil {
		h.internalError(w, err, "failed to load points of interest")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, CityDetail{City: city, NumberOfPointsOfInterest: len(pois), PointsOfInterest: pois})
}

func (h *Handler) ListPointsOfInterest(w http.ResponseWriter, r *http.Request) {
	cityID, ok := pathID(w, r, "cityId")
	if !ok {
		return
	}
	if !h.requireCity(w, r, cityID) {
		return
	}

	pois, err := h.store.ListPointsOfInterest(r.Context(), cityID)
	if err != nil {
		h.internalError(w, err, "failed to list points of interest")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pois)
}

func (h *Handler) GetPointOfInterest(w http.ResponseWriter, r *http.Request) {
	cityID, ok := pathID(w, r, "cityId")
	if !ok {
		return
	}
	poiID, ok := pathID(w, r, "poiId")
	if !ok {
		return
	}
	if !h.requireCity(w, r, cityID) {
		return
	}

	poi, err := h.store.GetPointOfInterest(r.Context(), cityID, poiID)
	if err != nil {
		h.notFoundOr500(w, err, "point of interest not found", "failed to load point of interest")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, poi)
}

func (h *Handler) CreatePointOfInterest(w http.ResponseWriter, r *http.Request) {
	cityID, ok := pathID(w, r, "cityId")
	if !ok {
		return
	}

	var input PointOfInterestInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	input, err := input.Normalize()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.requireCity(w, r, cityID) {
		return
	}

	poi, err := h.store.CreatePointOfInterest(r.Context(), cityID, input)
	if err != nil {
		h.internalError(w, err, "failed to create point of interest")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/cities/%d/pointsofinterest/%d", cityID, poi.ID))
	httpx.WriteJSON(w, http.StatusCreated, poi)
}

func (h *Handler) UpdatePointOfInterest(w http.ResponseWriter, r *http.Request) {
	cityID, ok := pathID(w, r, "cityId")
	if !ok {
		return
	}
	poiID, ok := pathID(w, r, "poiId")
	if !ok {
		return
	}

	var input PointOfInterestInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	input, err := input.Normalize()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.requireCity(w, r, cityID) {
		return
	}

	if err := h.store.UpdatePointOfInterest(r.Context(), cityID, poiID, input); err != nil {
		h.notFoundOr500(w, err, "point of interest not found", "failed to update point of interest")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PatchPointOfInterest(w http.ResponseWriter, r *http.Request) {
	cityID, ok := pathID(w, r, "cityId")
	if !ok {
		return
	}
	poiID, ok := pathID(w, r, "poiId")
	if !ok {
		return
	}

	var patch PointOfInterestPatch
	if err := httpx.DecodeJSON(w, r, &patch); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if !h.requireCity(w, r, cityID) {
		return
	}

	current, err := h.store.GetPointOfInterest(r.Context(), cityID, poiID)
	if err != nil {
		h.notFoundOr500(w, err, "point of interest not found", "failed to load point of interest")
		return
	}

	input, err := patch.Apply(current).Normalize()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpdatePointOfInterest(r.Context(), cityID, poiID, input); err != nil {
		h.notFoundOr500(w, err, "point of interest not found", "failed to update point of interest")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeletePointOfInterest(w http.ResponseWriter, r *http.Request) {
	cityID, ok := pathID(w, r, "cityId")
	if !ok {
		return
	}
	poiID, ok := pathID(w, r, "poiId")
	if !ok {
		return
	}
	if !h.requireCity(w, r, cityID) {
		return
	}

	poi, err := h.store.GetPointOfInterest(r.Context(), cityID, poiID)
	if err != nil {
		h.notFoundOr500(w, err, "point of interest not found", "failed to load point of interest")
		return
	}

	if err := h.store.DeletePointOfInterest(r.Context(), cityID, poiID); err != nil {
		h.notFoundOr500(w, err, "point of interest not found", "failed to delete point of interest")
		return
	}

	h.logger.Info("point_of_interest_deleted", map[string]any{
		"city_id": cityID,
		"poi_id":  poi.ID,
		"name":    poi.Name,
	})

	w.WriteHeader(http.StatusNoContent)
}

// requireCity writes 404 or 500 and returns false unless the city exists.
func (h *Handler) requireCity(w http.ResponseWriter, r *http.Request, cityID int64) bool {
	exists, err := h.store.CityExists(r.Context(), cityID)
	if err != nil {
		h.internalError(w, err, "failed to load city")
		return false
	}
	if !exists {
		httpx.WriteError(w, http.StatusNotFound, "city not found")
		return false
	}
	return true
}

func (h *Handler) notFoundOr500(w http.ResponseWriter, err error, notFound, failed string) {
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, notFound)
		return
	}
	h.internalError(w, err, failed)
}

func (h *Handler) internalError(w http.ResponseWriter, err error, message string) {
	sentry.CaptureException(err)
	h.logger.Error("cities_request_failed", map[string]any{"error": err.Error(), "reason": message})
	httpx.WriteError(w, http.StatusInternalServerError, message)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func parseListQuery(r *http.Request) (ListQuery, error) {
	values := r.URL.Query()
	query := ListQuery{
		Name:        values.Get("name"),
		SearchQuery: values.Get("searchQuery"),
		PageNumber:  1,
		PageSize:    defaultPageSize,
	}

	if raw := values.Get("pageNumber"); raw != "" {
		n, err := strconv.Atoi(raw)
		// the upper bound keeps (pageNumber-1)*pageSize from overflowing
		if err != nil || n < 1 || n > math.MaxInt/maxPageSize {
			return ListQuery{}, errors.New("invalid pageNumber")
		}
		query.PageNumber = n
	}
	if raw := values.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return ListQuery{}, errors.New("invalid pageSize")
		}
		query.PageSize = min(n, maxPageSize)
	}

	return query, nil
}
