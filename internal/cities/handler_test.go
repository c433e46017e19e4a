package cities

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityinfo-api/internal/observability"
)

type memoryStore struct {
	mu     sync.Mutex
	cities map[int64]City
	pois   map[int64]PointOfInterest
	nextID int64
	err    error
}

func newMemoryStore() *memoryStore {
	s := &memoryStore{
		cities: map[int64]City{
			1: {ID: 1, Name: "New York City", Description: "The one with that big park."},
			2: {ID: 2, Name: "Antwerp", Description: "The one with the cathedral."},
			3: {ID: 3, Name: "Paris", Description: "The one with that big tower."},
		},
		pois: map[int64]PointOfInterest{
			1: {ID: 1, CityID: 1, Name: "Central Park", Description: "Urban park."},
			2: {ID: 2, CityID: 3, Name: "Eiffel Tower", Description: "Iron lattice tower."},
			3: {ID: 3, CityID: 3, Name: "The Louvre", Description: "Largest museum."},
		},
		nextID: 3,
	}
	return s
}

func (s *memoryStore) ListCities(_ context.Context, query ListQuery) ([]City, PaginationMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, PaginationMetadata{}, s.err
	}

	matched := make([]City, 0)
	for _, c := range s.cities {
		if query.Name != "" && c.Name != query.Name {
			continue
		}
		if query.SearchQuery != "" && !strings.Contains(strings.ToLower(c.Name+" "+c.Description), strings.ToLower(query.SearchQuery)) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	meta := NewPaginationMetadata(len(matched), query.PageSize, query.PageNumber)
	start := min(query.offset(), len(matched))
	end := min(start+query.PageSize, len(matched))
	return matched[start:end], meta, nil
}

func (s *memoryStore) GetCity(_ context.Context, cityID int64) (City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return City{}, s.err
	}
	c, ok := s.cities[cityID]
	if !ok {
		return City{}, ErrNotFound
	}
	return c, nil
}

func (s *memoryStore) CityExists(_ context.Context, cityID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.cities[cityID]
	return ok, nil
}

func (s *memoryStore) ListPointsOfInterest(_ context.Context, cityID int64) ([]PointOfInterest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]PointOfInterest, 0)
	for _, p := range s.pois {
		if p.CityID == cityID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *memoryStore) GetPointOfInterest(_ context.Context, cityID, poiID int64) (PointOfInterest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pois[poiID]
	if !ok || p.CityID != cityID {
		return PointOfInterest{}, ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) CreatePointOfInterest(_ context.Context, cityID int64, input PointOfInterestInput) (PointOfInterest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := PointOfInterest{ID: s.nextID, CityID: cityID, Name: input.Name, Description: input.Description}
	s.pois[p.ID] = p
	return p, nil
}

func (s *memoryStore) UpdatePointOfInterest(_ context.Context, cityID, poiID int64, input PointOfInterestInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pois[poiID]
	if !ok || p.CityID != cityID {
		return ErrNotFound
	}
	p.Name = input.Name
	p.Description = input.Description
	s.pois[poiID] = p
	return nil
}

func (s *memoryStore) DeletePointOfInterest(_ context.Context, cityID, poiID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pois[poiID]
	if !ok || p.CityID != cityID {
		return ErrNotFound
	}
	delete(s.pois, poiID)
	return nil
}

func newTestMux(store Store) *http.ServeMux {
	h := NewHandler(store, observability.NewLoggerWithWriter(io.Discard))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cities", h.ListCities)
	mux.HandleFunc("GET /api/cities/{cityId}", h.GetCity)
	mux.HandleFunc("GET /api/cities/{cityId}/pointsofinterest", h.ListPointsOfInterest)
	mux.HandleFunc("GET /api/cities/{cityId}/pointsofinterest/{poiId}", h.GetPointOfInterest)
	mux.HandleFunc("POST /api/cities/{cityId}/pointsofinterest", h.CreatePointOfInterest)
	mux.HandleFunc("PUT /api/cities/{cityId}/pointsofinterest/{poiId}", h.UpdatePointOfInterest)
	mux.HandleFunc("PATCH /api/cities/{cityId}/pointsofinterest/{poiId}", h.PatchPointOfInterest)
	mux.HandleFunc("DELETE /api/cities/{cityId}/pointsofinterest/{poiId}", h.DeletePointOfInterest)
	return mux
}

func serve(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestHandler_ListCitiesPaginates(t *testing.T) {
	mux := newTestMux(newMemoryStore())

	w := serve(mux, http.MethodGet, "/api/cities?pageSize=2&pageNumber=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var items []City
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Paris", items[0].Name)

	var meta PaginationMetadata
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get("X-Pagination")), &meta))
	assert.Equal(t, PaginationMetadata{TotalItemCount: 3, TotalPageCount: 2, PageSize: 2, CurrentPage: 2}, meta)
}

func TestHandler_ListCitiesCapsPageSize(t *testing.T) {
	mux := newTestMux(newMemoryStore())

	w := serve(mux, http.MethodGet, "/api/cities?pageSize=500", "")
	require.Equal(t, http.StatusOK, w.Code)

	var meta PaginationMetadata
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get("X-Pagination")), &meta))
	assert.Equal(t, maxPageSize, meta.PageSize)
}

func TestHandler_ListCitiesFilters(t *testing.T) {
	mux := newTestMux(newMemoryStore())

	w := serve(mux, http.MethodGet, "/api/cities?searchQuery=tower", "")
	var items []City
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].ID)

	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodGet, "/api/cities?pageNumber=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodGet, "/api/cities?pageSize=x", "").Code)
}

func TestHandler_ListCitiesRejectsOverflowingPage(t *testing.T) {
	mux := newTestMux(newMemoryStore())

	for _, target := range []string{
		"/api/cities?pageNumber=9223372036854775807&pageSize=20",
		"/api/cities?pageNumber=" + strconv.Itoa(math.MaxInt/maxPageSize+1),
		"/api/cities?pageNumber=99999999999999999999",
	} {
		w := serve(mux, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.JSONEq(t, `{"error":"invalid pageNumber"}`, w.Body.String(), target)
	}

	largest := ListQuery{PageNumber: math.MaxInt / maxPageSize, PageSize: maxPageSize}
	assert.Positive(t, largest.offset())
}

func TestHandler_GetCity(t *testing.T) {
	mux := newTestMux(newMemoryStore())

	w := serve(mux, http.MethodGet, "/api/cities/3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "pointsOfInterest")

	w = serve(mux, http.MethodGet, "/api/cities/3?includePointsOfInterest=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail CityDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "Paris", detail.Name)
	assert.Equal(t, 2, detail.NumberOfPointsOfInterest)
	assert.Len(t, detail.PointsOfInterest, 2)

	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/api/cities/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodGet, "/api/cities/3?includePointsOfInterest=maybe", "").Code)
}

func TestHandler_PointOfInterestLifecycle(t *testing.T) {
	store := newMemoryStore()
	mux := newTestMux(store)

	w := serve(mux, http.MethodPost, "/api/cities/2/pointsofinterest", `{"name":"Cathedral","description":"Gothic cathedral"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/cities/2/pointsofinterest/4", w.Header().Get("Location"))

	w = serve(mux, http.MethodGet, "/api/cities/2/pointsofinterest/4", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":4,"name":"Cathedral","description":"Gothic cathedral"}`, w.Body.String())

	w = serve(mux, http.MethodPut, "/api/cities/2/pointsofinterest/4", `{"name":"Cathedral of Our Lady","description":"Gothic"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = serve(mux, http.MethodPatch, "/api/cities/2/pointsofinterest/4", `{"description":"Unfinished tower"}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, PointOfInterest{ID: 4, CityID: 2, Name: "Cathedral of Our Lady", Description: "Unfinished tower"}, store.pois[4])

	w = serve(mux, http.MethodDelete, "/api/cities/2/pointsofinterest/4", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/api/cities/2/pointsofinterest/4", "").Code)
}

func TestHandler_PointOfInterestValidation(t *testing.T) {
	mux := newTestMux(newMemoryStore())

	cases := map[string]string{
		"missing name":     `{"description":"x"}`,
		"name too long":    `{"name":"` + strings.Repeat("a", 51) + `"}`,
		"same as name":     `{"name":"Park","description":"Park"}`,
		"unknown field":    `{"name":"Park","rating":5}`,
		"not json":         `nope`,
		"description long": `{"name":"Park","description":"` + strings.Repeat("d", 201) + `"}`,
	}
	for name, body := range cases {
		assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodPost, "/api/cities/1/pointsofinterest", body).Code, name)
	}

	w := serve(mux, http.MethodPatch, "/api/cities/3/pointsofinterest/2", `{"name":"Iron lattice tower."}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_PointOfInterestNotFound(t *testing.T) {
	mux := newTestMux(newMemoryStore())

	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/api/cities/9/pointsofinterest", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/api/cities/1/pointsofinterest/2", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodPut, "/api/cities/1/pointsofinterest/99", `{"name":"Zoo"}`).Code)
	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodDelete, "/api/cities/1/pointsofinterest/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodGet, "/api/cities/1/pointsofinterest/abc", "").Code)
}

func TestHandler_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("db down")
	mux := newTestMux(store)

	w := serve(mux, http.MethodGet, "/api/cities", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to list cities"}`, w.Body.String())

	assert.Equal(t, http.StatusInternalServerError, serve(mux, http.MethodGet, "/api/cities/1/pointsofinterest", "").Code)
}
