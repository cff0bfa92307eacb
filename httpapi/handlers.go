package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"listing-search/models"
	"listing-search/services"
	"listing-search/storage"
)

type handlers struct {
	Deps
}

// searchRequest is the body of POST /v1/search. Filter fields that are not
// sent keep their permissive defaults.
type searchRequest struct {
	Location string             `json:"location"`
	Filter   models.FilterState `json:"filter"`
	Sort     string             `json:"sort"`
	ShowAll  bool               `json:"showAll"`
	PageSize int                `json:"pageSize"`
	Seq      uint64             `json:"seq"`
}

type errorBody struct {
	Source string `json:"source,omitempty"`
	Detail string `json:"detail"`
}

type searchResponse struct {
	services.SessionResult
	SessionID string         `json:"sessionId"`
	Seq       uint64         `json:"seq"`
	Sort      models.SortKey `json:"sort"`
	Error     *errorBody     `json:"error,omitempty"`
}

type lastSearchResponse struct {
	Found bool `json:"found"`
	models.LastSearch
}

func (h *handlers) postSearch(w http.ResponseWriter, req *http.Request) {
	body := searchRequest{Filter: models.DefaultFilterState()}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, req, fmt.Sprintf("invalid json: %v", err))
		return
	}
	h.search(w, req, body)
}

func (h *handlers) getSearch(w http.ResponseWriter, req *http.Request) {
	body, err := parseSearchParams(req)
	if err != nil {
		badRequest(w, req, err.Error())
		return
	}
	h.search(w, req, body)
}

func (h *handlers) search(w http.ResponseWriter, req *http.Request, body searchRequest) {
	if err := body.Filter.Validate(); err != nil {
		badRequest(w, req, err.Error())
		return
	}
	if body.PageSize < 0 {
		badRequest(w, req, "pageSize must not be negative")
		return
	}
	sortKey, ok := models.ParseSortKey(body.Sort)
	if !ok {
		h.Logger.Debug("[http] Unknown sort key %q, using %s", body.Sort, sortKey)
	}

	id := sessionID(w, req)
	session := h.Sessions.Get(id)
	session.Begin(body.Seq)

	adapter := h.Adapter.ForClient(id)
	fetched := adapter.FetchListings(req.Context(), models.Query{Location: body.Location})
	resp := searchResponse{SessionID: id, Seq: body.Seq, Sort: sortKey}

	if fetched.Failure != nil {
		resp.SessionResult = services.SessionResult{
			Result: models.Result{Page: models.Page{Visible: []models.Listing{}}},
			Window: session.Window(),
			Stale:  session.Superseded(body.Seq),
		}
		resp.Error = &errorBody{Source: fetched.Failure.Source, Detail: fetched.Failure.Err.Error()}
		render.Status(req, http.StatusBadGateway)
		render.JSON(w, req, resp)
		return
	}

	resp.SessionResult = session.Complete(body.Seq, fetched.Records, fetched.Shape, services.SearchQuery{
		Filter:   body.Filter,
		Sort:     sortKey,
		ShowAll:  body.ShowAll,
		PageSize: body.PageSize,
	})
	if !resp.Stale {
		adapter.PersistLastSearch(req.Context(), body.Location, body.Filter)
	}
	render.JSON(w, req, resp)
}

func (h *handlers) lastSearch(w http.ResponseWriter, req *http.Request) {
	id := sessionID(w, req)
	ls, found := h.Adapter.ForClient(id).LoadLastSearch(req.Context())
	render.JSON(w, req, lastSearchResponse{Found: found, LastSearch: ls})
}

func (h *handlers) summary(w http.ResponseWriter, req *http.Request) {
	result, ok := h.expanded(w, req)
	if !ok {
		return
	}
	render.JSON(w, req, h.Insights.Generate(result.Visible))
}

func (h *handlers) exportCSV(w http.ResponseWriter, req *http.Request) {
	result, ok := h.expanded(w, req)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="listings.csv"`)
	cw, err := storage.NewCSVWriter(w)
	if err == nil {
		err = cw.WriteListings(result.Visible)
	}
	if err == nil {
		err = cw.Close()
	}
	if err != nil {
		h.Logger.Error("[http] CSV export failed: %v", err)
	}
}

// expanded fetches and searches with the window fully open, writing the
// error response itself when it returns false.
func (h *handlers) expanded(w http.ResponseWriter, req *http.Request) (models.Result, bool) {
	body, err := parseSearchParams(req)
	if err == nil {
		err = body.Filter.Validate()
	}
	if err != nil {
		badRequest(w, req, err.Error())
		return models.Result{}, false
	}
	sortKey, _ := models.ParseSortKey(body.Sort)

	fetched := h.Adapter.FetchListings(req.Context(), models.Query{Location: body.Location})
	if f := fetched.Failure; f != nil {
		render.Status(req, http.StatusBadGateway)
		render.JSON(w, req, map[string]any{"error": errorBody{Source: f.Source, Detail: f.Err.Error()}})
		return models.Result{}, false
	}

	listings, dropped := h.Engine.NormalizeAll(fetched.Records, fetched.Shape)
	result := h.Engine.SearchListings(listings, body.Filter, sortKey, models.ViewWindow{Expanded: true})
	result.Dropped += dropped
	return result, true
}

// parseSearchParams reads a search from query parameters.
func parseSearchParams(req *http.Request) (searchRequest, error) {
	q := req.URL.Query()
	body := searchRequest{
		Location: strings.TrimSpace(q.Get("location")),
		Filter:   models.DefaultFilterState(),
		Sort:     q.Get("sort"),
	}
	body.Filter.Keyword = q.Get("keyword")
	body.Filter.BedroomTags = splitList(q.Get("bedrooms"))
	body.Filter.PropertyTypes = splitList(q.Get("types"))

	var err error
	if v := q.Get("min_rent"); v != "" {
		if body.Filter.RentRange.Min, err = strconv.ParseFloat(v, 64); err != nil {
			return body, fmt.Errorf("min_rent: %w", err)
		}
	}
	if v := q.Get("max_rent"); v != "" {
		if body.Filter.RentRange.Max, err = strconv.ParseFloat(v, 64); err != nil {
			return body, fmt.Errorf("max_rent: %w", err)
		}
	}
	if v := q.Get("verified"); v != "" {
		if body.Filter.VerifiedOnly, err = strconv.ParseBool(v); err != nil {
			return body, fmt.Errorf("verified: %w", err)
		}
	}
	if v := q.Get("show_all"); v != "" {
		if body.ShowAll, err = strconv.ParseBool(v); err != nil {
			return body, fmt.Errorf("show_all: %w", err)
		}
	}
	if v := q.Get("page_size"); v != "" {
		if body.PageSize, err = strconv.Atoi(v); err != nil {
			return body, fmt.Errorf("page_size: %w", err)
		}
	}
	if v := q.Get("seq"); v != "" {
		if body.Seq, err = strconv.ParseUint(v, 10, 64); err != nil {
			return body, fmt.Errorf("seq: %w", err)
		}
	}
	return body, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func badRequest(w http.ResponseWriter, req *http.Request, detail string) {
	render.Status(req, http.StatusBadRequest)
	render.JSON(w, req, map[string]any{"error": errorBody{Detail: detail}})
}
