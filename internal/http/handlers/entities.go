package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/entitylist/entitylist/internal/contenttype"
	"github.com/entitylist/entitylist/internal/controller"
	"github.com/entitylist/entitylist/internal/entity"
	"github.com/entitylist/entitylist/internal/logging"
	"github.com/entitylist/entitylist/internal/search"
	"github.com/entitylist/entitylist/internal/store"
	"github.com/entitylist/entitylist/internal/view"
)

// ListResponse is one page of a list together with the view that produced it.
type ListResponse struct {
	Items       []entity.Entity `json:"items"`
	Total       int             `json:"total"`
	HasMore     bool            `json:"hasMore"`
	Page        int             `json:"page"`
	TotalPages  int             `json:"totalPages"`
	ShowingFrom int             `json:"showingFrom"`
	ShowingTo   int             `json:"showingTo"`
	View        view.View       `json:"view"`
}

type filterRequest struct {
	Key string `json:"key"`
}

// HandleListEntities loads one page of the list. With more=1 every page up to
// the requested one is loaded and concatenated.
func (h *Handlers) HandleListEntities(c *echo.Context) error {
	scope, ok := scopeFromPath(c)
	if !ok {
		return RenderNotFound(c)
	}
	p := h.newPersistor(c, scope)
	p.Save(p.Initial())
	ctrl := h.newController(c, p, scope)
	ctx := c.Request().Context()

	page := parsePageParam(c)
	more := ParseBoolForm(c.QueryParam("more"))
	var err error
	if more && page > 1 {
		err = ctrl.UpdateEntities(ctx)
		for i := 1; err == nil && i < page && ctrl.State().HasMore; i++ {
			err = ctrl.LoadMore(ctx)
		}
	} else {
		err = ctrl.GoToPage(ctx, page-1)
	}
	if err != nil {
		return h.RenderLoadError(c, err)
	}

	return h.renderList(c, ctrl.State(), more)
}

func (h *Handlers) renderList(c *echo.Context, state controller.State, appended bool) error {
	offset := state.Page * state.PerPage
	if appended {
		offset = 0
	}
	from, to := showingRange(int64(state.Total), offset, len(state.Entities))
	items := state.Entities
	if items == nil {
		items = []entity.Entity{}
	}
	addVary(c, "Cookie")
	return c.JSON(http.StatusOK, ListResponse{
		Items:       items,
		Total:       state.Total,
		HasMore:     state.HasMore,
		Page:        state.Page + 1,
		TotalPages:  totalPages(int64(state.Total), state.PerPage),
		ShowingFrom: from,
		ShowingTo:   to,
		View:        state.View,
	})
}

// HandleGetView returns the resolved view without saving it.
func (h *Handlers) HandleGetView(c *echo.Context) error {
	scope, ok := scopeFromPath(c)
	if !ok {
		return RenderNotFound(c)
	}
	p := h.newPersistor(c, scope)
	return c.JSON(http.StatusOK, p.Initial())
}

// HandlePutView replaces the stored view.
func (h *Handlers) HandlePutView(c *echo.Context) error {
	scope, ok := scopeFromPath(c)
	if !ok {
		return RenderNotFound(c)
	}
	var v view.View
	if err := json.NewDecoder(c.Request().Body).Decode(&v); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid view JSON", Code: BadRequestCode})
	}
	if err := v.Validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: InvalidViewCode})
	}
	p := h.newPersistor(c, scope)
	p.Save(v)
	return c.JSON(http.StatusOK, p.Read())
}

// HandleDeleteView drops the stored view so the defaults apply again.
func (h *Handlers) HandleDeleteView(c *echo.Context) error {
	scope, ok := scopeFromPath(c)
	if !ok {
		return RenderNotFound(c)
	}
	h.newPersistor(c, scope).Clear()
	return c.NoContent(http.StatusNoContent)
}

// HandleSuggestions lists filter suggestions for the q parameter.
func (h *Handlers) HandleSuggestions(c *echo.Context) error {
	scope, ok := scopeFromPath(c)
	if !ok {
		return RenderNotFound(c)
	}
	contentTypeID := strings.TrimSpace(c.QueryParam("contentTypeId"))
	if contentTypeID == "" {
		contentTypeID = h.newPersistor(c, scope).Initial().ContentTypeID
	}
	out := search.Suggest(c.QueryParam("q"), contentTypeID, h.catalog(), scope.EntityType == entity.TypeAsset, true)
	if out == nil {
		out = []search.Suggestion{}
	}
	return c.JSON(http.StatusOK, out)
}

// HandleAddFilter appends a filter for a suggested key and reloads the list.
func (h *Handlers) HandleAddFilter(c *echo.Context) error {
	scope, ok := scopeFromPath(c)
	if !ok {
		return RenderNotFound(c)
	}
	var req filterRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "filter key is required", Code: BadRequestCode})
	}

	p := h.newPersistor(c, scope)
	p.Save(p.Initial())
	v := p.Read()
	sg, found := findSuggestion(search.Candidates(v.ContentTypeID, h.catalog(), scope.EntityType == entity.TypeAsset, true), req.Key)
	if !found {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "unknown filter key " + strconv.Quote(req.Key), Code: entity.CodeInvalidQuery})
	}

	ctrl := h.newController(c, p, scope)
	sc := h.newSearchContext(p, ctrl, scope)
	defer sc.Close()
	sc.SelectFilterSuggestion(sg)
	return h.renderCommitted(c, ctrl)
}

// HandleRemoveFilter removes the filter at the :index route parameter and
// reloads the list.
func (h *Handlers) HandleRemoveFilter(c *echo.Context) error {
	scope, ok := scopeFromPath(c)
	if !ok {
		return RenderNotFound(c)
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "filter index must be an integer", Code: BadRequestCode})
	}

	p := h.newPersistor(c, scope)
	p.Save(p.Initial())
	ctrl := h.newController(c, p, scope)
	sc := h.newSearchContext(p, ctrl, scope)
	defer sc.Close()
	if err := sc.RemoveFilter(index); err != nil {
		if errors.Is(err, search.ErrFilterIndex) {
			return RenderNotFound(c)
		}
		return h.RenderError(c, err)
	}
	return h.renderCommitted(c, ctrl)
}

func (h *Handlers) renderCommitted(c *echo.Context, ctrl *controller.Controller) error {
	state := ctrl.State()
	if state.Err != nil {
		return h.RenderLoadError(c, state.Err)
	}
	return h.renderList(c, state, false)
}

func (h *Handlers) newSearchContext(p search.ViewStore, ctrl *controller.Controller, scope store.Scope) *search.Context {
	opts := []search.Option{
		search.WithAssets(scope.EntityType == entity.TypeAsset),
		search.WithMetadata(true),
		search.WithLogger(logging.ForComponent(h.logger(), "search")),
	}
	if h.Cfg.SearchDebounce > 0 {
		opts = append(opts, search.WithDebounce(h.Cfg.SearchDebounce))
	}
	if h.ContentTypes != nil {
		opts = append(opts, search.WithContentTypes(h.ContentTypes))
	}
	return search.New(p, ctrl.Commit, opts...)
}

func (h *Handlers) catalog() *contenttype.Catalog {
	if h.ContentTypes == nil {
		return nil
	}
	return h.ContentTypes.Current()
}

func findSuggestion(candidates []search.Suggestion, key string) (search.Suggestion, bool) {
	key = strings.TrimSpace(key)
	for _, sg := range candidates {
		if sg.Key == key {
			return sg, true
		}
	}
	return search.Suggestion{}, false
}
