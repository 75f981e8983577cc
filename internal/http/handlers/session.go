package handlers

import (
	"github.com/labstack/echo/v5"

	"github.com/entitylist/entitylist/internal/controller"
	"github.com/entitylist/entitylist/internal/loader"
	"github.com/entitylist/entitylist/internal/logging"
	"github.com/entitylist/entitylist/internal/metrics"
	"github.com/entitylist/entitylist/internal/persist"
	"github.com/entitylist/entitylist/internal/store"
	"github.com/entitylist/entitylist/internal/view"
)

// sessionKeyLegacyMigrated marks a session whose legacy stored views were
// already migrated by an earlier request.
const sessionKeyLegacyMigrated = "entitylist.legacyViewsMigrated"

// requestLocation is the URL tier of one request. Saves are mirrored to the
// client through HX-Replace-Url.
type requestLocation struct {
	c     *echo.Context
	path  string
	query string
}

func newRequestLocation(c *echo.Context, listPath string) *requestLocation {
	return &requestLocation{c: c, path: listPath, query: c.Request().URL.RawQuery}
}

func (l *requestLocation) QueryString() string {
	return l.query
}

func (l *requestLocation) ReplaceQuery(encoded string) {
	l.query = encoded
	if encoded == "" {
		setHXReplaceURL(l.c, l.path)
		return
	}
	setHXReplaceURL(l.c, l.path+"?"+encoded)
}

// scopeFromPath resolves the list scope from the route parameters.
func scopeFromPath(c *echo.Context) (store.Scope, bool) {
	entityType := view.NormalizeEntityType(c.Param("entityType"))
	scope := store.Scope{
		SpaceID:       c.Param("spaceId"),
		EnvironmentID: c.Param("environmentId"),
		EntityType:    entityType,
	}
	if entityType == "" || scope.SpaceID == "" || scope.EnvironmentID == "" {
		return store.Scope{}, false
	}
	return scope, true
}

func listPath(c *echo.Context) string {
	return "/api/spaces/" + c.Param("spaceId") + "/environments/" + c.Param("environmentId") + "/" + c.Param("entityType")
}

// newPersistor builds the view persistor of one request: query string over
// the session-stored view over the entity type defaults.
func (h *Handlers) newPersistor(c *echo.Context, scope store.Scope) *persist.Persistor {
	ctx := c.Request().Context()
	opts := []persist.Option{
		persist.WithLocation(newRequestLocation(c, listPath(c))),
		persist.WithDefaults(view.Defaults(scope.EntityType)),
		persist.WithLogger(logging.ForComponent(h.logger(), "persist")),
	}
	if h.Sessions == nil {
		return persist.New(persistKey(scope), opts...)
	}

	migration := persist.NewMigrationState()
	if h.Sessions.GetBool(ctx, sessionKeyLegacyMigrated) {
		migration.MarkDone()
	}
	opts = append(opts,
		persist.WithStorage(persist.NewSessionStorage(ctx, h.Sessions)),
		persist.WithMigrationState(migration),
	)
	p := persist.New(persistKey(scope), opts...)
	if migration.Done() {
		h.Sessions.Put(ctx, sessionKeyLegacyMigrated, true)
	}
	return p
}

func persistKey(scope store.Scope) persist.Key {
	return persist.Key{EntityType: scope.EntityType, EnvironmentID: scope.EnvironmentID, SpaceID: scope.SpaceID}
}

func (h *Handlers) newLoader(scope store.Scope) *loader.Loader {
	opts := []loader.Option{
		loader.WithEntityType(scope.EntityType),
		loader.WithLogger(logging.ForComponent(h.logger(), "loader")),
		loader.WithMetrics(metrics.Prometheus{}),
	}
	if h.Cfg.LoaderPageSize > 0 {
		opts = append(opts, loader.WithPageSize(h.Cfg.LoaderPageSize))
	}
	if h.Cfg.LoaderMinPageSize > 0 {
		opts = append(opts, loader.WithMinPageSize(h.Cfg.LoaderMinPageSize))
	}
	if h.ContentTypes != nil {
		opts = append(opts, loader.WithContentTypes(h.ContentTypes))
	}
	return loader.New(h.Collections.FetchFunc(scope), opts...)
}

func (h *Handlers) newController(c *echo.Context, p *persist.Persistor, scope store.Scope) *controller.Controller {
	return controller.New(p, h.newLoader(scope),
		controller.WithLogger(logging.ForComponent(h.logger(), "controller")),
		controller.WithBaseContext(c.Request().Context()),
	)
}
