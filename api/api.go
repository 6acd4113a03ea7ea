// Package api exposes the REST interface: bulk operation submission and
// polling, environment and group management, and the backup catalog.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/warezfr/dynatrace-backup-restore-tool/backupcat"
	"github.com/warezfr/dynatrace-backup-restore-tool/inventory"
	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
	"github.com/warezfr/dynatrace-backup-restore-tool/statestore"
)

// API holds the handler dependencies.
type API struct {
	orch     *orchestrator.Orchestrator
	reporter *orchestrator.Reporter
	ops      orchestrator.Store
	envs     inventory.Store
	backups  *backupcat.Service
}

// New creates the API surface.
func New(orch *orchestrator.Orchestrator, reporter *orchestrator.Reporter, ops orchestrator.Store, envs inventory.Store, backups *backupcat.Service) *API {
	return &API{orch: orch, reporter: reporter, ops: ops, envs: envs, backups: backups}
}

// RegisterRoutes adds all endpoints to an Echo group.
func (a *API) RegisterRoutes(g *echo.Group) {
	g.POST("/operations", a.handleSubmitOperation)
	g.GET("/operations", a.handleListOperations)
	g.GET("/operations/:id", a.handleGetOperation)
	g.GET("/operations/:id/status", a.handleOperationStatus)

	g.POST("/environments", a.handleCreateEnvironment)
	g.GET("/environments", a.handleListEnvironments)
	g.GET("/environments/:id", a.handleGetEnvironment)
	g.PUT("/environments/:id", a.handleUpdateEnvironment)
	g.DELETE("/environments/:id", a.handleDeleteEnvironment)
	g.POST("/environments/:id/test", a.handleTestEnvironment)

	g.POST("/groups", a.handleCreateGroup)
	g.GET("/groups", a.handleListGroups)
	g.GET("/groups/:id", a.handleGetGroup)
	g.PUT("/groups/:id", a.handleUpdateGroup)
	g.DELETE("/groups/:id", a.handleDeleteGroup)

	g.GET("/config/types", a.handleListConfigTypes)
	g.GET("/config/presets", a.handleListConfigPresets)

	g.GET("/backups", a.handleListBackups)
	g.GET("/backups/:id", a.handleGetBackup)
	g.DELETE("/backups/:id", a.handleDeleteBackup)
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c echo.Context, err error) error {
	var validationErr *orchestrator.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, statestore.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, statestore.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, backupcat.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
