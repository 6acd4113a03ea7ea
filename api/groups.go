package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/warezfr/dynatrace-backup-restore-tool/inventory"
)

// groupRequest is the wire shape for creating/updating groups.
type groupRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	EnvironmentIDs []string `json:"environment_ids"`
	IsActive       *bool    `json:"is_active,omitempty"`
}

func (a *API) handleCreateGroup(c echo.Context) error {
	var req groupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	g := &inventory.Group{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		EnvironmentIDs: req.EnvironmentIDs,
		IsActive:       true,
	}
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}

	if err := a.envs.CreateGroup(c.Request().Context(), g); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (a *API) handleListGroups(c echo.Context) error {
	groups, err := a.envs.ListGroups(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (a *API) handleGetGroup(c echo.Context) error {
	g, err := a.envs.GetGroup(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (a *API) handleUpdateGroup(c echo.Context) error {
	ctx := c.Request().Context()
	g, err := a.envs.GetGroup(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	var req groupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	if req.Name != "" {
		g.Name = req.Name
	}
	if req.Description != "" {
		g.Description = req.Description
	}
	if req.EnvironmentIDs != nil {
		g.EnvironmentIDs = req.EnvironmentIDs
	}
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}

	if err := a.envs.UpdateGroup(ctx, g); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (a *API) handleDeleteGroup(c echo.Context) error {
	if err := a.envs.DeleteGroup(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
