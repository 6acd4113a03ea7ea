package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	dtbrhttp "github.com/warezfr/dynatrace-backup-restore-tool/http"
	"github.com/warezfr/dynatrace-backup-restore-tool/inventory"
)

// environmentRequest is the wire shape for creating/updating environments.
type environmentRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	URL         string                    `json:"url"`
	APIToken    string                    `json:"api_token"`
	EnvType     inventory.EnvironmentType `json:"env_type"`
	IsActive    *bool                     `json:"is_active,omitempty"`
	InsecureSSL bool                      `json:"insecure_ssl"`
	Tags        []string                  `json:"tags,omitempty"`
}

func (r *environmentRequest) validate() error {
	if r.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if r.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	if r.APIToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "api_token is required")
	}
	return nil
}

func (a *API) handleCreateEnvironment(c echo.Context) error {
	var req environmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	if err := req.validate(); err != nil {
		return err
	}

	env := &inventory.Environment{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		APIToken:    req.APIToken,
		EnvType:     req.EnvType,
		IsActive:    true,
		InsecureSSL: req.InsecureSSL,
		Tags:        req.Tags,
	}
	if req.IsActive != nil {
		env.IsActive = *req.IsActive
	}
	if env.EnvType == "" {
		env.EnvType = inventory.TypeCustom
	}

	if err := a.envs.CreateEnvironment(c.Request().Context(), env); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, env)
}

func (a *API) handleListEnvironments(c echo.Context) error {
	envs, err := a.envs.ListEnvironments(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, envs)
}

func (a *API) handleGetEnvironment(c echo.Context) error {
	env, err := a.envs.GetEnvironment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, env)
}

func (a *API) handleUpdateEnvironment(c echo.Context) error {
	ctx := c.Request().Context()
	env, err := a.envs.GetEnvironment(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	var req environmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	if req.Name != "" {
		env.Name = req.Name
	}
	if req.Description != "" {
		env.Description = req.Description
	}
	if req.URL != "" {
		env.URL = req.URL
	}
	if req.APIToken != "" {
		env.APIToken = req.APIToken
	}
	if req.EnvType != "" {
		env.EnvType = req.EnvType
	}
	if req.IsActive != nil {
		env.IsActive = *req.IsActive
	}
	env.InsecureSSL = req.InsecureSSL
	if req.Tags != nil {
		env.Tags = req.Tags
	}

	if err := a.envs.UpdateEnvironment(ctx, env); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, env)
}

func (a *API) handleDeleteEnvironment(c echo.Context) error {
	if err := a.envs.DeleteEnvironment(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleTestEnvironment probes the environment URL and records the outcome
// on the environment record.
func (a *API) handleTestEnvironment(c echo.Context) error {
	ctx := c.Request().Context()
	env, err := a.envs.GetEnvironment(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	now := time.Now().UTC()
	probeErr := dtbrhttp.Probe(ctx, env.URL, env.InsecureSSL, 10*time.Second)
	env.IsHealthy = probeErr == nil
	env.LastTested = &now
	if err := a.envs.UpdateEnvironment(ctx, env); err != nil {
		return writeError(c, err)
	}

	resp := map[string]interface{}{"healthy": env.IsHealthy}
	if probeErr != nil {
		resp["message"] = probeErr.Error()
	}
	return c.JSON(http.StatusOK, resp)
}
