package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *API) handleListBackups(c echo.Context) error {
	backups, err := a.backups.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, backups)
}

func (a *API) handleGetBackup(c echo.Context) error {
	b, err := a.backups.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (a *API) handleDeleteBackup(c echo.Context) error {
	if err := a.backups.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
