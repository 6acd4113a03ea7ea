package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

// submitRequest is the wire shape for submitting a bulk operation.
type submitRequest struct {
	Kind           orchestrator.Kind `json:"kind"`
	EnvironmentIDs []string          `json:"environment_ids,omitempty"`
	GroupID        string            `json:"group_id,omitempty"`
	Options        map[string]string `json:"options,omitempty"`
}

// acceptedResponse acknowledges a queued operation. Callers poll the status
// endpoint; accepted means queued, not done.
type acceptedResponse struct {
	OperationID string              `json:"operation_id"`
	Status      orchestrator.Status `json:"status"`
}

func (a *API) handleSubmitOperation(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	op, err := a.orch.Submit(c.Request().Context(), orchestrator.Request{
		Kind: req.Kind,
		Selector: orchestrator.Selector{
			EnvironmentIDs: req.EnvironmentIDs,
			GroupID:        req.GroupID,
		},
		Options: req.Options,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, acceptedResponse{OperationID: op.ID, Status: op.Status})
}

func (a *API) handleListOperations(c echo.Context) error {
	ops, err := a.ops.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ops)
}

func (a *API) handleGetOperation(c echo.Context) error {
	op, err := a.ops.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, op)
}

func (a *API) handleOperationStatus(c echo.Context) error {
	snap, err := a.reporter.Snapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}
