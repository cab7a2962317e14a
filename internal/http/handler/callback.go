package handler

import (
	"github.com/gofiber/fiber/v2"

	"docflow/internal/model"
	"docflow/internal/service"
)

type statusRequest struct {
	Status model.Status `json:"status"`
}

// UpdateDocumentStatus lets the processing worker advance a document's status.
// Moves are forward only: pending -> processing -> completed|failed.
//
// @Summary  Worker status callback
// @Tags     callbacks
// @Accept   json
// @Produce  json
// @Param    id                path   string        true "Document ID"
// @Param    X-Callback-Token  header string        true "Worker shared secret"
// @Param    body              body   statusRequest true "New status"
// @Success  200 {object} model.Document
// @Failure  400 {object} errorPayload
// @Failure  401 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Failure  409 {object} errorPayload
// @Router   /api/callbacks/documents/{id}/status [patch]
func UpdateDocumentStatus(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req statusRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be JSON with a status field")
		}

		doc, err := svc.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
		if err != nil {
			logServerError(c, err)
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}
