package web

import (
	"errors"

	"github.com/deflow/deflow/pkg/persistence"
	"github.com/deflow/deflow/pkg/services"
	"github.com/deflow/deflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// isFlowRejection reports executor and deployer errors caused by the
// caller's input rather than by the server.
func isFlowRejection(err error) bool {
	return errors.Is(err, workflow.ErrNotTriggerNode) ||
		errors.Is(err, workflow.ErrEmptySuccessFlow) ||
		errors.Is(err, workflow.ErrFlowMismatch) ||
		errors.Is(err, workflow.ErrInvalidTriggerPayload) ||
		errors.Is(err, workflow.ErrNoTriggerNodes) ||
		errors.Is(err, workflow.ErrInvalidDeployRequest)
}

// handleServiceError provides typed error handling for service, flow and
// persistence errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err), isFlowRejection(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsFlowNotFound(err):
		return notFound(c, "flow_not_found", "flow not found")

	case persistence.IsNodeNotFound(err), errors.Is(err, workflow.ErrTriggerNodeNotFound):
		return notFound(c, "node_not_found", "node not found")

	case persistence.IsPredefinedNodeNotFound(err):
		return notFound(c, "predefined_node_not_found", "predefined node not found")

	case persistence.IsTriggerConfigNotFound(err):
		return notFound(c, "trigger_config_not_found", "trigger config not found")

	default:
		return internalError(c, err)
	}
}
