package web

import (
	"context"
	"net/http"
	"time"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/registry"
	"github.com/deflow/deflow/pkg/services"
	"github.com/deflow/deflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// TriggerDeployer starts and stops trigger jobs.
type TriggerDeployer interface {
	DeployFlow(ctx context.Context, flowID string) ([]string, error)
	UndeployFlow(ctx context.Context, flowID string) ([]string, error)
	DeployTrigger(ctx context.Context, req workflow.DeployTriggerRequest) (*workflow.DeployResult, error)
	UndeployTrigger(ctx context.Context, triggerID string) error
}

type APIHandlers struct {
	flowService       *services.Flow
	nodeService       *services.Node
	predefinedService *services.PredefinedNodes
	runner            workflow.FlowRunner
	deployer          TriggerDeployer
	validator         *validator.Validate
	registry          *registry.Registry
}

func NewAPIHandlers(
	flowService *services.Flow,
	nodeService *services.Node,
	predefinedService *services.PredefinedNodes,
	runner workflow.FlowRunner,
	deployer TriggerDeployer,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		flowService:       flowService,
		nodeService:       nodeService,
		predefinedService: predefinedService,
		runner:            runner,
		deployer:          deployer,
		validator:         validator,
		registry:          registry,
	}
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	f := router.Group("/flow")
	f.Post("/", h.CreateFlow)
	f.Get("/", h.GetFlows)
	f.Post("/link-nodes", h.LinkNodes)
	f.Post("/unlink-nodes", h.UnlinkNodes)
	f.Post("/deploy", h.DeployTrigger)
	f.Delete("/deploy/:triggerId", h.UndeployTrigger)
	f.Get("/:flowId", h.GetFlow)
	f.Get("/:flowId/nodes", h.GetFlowNodes)
	f.Post("/:flowId/trigger/:triggerId", h.ExecuteFlow)
	f.Post("/:flowId/new-node", h.AddNode)
	f.Get("/:flowId/node/:nodeId", h.GetNode)
	f.Put("/:flowId/node/:nodeId", h.UpdateNode)
	f.Delete("/:flowId/node/:nodeId", h.DeleteNode)
	f.Post("/:flowId/deploy", h.DeployFlow)
	f.Post("/:flowId/undeploy", h.UndeployFlow)

	p := router.Group("/predefined-nodes")
	p.Get("/", h.GetPredefinedNodes)
	p.Post("/", h.CreatePredefinedNode)
	p.Get("/:id", h.GetPredefinedNode)
	p.Delete("/:id", h.DeletePredefinedNode)

	router.Get("/registry/nodes", h.GetRegistryNodes)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Deflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Deflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.CreateFlow(c.Context(), &services.CreateFlowRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.ListFlows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flows)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.FetchByID(c.Context(), c.Params("flowId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) GetFlowNodes(c fiber.Ctx) error {
	nodes, err := h.flowService.FlowNodes(c.Context(), c.Params("flowId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(nodes)
}

// ExecuteFlow runs the flow from the trigger node with the request body as
// payload.
func (h *APIHandlers) ExecuteFlow(c fiber.Ctx) error {
	flowID := c.Params("flowId")
	triggerID := c.Params("triggerId")

	payload := map[string]any{}

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&payload); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	err := h.runner.ExecuteFlow(c.Context(), payload, triggerID, flowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ExecuteFlowResponse{Status: "executed", FlowID: flowID, TriggerID: triggerID})
}

func (h *APIHandlers) AddNode(c fiber.Ctx) error {
	var req AddNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.AddNodeToFlow(c.Context(), c.Params("flowId"), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) GetNode(c fiber.Ctx) error {
	node, err := h.nodeService.GetNode(c.Context(), c.Params("flowId"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.UpdateNode(c.Context(), c.Params("flowId"), c.Params("nodeId"), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	err := h.nodeService.DeleteNode(c.Context(), c.Params("flowId"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) LinkNodes(c fiber.Ctx) error {
	return h.editLink(c, h.nodeService.LinkNodes)
}

func (h *APIHandlers) UnlinkNodes(c fiber.Ctx) error {
	return h.editLink(c, h.nodeService.UnlinkNodes)
}

func (h *APIHandlers) editLink(
	c fiber.Ctx,
	edit func(context.Context, *services.LinkRequest) (*models.FlowNode, error),
) error {
	var req LinkNodesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := edit(c.Context(), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeployFlow(c fiber.Ctx) error {
	flowID := c.Params("flowId")

	jobs, err := h.deployer.DeployFlow(c.Context(), flowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(FlowJobsResponse{Status: "deployed", FlowID: flowID, Jobs: jobs})
}

func (h *APIHandlers) UndeployFlow(c fiber.Ctx) error {
	flowID := c.Params("flowId")

	jobs, err := h.deployer.UndeployFlow(c.Context(), flowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(FlowJobsResponse{Status: "undeployed", FlowID: flowID, Jobs: jobs})
}

func (h *APIHandlers) DeployTrigger(c fiber.Ctx) error {
	var req workflow.DeployTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.deployer.DeployTrigger(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) UndeployTrigger(c fiber.Ctx) error {
	err := h.deployer.UndeployTrigger(c.Context(), c.Params("triggerId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetPredefinedNodes(c fiber.Ctx) error {
	nodes, err := h.predefinedService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(nodes)
}

func (h *APIHandlers) CreatePredefinedNode(c fiber.Ctx) error {
	var req CreatePredefinedNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.predefinedService.Create(c.Context(), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) GetPredefinedNode(c fiber.Ctx) error {
	node, err := h.predefinedService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeletePredefinedNode(c fiber.Ctx) error {
	err := h.predefinedService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetRegistryNodes lists registered identifiers, optionally filtered by the
// category query parameter.
func (h *APIHandlers) GetRegistryNodes(c fiber.Ctx) error {
	category := c.Query("category")
	if category == "" {
		return c.JSON(h.registry.RegisteredNodes())
	}

	if !models.CategoryType(category).IsValid() {
		return badRequest(c, "Invalid category: "+category)
	}

	return c.JSON(RegistryNodesResponse{
		Category: category,
		Nodes:    h.registry.GetNodesByCategory(models.CategoryType(category)),
	})
}
