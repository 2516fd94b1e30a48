// Package web provides HTTP handlers and REST API endpoints for job and
// workflow management.
package web

import (
	"net/http"
	"time"

	"github.com/deskpilot/deskpilot/pkg/jobs"
	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	manager     *jobs.Manager
	queue       *jobs.Queue
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	manager *jobs.Manager,
	queue *jobs.Queue,
	persist persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		manager:     manager,
		queue:       queue,
		persistence: persist,
		validator:   validate,
	}
}

// Register mounts the API routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Post("/jobs", h.SubmitJob)
	app.Get("/jobs", h.GetJobs)
	app.Get("/jobs/:id", h.GetJob)
	app.Delete("/jobs/:id", h.CancelJob)
	app.Post("/jobs/:id/complete", h.CompleteJob)

	app.Get("/workflows", h.GetWorkflows)
	app.Get("/workflows/:id", h.GetWorkflow)
	app.Put("/workflows/:id", h.PutWorkflow)
	app.Delete("/workflows/:id", h.DeleteWorkflow)
}

func (h *APIHandlers) SubmitJob(c fiber.Ctx) error {
	var req SubmitJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.persistence.WorkflowByID(c.Context(), req.WorkflowID)
	if err != nil {
		return handleLookupError(c, err)
	}

	if err := validateRequiredInputs(workflow, req.Inputs); err != nil {
		return badRequest(c, err.Error())
	}

	job := h.manager.Create(workflow.ID, req.Inputs, req.PID, len(workflow.Steps))

	position, err := h.queue.Submit(c.Context(), job, workflow)
	if err != nil {
		return conflict(c, err.Error())
	}

	return c.Status(fiber.StatusAccepted).JSON(SubmitJobResponse{
		JobID:         job.ID,
		Status:        job.Status,
		QueuePosition: position,
	})
}

func (h *APIHandlers) GetJobs(c fiber.Ctx) error {
	all := h.manager.Jobs()

	out := make([]JobResponse, 0, len(all))
	for _, job := range all {
		out = append(out, TransformJobResponse(job))
	}

	return c.JSON(fiber.Map{"jobs": out, "count": len(out)})
}

// GetJob is the polling endpoint: it also drives process-exit completion
// inference for running jobs.
func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Job ID is required")
	}

	if _, err := h.manager.Poll(c.Context(), id); err != nil {
		return handleLookupError(c, err)
	}

	job, err := h.manager.Job(id)
	if err != nil {
		return handleLookupError(c, err)
	}

	return c.JSON(TransformJobResponse(job))
}

func (h *APIHandlers) CancelJob(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Job ID is required")
	}

	if err := h.manager.Cancel(c.Context(), id); err != nil {
		if jobs.IsJobNotFound(err) {
			return notFound(c, "Job not found")
		}

		return conflict(c, err.Error())
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) CompleteJob(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Job ID is required")
	}

	req := CompleteJobRequest{Status: models.JobStatusDone}

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}

		if req.Status == "" {
			req.Status = models.JobStatusDone
		}
	}

	if err := h.manager.ForceComplete(c.Context(), id, req.Status, req.Reason); err != nil {
		if jobs.IsJobNotFound(err) {
			return notFound(c, "Job not found")
		}

		return conflict(c, err.Error())
	}

	job, err := h.manager.Job(id)
	if err != nil {
		return handleLookupError(c, err)
	}

	return c.JSON(TransformJobResponse(job))
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows, "count": len(workflows)})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleLookupError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) PutWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	workflow.ID = id

	if err := h.validator.Struct(workflow); err != nil {
		return badRequest(c, err.Error())
	}

	for i, step := range workflow.Steps {
		if !step.Kind.Valid() {
			return badRequest(c, "step "+step.Name+" has unknown kind "+string(step.Kind))
		}

		if step.ID == "" {
			workflow.Steps[i].ID = "step-" + step.Name
		}
	}

	if err := h.persistence.SaveWorkflow(c.Context(), &workflow); err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.persistence.DeleteWorkflow(c.Context(), id); err != nil {
		return handleLookupError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repoErr := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if repoErr != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func validateRequiredInputs(workflow *models.Workflow, inputs map[string]any) error {
	for _, in := range workflow.Inputs {
		if !in.Required {
			continue
		}

		if _, ok := inputs[in.Name]; !ok {
			return &missingInputError{name: in.Name}
		}
	}

	return nil
}

type missingInputError struct{ name string }

func (e *missingInputError) Error() string {
	return "missing required input: " + e.name
}
