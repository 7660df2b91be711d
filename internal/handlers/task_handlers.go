package handlers

import (
	"net/http"
	"time"

	"taskManager/internal/handlers/dto"
	"taskManager/internal/logger"
	"taskManager/internal/middleware"
	"taskManager/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
	}
}

// Routes монтируется под /api/v1/tasks.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.PostTask)
	r.Get("/", h.ListTasks)
	r.Get("/{id}", h.GetTaskByID)
	r.Put("/{id}", h.UpdateTaskByID)
	r.Patch("/{id}", h.UpdateTaskByID)
	r.Delete("/{id}", h.DeleteTaskByID)
	return r
}

func (h *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var request service.CreateTaskInput
	if err := decodeJSON(w, r, &request); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	created, err := h.TaskService.CreateTask(r.Context(), request)
	if err != nil {
		handleError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Int64("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	writeJSON(w, http.StatusCreated, dto.FromTask(created))
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	in, err := parseListQuery(r)
	if err != nil {
		handleError(w, r, err, "list_tasks")
		return
	}

	page, err := h.TaskService.ListTasks(r.Context(), in)
	if err != nil {
		handleError(w, r, err, "list_tasks")
		return
	}

	writeJSON(w, http.StatusOK, dto.FromPage(page))
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handleError(w, r, err, "get_task")
		return
	}

	found, err := h.TaskService.GetTaskByID(r.Context(), id)
	if err != nil {
		handleError(w, r, err, "get_task")
		return
	}

	writeJSON(w, http.StatusOK, dto.FromTask(found))
}

// UpdateTaskByID обслуживает и PUT, и PATCH: оба частичные.
func (h *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseID(r)
	if err != nil {
		handleError(w, r, err, "update_task")
		return
	}

	var request service.UpdateTaskInput
	if err := decodeJSON(w, r, &request); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	updated, err := h.TaskService.UpdateTask(r.Context(), id, request)
	if err != nil {
		handleError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(updated))
}

func (h *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parseID(r)
	if err != nil {
		handleError(w, r, err, "delete_task")
		return
	}

	if err := h.TaskService.DeleteTask(r.Context(), id); err != nil {
		handleError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}
