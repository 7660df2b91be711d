package handlers

import (
	"context"

	"taskManager/internal/models/task"
	"taskManager/internal/service"
)

type TaskService interface {
	CreateTask(context.Context, service.CreateTaskInput) (*task.Task, error)
	GetTaskByID(context.Context, int64) (*task.Task, error)
	ListTasks(context.Context, service.ListTasksInput) (*service.TaskPage, error)
	UpdateTask(context.Context, int64, service.UpdateTaskInput) (*task.Task, error)
	DeleteTask(context.Context, int64) error
}
