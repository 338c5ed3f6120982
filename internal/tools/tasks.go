// ABOUTME: Task tool family: fetch, list, create, update, and delete.
// ABOUTME: createTask requires only Name; other fields pass through upstream.

package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/baselinehq/baseline-mcp/internal/sanitize"
	"github.com/baselinehq/baseline-mcp/internal/upstream"
)

// taskStatusEnum is the set of legal task statuses.
const taskStatusEnum = `["To Do","In Progress","Done","Not Required"]`

func taskTools(client *upstream.Client) []*RegisteredTool {
	h := &taskHandlers{client: client}
	return []*RegisteredTool{
		{
			Descriptor: &Descriptor{
				Name:        "getTask",
				Description: "Get a task by its ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string","description":"The task ID"}},"required":["taskId"]}`),
				Annotations: readOnlyAnnotations("Get Task"),
			},
			Handler: h.Get,
		},
		{
			Descriptor: &Descriptor{
				Name:        "listTasks",
				Description: "List tasks, optionally paginated",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"page":{"type":"number","minimum":0,"description":"Page number"}}}`),
				Annotations: readOnlyAnnotations("List Tasks"),
			},
			Handler: h.List,
		},
		{
			Descriptor: &Descriptor{
				Name:        "createTask",
				Description: "Create a new task; only Name is required, all other fields pass through",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"Name":{"type":"string","description":"Task name"},"Status":{"type":"string","enum":` + taskStatusEnum + `}},"required":["Name"]}`),
				Annotations: mutatingAnnotations("Create Task"),
			},
			Handler: h.Create,
		},
		{
			Descriptor: &Descriptor{
				Name:        "updateTask",
				Description: "Update fields on an existing task",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string","description":"The task ID"},"updates":{"type":"object","description":"Fields to update","properties":{"Status":{"type":"string","enum":` + taskStatusEnum + `}}}},"required":["taskId","updates"]}`),
				Annotations: mutatingAnnotations("Update Task"),
			},
			Handler: h.Update,
		},
		{
			Descriptor: &Descriptor{
				Name:        "deleteTask",
				Description: "Delete a task",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string","description":"The task ID"}},"required":["taskId"]}`),
				Annotations: destructiveAnnotations("Delete Task"),
			},
			Handler: h.Delete,
		},
	}
}

type taskHandlers struct {
	client *upstream.Client
}

func (h *taskHandlers) Get(ctx context.Context, args map[string]any) *Result {
	const action = "retrieving task"
	id, err := requireID(args, "taskId")
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodGet, "/task/"+id, nil)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}

func (h *taskHandlers) List(ctx context.Context, args map[string]any) *Result {
	const action = "listing tasks"
	query, err := pageQuery(args)
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodGet, "/task"+query, nil)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}

func (h *taskHandlers) Create(ctx context.Context, args map[string]any) *Result {
	const action = "creating task"
	if err := sanitize.RequireFields(args, "Name"); err != nil {
		return errorResult(action, err)
	}
	if s, ok := args["Name"].(string); !ok || strings.TrimSpace(s) == "" {
		return errorResultf(action, "Name must be a non-empty string")
	}
	payload, err := sanitize.Structure(args)
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodPost, "/task", payload)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}

func (h *taskHandlers) Update(ctx context.Context, args map[string]any) *Result {
	const action = "updating task"
	id, err := requireID(args, "taskId")
	if err != nil {
		return errorResult(action, err)
	}
	updates, err := requireObject(args, "updates")
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodPatch, "/task/"+id, updates)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}

func (h *taskHandlers) Delete(ctx context.Context, args map[string]any) *Result {
	const action = "deleting task"
	id, err := requireID(args, "taskId")
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodDelete, "/task/"+id, nil)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}
