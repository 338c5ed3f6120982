// ABOUTME: Generic party tool family covering borrowers, vendors, and investors.
// ABOUTME: One parametrized implementation generates all 21 party tools.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/baselinehq/baseline-mcp/internal/upstream"
)

// partyTools builds the seven tools for one party resource. The three
// party families share identical shapes upstream, so they differ only
// in the resource segment and argument names.
func partyTools(client *upstream.Client, resource, title string) []*RegisteredTool {
	h := &partyHandlers{client: client, resource: resource}
	idField := resource + "Id"
	dataField := resource + "Data"

	idSchema := json.RawMessage(fmt.Sprintf(
		`{"type":"object","properties":{"%s":{"type":"string","description":"The %s ID"}},"required":["%s"]}`,
		idField, resource, idField))
	connectSchema := json.RawMessage(fmt.Sprintf(
		`{"type":"object","properties":{"%s":{"type":"string","description":"The %s ID"},"loanId":{"type":"string","description":"The loan ID"}},"required":["%s","loanId"]}`,
		idField, resource, idField))

	return []*RegisteredTool{
		{
			Descriptor: &Descriptor{
				Name:        "create" + title,
				Description: fmt.Sprintf("Create a new %s", resource),
				InputSchema: json.RawMessage(fmt.Sprintf(
					`{"type":"object","properties":{"%s":{"type":"object","description":"%s fields to create"}},"required":["%s"]}`,
					dataField, title, dataField)),
				Annotations: mutatingAnnotations("Create " + title),
			},
			Handler: h.create(dataField),
		},
		{
			Descriptor: &Descriptor{
				Name:        "list" + title + "s",
				Description: fmt.Sprintf("List %ss, optionally paginated", resource),
				InputSchema: json.RawMessage(`{"type":"object","properties":{"page":{"type":"number","minimum":0,"description":"Page number"}}}`),
				Annotations: readOnlyAnnotations("List " + title + "s"),
			},
			Handler: h.list,
		},
		{
			Descriptor: &Descriptor{
				Name:        "get" + title,
				Description: fmt.Sprintf("Get a %s by its ID", resource),
				InputSchema: idSchema,
				Annotations: readOnlyAnnotations("Get " + title),
			},
			Handler: h.get(idField),
		},
		{
			Descriptor: &Descriptor{
				Name:        "update" + title,
				Description: fmt.Sprintf("Update fields on an existing %s", resource),
				InputSchema: json.RawMessage(fmt.Sprintf(
					`{"type":"object","properties":{"%s":{"type":"string","description":"The %s ID"},"updates":{"type":"object","description":"Fields to update"}},"required":["%s","updates"]}`,
					idField, resource, idField)),
				Annotations: mutatingAnnotations("Update " + title),
			},
			Handler: h.update(idField),
		},
		{
			Descriptor: &Descriptor{
				Name:        "delete" + title,
				Description: fmt.Sprintf("Delete a %s", resource),
				InputSchema: idSchema,
				Annotations: destructiveAnnotations("Delete " + title),
			},
			Handler: h.del(idField),
		},
		{
			Descriptor: &Descriptor{
				Name:        "connect" + title,
				Description: fmt.Sprintf("Connect a %s to a loan", resource),
				InputSchema: connectSchema,
				Annotations: mutatingAnnotations("Connect " + title),
			},
			Handler: h.connect(idField),
		},
		{
			Descriptor: &Descriptor{
				Name:        "disconnect" + title,
				Description: fmt.Sprintf("Disconnect a %s from a loan", resource),
				InputSchema: connectSchema,
				Annotations: mutatingAnnotations("Disconnect " + title),
			},
			Handler: h.disconnect(idField),
		},
	}
}

type partyHandlers struct {
	client   *upstream.Client
	resource string
}

func (h *partyHandlers) create(dataField string) Handler {
	action := "creating " + h.resource
	return func(ctx context.Context, args map[string]any) *Result {
		data, err := requireObject(args, dataField)
		if err != nil {
			return errorResult(action, err)
		}
		body, err := h.client.Request(ctx, http.MethodPost, "/"+h.resource, data)
		if err != nil {
			return errorResult(action, err)
		}
		return rawResult(body)
	}
}

func (h *partyHandlers) list(ctx context.Context, args map[string]any) *Result {
	action := "listing " + h.resource + "s"
	query, err := pageQuery(args)
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodGet, "/"+h.resource+query, nil)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}

func (h *partyHandlers) get(idField string) Handler {
	action := "retrieving " + h.resource
	return func(ctx context.Context, args map[string]any) *Result {
		id, err := requireID(args, idField)
		if err != nil {
			return errorResult(action, err)
		}
		body, err := h.client.Request(ctx, http.MethodGet, "/"+h.resource+"/"+id, nil)
		if err != nil {
			return errorResult(action, err)
		}
		return rawResult(body)
	}
}

func (h *partyHandlers) update(idField string) Handler {
	action := "updating " + h.resource
	return func(ctx context.Context, args map[string]any) *Result {
		id, err := requireID(args, idField)
		if err != nil {
			return errorResult(action, err)
		}
		updates, err := requireObject(args, "updates")
		if err != nil {
			return errorResult(action, err)
		}
		body, err := h.client.Request(ctx, http.MethodPatch, "/"+h.resource+"/"+id, updates)
		if err != nil {
			return errorResult(action, err)
		}
		return rawResult(body)
	}
}

func (h *partyHandlers) del(idField string) Handler {
	action := "deleting " + h.resource
	return func(ctx context.Context, args map[string]any) *Result {
		id, err := requireID(args, idField)
		if err != nil {
			return errorResult(action, err)
		}
		body, err := h.client.Request(ctx, http.MethodDelete, "/"+h.resource+"/"+id, nil)
		if err != nil {
			return errorResult(action, err)
		}
		return rawResult(body)
	}
}

func (h *partyHandlers) connect(idField string) Handler {
	action := "connecting " + h.resource
	return h.connection(idField, http.MethodPut, action)
}

func (h *partyHandlers) disconnect(idField string) Handler {
	action := "disconnecting " + h.resource
	return h.connection(idField, http.MethodDelete, action)
}

// connection handles the nested .../connect/{loanId} endpoints, which
// take two identifiers and an empty body.
func (h *partyHandlers) connection(idField, method, action string) Handler {
	return func(ctx context.Context, args map[string]any) *Result {
		id, err := requireID(args, idField)
		if err != nil {
			return errorResult(action, err)
		}
		loanID, err := requireID(args, "loanId")
		if err != nil {
			return errorResult(action, err)
		}
		body, err := h.client.Request(ctx, method, "/"+h.resource+"/"+id+"/connect/"+loanID, nil)
		if err != nil {
			return errorResult(action, err)
		}
		return rawResult(body)
	}
}
