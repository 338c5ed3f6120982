// ABOUTME: Loan tool family: fetch, list, create, update, and ledger retrieval.
// ABOUTME: listLoans reshapes the upstream body and attaches a totalCount.

package tools

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/baselinehq/baseline-mcp/internal/upstream"
)

// loanStatusEnum is the set of legal loan pipeline statuses.
const loanStatusEnum = `["lead","processing","underwriting","approved","closed","servicing","archived"]`

func loanTools(client *upstream.Client) []*RegisteredTool {
	h := &loanHandlers{client: client}
	return []*RegisteredTool{
		{
			Descriptor: &Descriptor{
				Name:        "getLoan",
				Description: "Get a loan by its ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"loanId":{"type":"string","description":"The loan ID"}},"required":["loanId"]}`),
				Annotations: readOnlyAnnotations("Get Loan"),
			},
			Handler: h.Get,
		},
		{
			Descriptor: &Descriptor{
				Name:        "listLoans",
				Description: "List all loans with a total count",
				InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
				Annotations: readOnlyAnnotations("List Loans"),
			},
			Handler: h.List,
		},
		{
			Descriptor: &Descriptor{
				Name:        "createLoan",
				Description: "Create a new loan",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"loanData":{"type":"object","description":"Loan fields to create","properties":{"status":{"type":"string","enum":` + loanStatusEnum + `}}}},"required":["loanData"]}`),
				Annotations: mutatingAnnotations("Create Loan"),
			},
			Handler: h.Create,
		},
		{
			Descriptor: &Descriptor{
				Name:        "updateLoan",
				Description: "Update fields on an existing loan",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"loanId":{"type":"string","description":"The loan ID"},"updates":{"type":"object","description":"Fields to update","properties":{"status":{"type":"string","enum":` + loanStatusEnum + `}}}},"required":["loanId","updates"]}`),
				Annotations: mutatingAnnotations("Update Loan"),
			},
			Handler: h.Update,
		},
		{
			Descriptor: &Descriptor{
				Name:        "getLoanLedger",
				Description: "Get the ledger entries for a loan",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"loanId":{"type":"string","description":"The loan ID"}},"required":["loanId"]}`),
				Annotations: readOnlyAnnotations("Get Loan Ledger"),
			},
			Handler: h.Ledger,
		},
	}
}

type loanHandlers struct {
	client *upstream.Client
}

func (h *loanHandlers) Get(ctx context.Context, args map[string]any) *Result {
	const action = "retrieving loan"
	id, err := requireID(args, "loanId")
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodGet, "/loan/"+id, nil)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}

func (h *loanHandlers) List(ctx context.Context, _ map[string]any) *Result {
	const action = "listing loans"
	body, err := h.client.Request(ctx, http.MethodGet, "/loan", nil)
	if err != nil {
		return errorResult(action, err)
	}

	// The upstream list shape varies: prefer a "loans" field, otherwise
	// treat the whole body as the list.
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errorResult(action, err)
	}
	var loans []any
	switch v := parsed.(type) {
	case map[string]any:
		if arr, ok := v["loans"].([]any); ok {
			loans = arr
		} else {
			loans = []any{v}
		}
	case []any:
		loans = v
	default:
		loans = []any{}
	}

	return textResult(map[string]any{
		"loans":      loans,
		"totalCount": len(loans),
	})
}

func (h *loanHandlers) Create(ctx context.Context, args map[string]any) *Result {
	const action = "creating loan"
	data, err := requireObject(args, "loanData")
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodPost, "/loan", data)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}

func (h *loanHandlers) Update(ctx context.Context, args map[string]any) *Result {
	const action = "updating loan"
	id, err := requireID(args, "loanId")
	if err != nil {
		return errorResult(action, err)
	}
	updates, err := requireObject(args, "updates")
	if err != nil {
		return errorResult(action, err)
	}
	// The update verb is configurable; the upstream contract for this
	// endpoint is not firmly documented.
	body, err := h.client.Request(ctx, h.client.UpdateLoanMethod(), "/loan/"+id, updates)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}

func (h *loanHandlers) Ledger(ctx context.Context, args map[string]any) *Result {
	const action = "retrieving loan ledger"
	id, err := requireID(args, "loanId")
	if err != nil {
		return errorResult(action, err)
	}
	body, err := h.client.Request(ctx, http.MethodGet, "/loan/"+id+"/ledger", nil)
	if err != nil {
		return errorResult(action, err)
	}
	return rawResult(body)
}
