package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
)

type CreateTraceLinkInput struct {
	Body struct {
		ProjectID  uuid.UUID `json:"project_id"`
		SourceType string    `json:"source_type" enum:"requirement,test,document"`
		SourceID   uuid.UUID `json:"source_id"`
		TargetType string    `json:"target_type" enum:"requirement,test,document"`
		TargetID   uuid.UUID `json:"target_id"`
		LinkType   string    `json:"link_type" enum:"verifies,satisfies,derives_from,implements"`
		Confidence float64   `json:"confidence,omitempty" minimum:"0" maximum:"1" doc:"0-1 from AI-assisted linking, 1 for manual links"`
		Validated  bool      `json:"validated,omitempty" doc:"Human-confirmed link"`
	}
}

type TraceLinkOutput struct {
	Body *TraceLink
}

type ListTraceLinksInput struct {
	ProjectID      uuid.UUID `path:"id" doc:"Project ID"`
	IncludeDeleted bool      `query:"include_deleted"`
}

type ListTraceLinksOutput struct {
	Body []*TraceLink
}

type GetTraceLinkInput struct {
	ID             uuid.UUID `path:"id" doc:"Trace link ID"`
	IncludeDeleted bool      `query:"include_deleted"`
}

type UpdateTraceLinkInput struct {
	ID   uuid.UUID `path:"id" doc:"Trace link ID"`
	Body struct {
		ExpectedVersion int64    `json:"expected_version" minimum:"1"`
		Confidence      *float64 `json:"confidence,omitempty" minimum:"0" maximum:"1"`
		Validated       *bool    `json:"validated,omitempty"`
	}
}

type DeleteTraceLinkInput struct {
	ID      uuid.UUID `path:"id" doc:"Trace link ID"`
	Version int64     `query:"version" minimum:"1"`
}

// RegisterTraceLinkRoutes wires the traceability relation endpoints.
// Endpoints of a link are immutable; only confidence and validation change.
func RegisterTraceLinkRoutes(api huma.API, store *entitystore.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-trace-link",
		Method:      http.MethodPost,
		Path:        "/trace-links",
		Summary:     "Create a typed relation between two artifacts",
		Tags:        []string{"Traceability"},
	}, func(ctx context.Context, input *CreateTraceLinkInput) (*TraceLinkOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		link, err := store.CreateTraceLink(ctx, p, entitystore.TraceLinkInput{
			ProjectID:  input.Body.ProjectID,
			SourceType: domain.ResourceType(input.Body.SourceType),
			SourceID:   input.Body.SourceID,
			TargetType: domain.ResourceType(input.Body.TargetType),
			TargetID:   input.Body.TargetID,
			LinkType:   domain.LinkType(input.Body.LinkType),
			Confidence: input.Body.Confidence,
			Validated:  input.Body.Validated,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return &TraceLinkOutput{Body: toTraceLink(link)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-trace-links",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/trace-links",
		Summary:     "List a project's trace links",
		Tags:        []string{"Traceability"},
	}, func(ctx context.Context, input *ListTraceLinksInput) (*ListTraceLinksOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		links, err := store.ListTraceLinks(ctx, p, input.ProjectID, input.IncludeDeleted)
		if err != nil {
			return nil, mapError(err)
		}
		return &ListTraceLinksOutput{Body: toTraceLinks(links)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-trace-link",
		Method:      http.MethodGet,
		Path:        "/trace-links/{id}",
		Summary:     "Get a trace link by ID",
		Tags:        []string{"Traceability"},
	}, func(ctx context.Context, input *GetTraceLinkInput) (*TraceLinkOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		link, err := store.GetTraceLink(ctx, p, input.ID, input.IncludeDeleted)
		if err != nil {
			return nil, mapError(err)
		}
		return &TraceLinkOutput{Body: toTraceLink(link)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-trace-link",
		Method:      http.MethodPatch,
		Path:        "/trace-links/{id}",
		Summary:     "Validate or re-score a trace link",
		Tags:        []string{"Traceability"},
	}, func(ctx context.Context, input *UpdateTraceLinkInput) (*TraceLinkOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		link, err := store.UpdateTraceLink(ctx, p, entitystore.TraceLinkUpdate{
			ID:              input.ID,
			ExpectedVersion: input.Body.ExpectedVersion,
			Confidence:      input.Body.Confidence,
			Validated:       input.Body.Validated,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return &TraceLinkOutput{Body: toTraceLink(link)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-trace-link",
		Method:      http.MethodDelete,
		Path:        "/trace-links/{id}",
		Summary:     "Soft-delete a trace link",
		Tags:        []string{"Traceability"},
	}, func(ctx context.Context, input *DeleteTraceLinkInput) (*struct{}, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := store.DeleteTraceLink(ctx, p, input.ID, input.Version); err != nil {
			return nil, mapError(err)
		}
		return nil, nil
	})
}
