package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
)

type CreateRequirementInput struct {
	Body struct {
		ProjectID  uuid.UUID  `json:"project_id"`
		ParentID   *uuid.UUID `json:"parent_id,omitempty" doc:"Parent requirement in the same project"`
		OrderIndex int        `json:"order_index,omitempty" doc:"Sibling order"`
		Text       string     `json:"text" minLength:"1"`
		RiskClass  string     `json:"risk_class" enum:"A,B,C,D"`
		Normative  bool       `json:"normative,omitempty"`
		SourceSys  string     `json:"source_sys,omitempty" doc:"Originating ALM system"`
		SourceRef  string     `json:"source_ref,omitempty" doc:"Identifier in the originating system"`
	}
}

type RequirementOutput struct {
	Body *Requirement
}

type ListRequirementsInput struct {
	ProjectID      uuid.UUID `path:"id" doc:"Project ID"`
	IncludeDeleted bool      `query:"include_deleted"`
}

type ListRequirementsOutput struct {
	Body []*Requirement
}

type GetRequirementInput struct {
	ID             uuid.UUID `path:"id" doc:"Requirement ID"`
	IncludeDeleted bool      `query:"include_deleted"`
}

type UpdateRequirementInput struct {
	ID   uuid.UUID `path:"id" doc:"Requirement ID"`
	Body struct {
		ExpectedVersion int64      `json:"expected_version" minimum:"1"`
		Text            *string    `json:"text,omitempty" minLength:"1"`
		RiskClass       *string    `json:"risk_class,omitempty" enum:"A,B,C,D"`
		Status          *string    `json:"status,omitempty" enum:"draft,under_review,approved,rejected" doc:"Must follow the review workflow"`
		Normative       *bool      `json:"normative,omitempty"`
		OrderIndex      *int       `json:"order_index,omitempty"`
		ParentID        *uuid.UUID `json:"parent_id,omitempty" doc:"Reparent under another requirement in the same project"`
		ClearParent     bool       `json:"clear_parent,omitempty" doc:"Detach from the current parent, making this a root"`
	}
}

type DeleteRequirementInput struct {
	ID      uuid.UUID `path:"id" doc:"Requirement ID"`
	Version int64     `query:"version" minimum:"1"`
}

// RegisterRequirementRoutes wires the requirement tree endpoints.
func RegisterRequirementRoutes(api huma.API, store *entitystore.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-requirement",
		Method:      http.MethodPost,
		Path:        "/requirements",
		Summary:     "Create a requirement, optionally under a parent",
		Tags:        []string{"Requirements"},
	}, func(ctx context.Context, input *CreateRequirementInput) (*RequirementOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		req, err := store.CreateRequirement(ctx, p, entitystore.RequirementInput{
			ProjectID:  input.Body.ProjectID,
			ParentID:   input.Body.ParentID,
			OrderIndex: input.Body.OrderIndex,
			Text:       input.Body.Text,
			RiskClass:  domain.RiskClass(input.Body.RiskClass),
			Normative:  input.Body.Normative,
			SourceSys:  input.Body.SourceSys,
			SourceRef:  input.Body.SourceRef,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return &RequirementOutput{Body: toRequirement(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requirements",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/requirements",
		Summary:     "List a project's requirements in tree order",
		Tags:        []string{"Requirements"},
	}, func(ctx context.Context, input *ListRequirementsInput) (*ListRequirementsOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		reqs, err := store.ListRequirements(ctx, p, input.ProjectID, input.IncludeDeleted)
		if err != nil {
			return nil, mapError(err)
		}
		return &ListRequirementsOutput{Body: toRequirements(reqs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-requirement",
		Method:      http.MethodGet,
		Path:        "/requirements/{id}",
		Summary:     "Get a requirement by ID",
		Tags:        []string{"Requirements"},
	}, func(ctx context.Context, input *GetRequirementInput) (*RequirementOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		req, err := store.GetRequirement(ctx, p, input.ID, input.IncludeDeleted)
		if err != nil {
			return nil, mapError(err)
		}
		return &RequirementOutput{Body: toRequirement(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-requirement",
		Method:      http.MethodPatch,
		Path:        "/requirements/{id}",
		Summary:     "Update a requirement with optimistic versioning",
		Tags:        []string{"Requirements"},
	}, func(ctx context.Context, input *UpdateRequirementInput) (*RequirementOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		upd := entitystore.RequirementUpdate{
			ID:              input.ID,
			ExpectedVersion: input.Body.ExpectedVersion,
			Text:            input.Body.Text,
			Normative:       input.Body.Normative,
			OrderIndex:      input.Body.OrderIndex,
			ParentID:        input.Body.ParentID,
			ClearParent:     input.Body.ClearParent,
		}
		if input.Body.RiskClass != nil {
			rc := domain.RiskClass(*input.Body.RiskClass)
			upd.RiskClass = &rc
		}
		if input.Body.Status != nil {
			st := domain.RequirementStatus(*input.Body.Status)
			upd.Status = &st
		}
		req, err := store.UpdateRequirement(ctx, p, upd)
		if err != nil {
			return nil, mapError(err)
		}
		return &RequirementOutput{Body: toRequirement(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-requirement",
		Method:      http.MethodDelete,
		Path:        "/requirements/{id}",
		Summary:     "Soft-delete a requirement and invalidate its trace links",
		Tags:        []string{"Requirements"},
	}, func(ctx context.Context, input *DeleteRequirementInput) (*struct{}, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := store.DeleteRequirement(ctx, p, input.ID, input.Version); err != nil {
			return nil, mapError(err)
		}
		return nil, nil
	})
}
