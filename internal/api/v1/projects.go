package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
)

type CreateProjectInput struct {
	Body struct {
		Name      string   `json:"name" minLength:"1" maxLength:"255" doc:"Project name"`
		Standards []string `json:"standards,omitempty" doc:"Regulatory framework identifiers, e.g. iec_62304"`
		RiskClass string   `json:"risk_class" enum:"class_i,class_ii,class_iii" doc:"Device risk class"`
	}
}

type ProjectOutput struct {
	Body *Project
}

type ListProjectsOutput struct {
	Body []*Project
}

type GetProjectInput struct {
	ID             uuid.UUID `path:"id" doc:"Project ID"`
	IncludeDeleted bool      `query:"include_deleted" doc:"Include a soft-deleted project, subject to authorization"`
}

type UpdateProjectInput struct {
	ID   uuid.UUID `path:"id" doc:"Project ID"`
	Body struct {
		ExpectedVersion int64    `json:"expected_version" minimum:"1" doc:"Version the update was prepared against"`
		Name            *string  `json:"name,omitempty" maxLength:"255"`
		Standards       []string `json:"standards,omitempty" doc:"Replacement standards set"`
		RiskClass       *string  `json:"risk_class,omitempty" enum:"class_i,class_ii,class_iii"`
		Stage           *string  `json:"stage,omitempty" enum:"planning,design_controls,development,verification,validation,maintenance"`
		Visibility      *string  `json:"visibility,omitempty" enum:"private,organization,public"`
		Reason          string   `json:"reason,omitempty" doc:"Required for backward stage corrections, recorded in the audit trail"`
	}
}

type DeleteProjectInput struct {
	ID      uuid.UUID `path:"id" doc:"Project ID"`
	Version int64     `query:"version" minimum:"1" doc:"Version the delete was prepared against"`
}

// RegisterProjectRoutes wires project lifecycle endpoints.
func RegisterProjectRoutes(api huma.API, store *entitystore.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-project",
		Method:      http.MethodPost,
		Path:        "/projects",
		Summary:     "Create a compliance project",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *CreateProjectInput) (*ProjectOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		proj, err := store.CreateProject(ctx, p, input.Body.Name, input.Body.Standards, domain.RiskClassification(input.Body.RiskClass))
		if err != nil {
			return nil, mapError(err)
		}
		return &ProjectOutput{Body: toProject(proj)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects visible to the caller",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, _ *struct{}) (*ListProjectsOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		projects, err := store.ListProjects(ctx, p)
		if err != nil {
			return nil, mapError(err)
		}
		return &ListProjectsOutput{Body: toProjects(projects)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get a project by ID",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *GetProjectInput) (*ProjectOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		proj, err := store.GetProject(ctx, p, input.ID, input.IncludeDeleted)
		if err != nil {
			return nil, mapError(err)
		}
		return &ProjectOutput{Body: toProject(proj)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update a project with optimistic versioning",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *UpdateProjectInput) (*ProjectOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		upd := entitystore.ProjectUpdate{
			ID:              input.ID,
			ExpectedVersion: input.Body.ExpectedVersion,
			Name:            input.Body.Name,
			Standards:       input.Body.Standards,
			Reason:          input.Body.Reason,
		}
		if input.Body.RiskClass != nil {
			rc := domain.RiskClassification(*input.Body.RiskClass)
			upd.RiskClass = &rc
		}
		if input.Body.Stage != nil {
			st := domain.LifecycleStage(*input.Body.Stage)
			upd.Stage = &st
		}
		if input.Body.Visibility != nil {
			v := domain.Visibility(*input.Body.Visibility)
			upd.Visibility = &v
		}
		proj, err := store.UpdateProject(ctx, p, upd)
		if err != nil {
			return nil, mapError(err)
		}
		return &ProjectOutput{Body: toProject(proj)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Soft-delete a project and cascade to its artifacts",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *DeleteProjectInput) (*struct{}, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := store.DeleteProject(ctx, p, input.ID, input.Version); err != nil {
			return nil, mapError(err)
		}
		return nil, nil
	})
}
