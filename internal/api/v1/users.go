package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
)

type CreateUserInput struct {
	Body struct {
		ExternalID string   `json:"external_id" minLength:"1" doc:"Upstream IdP subject"`
		Email      string   `json:"email" format:"email"`
		Name       string   `json:"name" maxLength:"255"`
		Roles      []string `json:"roles" minItems:"1" doc:"Role identifiers, e.g. qa_engineer"`
	}
}

type UserOutput struct {
	Body *User
}

type ListUsersOutput struct {
	Body []*User
}

type GetUserInput struct {
	ID uuid.UUID `path:"id" doc:"User ID"`
}

type UpdateUserInput struct {
	ID   uuid.UUID `path:"id" doc:"User ID"`
	Body struct {
		Name   *string  `json:"name,omitempty" maxLength:"255"`
		Roles  []string `json:"roles,omitempty" doc:"Replacement role set"`
		Status *string  `json:"status,omitempty" enum:"active,suspended,deactivated"`
	}
}

func toRoles(in []string) []domain.Role {
	if in == nil {
		return nil
	}
	out := make([]domain.Role, len(in))
	for i, r := range in {
		out[i] = domain.Role(r)
	}
	return out
}

// RegisterUserRoutes wires account management within the caller's tenant.
func RegisterUserRoutes(api huma.API, store *entitystore.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-user",
		Method:      http.MethodPost,
		Path:        "/users",
		Summary:     "Create a member account",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *CreateUserInput) (*UserOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		u, err := store.CreateUser(ctx, p, entitystore.UserInput{
			ExternalID: input.Body.ExternalID,
			Email:      input.Body.Email,
			Name:       input.Body.Name,
			Roles:      toRoles(input.Body.Roles),
		})
		if err != nil {
			return nil, mapError(err)
		}
		return &UserOutput{Body: toUser(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List members of the caller's organization",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		users, err := store.ListUsers(ctx, p)
		if err != nil {
			return nil, mapError(err)
		}
		return &ListUsersOutput{Body: toUsers(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get a member account",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *GetUserInput) (*UserOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		u, err := store.GetUser(ctx, p, input.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return &UserOutput{Body: toUser(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPatch,
		Path:        "/users/{id}",
		Summary:     "Update a member's name, roles, or account status",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		upd := entitystore.UserUpdate{
			ID:    input.ID,
			Name:  input.Body.Name,
			Roles: toRoles(input.Body.Roles),
		}
		if input.Body.Status != nil {
			st := domain.AccountStatus(*input.Body.Status)
			upd.Status = &st
		}
		u, err := store.UpdateUser(ctx, p, upd)
		if err != nil {
			return nil, mapError(err)
		}
		return &UserOutput{Body: toUser(u)}, nil
	})
}
