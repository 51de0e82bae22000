package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/veritrail/veritrail/internal/entitystore"
)

type ProvisionOrganizationInput struct {
	Body struct {
		Name   string `json:"name" minLength:"1" maxLength:"255" doc:"Organization name"`
		Region string `json:"region" minLength:"1" doc:"Data-residency region, e.g. eu-west-1"`
	}
}

type OrganizationOutput struct {
	Body *Organization
}

type UpdateOrganizationInput struct {
	Body struct {
		Name   string `json:"name" minLength:"1" maxLength:"255" doc:"Organization name"`
		Region string `json:"region" minLength:"1" doc:"Data-residency region"`
	}
}

// RegisterProvisioningRoutes wires tenant provisioning. Provisioning is an
// operator action; the server mounts it behind the admin route group.
func RegisterProvisioningRoutes(api huma.API, store *entitystore.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "provision-organization",
		Method:      http.MethodPost,
		Path:        "/organizations",
		Summary:     "Provision a new tenant organization",
		Tags:        []string{"Organizations"},
	}, func(ctx context.Context, input *ProvisionOrganizationInput) (*OrganizationOutput, error) {
		org, err := store.ProvisionOrganization(ctx, input.Body.Name, input.Body.Region)
		if err != nil {
			return nil, mapError(err)
		}
		return &OrganizationOutput{Body: toOrganization(org)}, nil
	})
}

// RegisterOrganizationRoutes wires the tenant directory endpoints operating
// on the caller's own organization.
func RegisterOrganizationRoutes(api huma.API, store *entitystore.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "get-organization",
		Method:      http.MethodGet,
		Path:        "/organization",
		Summary:     "Get the caller's organization",
		Tags:        []string{"Organizations"},
	}, func(ctx context.Context, _ *struct{}) (*OrganizationOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		org, err := store.GetOrganization(ctx, p)
		if err != nil {
			return nil, mapError(err)
		}
		return &OrganizationOutput{Body: toOrganization(org)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-organization",
		Method:      http.MethodPut,
		Path:        "/organization",
		Summary:     "Update the caller's organization",
		Tags:        []string{"Organizations"},
	}, func(ctx context.Context, input *UpdateOrganizationInput) (*OrganizationOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		org, err := store.UpdateOrganization(ctx, p, input.Body.Name, input.Body.Region)
		if err != nil {
			return nil, mapError(err)
		}
		return &OrganizationOutput{Body: toOrganization(org)}, nil
	})
}
