package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/entitystore"
)

type ListProjectEventsInput struct {
	ProjectID uuid.UUID `path:"id" doc:"Project ID"`
	Limit     int       `query:"limit" minimum:"1" maximum:"1000" default:"100"`
	Offset    int       `query:"offset" minimum:"0" default:"0"`
}

type ListOrgEventsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"1000" default:"100"`
	Offset int `query:"offset" minimum:"0" default:"0"`
}

type AuditEventsOutput struct {
	Body []*AuditEvent
}

type VerifyChainInput struct {
	ProjectID uuid.UUID `path:"id" doc:"Project ID"`
}

type VerifyChainOutput struct {
	Body ChainVerification
}

type PurgeInput struct {
	ProjectID uuid.UUID `path:"id" doc:"Project ID"`
}

type PurgeOutput struct {
	Body struct {
		Purged bool        `json:"purged" doc:"False when nothing was older than the retention period"`
		Event  *AuditEvent `json:"event,omitempty" doc:"The signed retention event checkpointing the removed window"`
	}
}

// RegisterAuditRoutes wires the audit trail read side. The retention period
// is fixed in configuration, not caller-supplied, so a purge can never
// remove more than policy allows.
func RegisterAuditRoutes(api huma.API, reader *entitystore.AuditReader, retention time.Duration) {
	huma.Register(api, huma.Operation{
		OperationID: "list-project-audit-events",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/audit/events",
		Summary:     "List a project's audit trail, newest first",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListProjectEventsInput) (*AuditEventsOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		events, err := reader.ListProjectEvents(ctx, p, input.ProjectID, input.Limit, input.Offset)
		if err != nil {
			return nil, mapError(err)
		}
		return &AuditEventsOutput{Body: toAuditEvents(events)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-org-audit-events",
		Method:      http.MethodGet,
		Path:        "/audit/events",
		Summary:     "List the organization-level audit trail, newest first",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListOrgEventsInput) (*AuditEventsOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		events, err := reader.ListOrgEvents(ctx, p, input.Limit, input.Offset)
		if err != nil {
			return nil, mapError(err)
		}
		return &AuditEventsOutput{Body: toAuditEvents(events)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-audit-chain",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/audit/verify",
		Summary:     "Walk a project's audit chain and report the first broken link",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *VerifyChainInput) (*VerifyChainOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		res, err := reader.VerifyProjectChain(ctx, p, input.ProjectID)
		if err != nil {
			return nil, mapError(err)
		}
		return &VerifyChainOutput{Body: toChainVerification(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "purge-audit-events",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/audit/purge",
		Summary:     "Remove audit entries past the retention period",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *PurgeInput) (*PurgeOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		event, err := reader.PurgeProjectEvents(ctx, p, input.ProjectID, retention)
		if err != nil {
			return nil, mapError(err)
		}
		out := &PurgeOutput{}
		out.Body.Purged = event != nil
		if event != nil {
			out.Body.Event = toAuditEvent(event)
		}
		return out, nil
	})
}
