package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
	"github.com/veritrail/veritrail/internal/trace"
)

type ScoreInput struct {
	ProjectID uuid.UUID `path:"id" doc:"Project ID"`
}

type ScoreOutput struct {
	Body *domain.ComplianceScoreSnapshot
}

type ScoreHistoryInput struct {
	ProjectID uuid.UUID `path:"id" doc:"Project ID"`
	Limit     int       `query:"limit" minimum:"1" maximum:"500" default:"50"`
	Offset    int       `query:"offset" minimum:"0" default:"0"`
}

type ScoreHistoryOutput struct {
	Body []*domain.ComplianceScoreSnapshot
}

type MatrixOutput struct {
	Body *domain.TraceabilityMatrix
}

type ScoreStatusOutput struct {
	Body struct {
		Halted bool `json:"halted" doc:"True when recomputation is suspended on a broken audit chain"`
	}
}

// RegisterScoreRoutes wires the traceability matrix and compliance score
// endpoints. The engine itself is tenant-blind, so every handler first
// resolves the project through the entity store; cross-tenant probes fail
// there as not-found before the engine ever runs.
func RegisterScoreRoutes(api huma.API, store *entitystore.Store, engine *trace.Engine) {
	// authorize resolves the project under the caller's policy.
	authorize := func(ctx context.Context, projectID uuid.UUID) error {
		p, err := principalFrom(ctx)
		if err != nil {
			return err
		}
		if _, err := store.GetProject(ctx, p, projectID, false); err != nil {
			return mapError(err)
		}
		return nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-compliance-score",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/score",
		Summary:     "Get the latest compliance score snapshot",
		Tags:        []string{"Scoring"},
	}, func(ctx context.Context, input *ScoreInput) (*ScoreOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		snap, err := engine.LatestScore(ctx, p.OrgID, input.ProjectID)
		if err != nil {
			return nil, mapError(err)
		}
		return &ScoreOutput{Body: snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-score-history",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/score/history",
		Summary:     "List compliance score snapshots, newest first",
		Tags:        []string{"Scoring"},
	}, func(ctx context.Context, input *ScoreHistoryInput) (*ScoreHistoryOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		snaps, err := engine.ScoreHistory(ctx, p.OrgID, input.ProjectID, input.Limit, input.Offset)
		if err != nil {
			return nil, mapError(err)
		}
		return &ScoreHistoryOutput{Body: snaps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recompute-compliance-score",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/score/recompute",
		Summary:     "Recompute the compliance score now",
		Tags:        []string{"Scoring"},
	}, func(ctx context.Context, input *ScoreInput) (*ScoreOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		snap, err := engine.ComputeScore(ctx, p.OrgID, input.ProjectID, "manual")
		if err != nil {
			return nil, mapError(err)
		}
		return &ScoreOutput{Body: snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-trace-matrix",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/trace-matrix",
		Summary:     "Compute the requirement coverage matrix",
		Tags:        []string{"Scoring"},
	}, func(ctx context.Context, input *ScoreInput) (*MatrixOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		m, err := engine.ComputeMatrix(ctx, p.OrgID, input.ProjectID)
		if err != nil {
			return nil, mapError(err)
		}
		return &MatrixOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-score-status",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/score/status",
		Summary:     "Report whether score recomputation is halted",
		Tags:        []string{"Scoring"},
	}, func(ctx context.Context, input *ScoreInput) (*ScoreStatusOutput, error) {
		if err := authorize(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		out := &ScoreStatusOutput{}
		out.Body.Halted = engine.Halted(input.ProjectID)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "acknowledge-chain-break",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/score/acknowledge",
		Summary:     "Acknowledge a broken audit chain and resume recomputation",
		Tags:        []string{"Scoring"},
	}, func(ctx context.Context, input *ScoreInput) (*ScoreStatusOutput, error) {
		if err := authorize(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		engine.Acknowledge(input.ProjectID)
		out := &ScoreStatusOutput{}
		out.Body.Halted = false
		return out, nil
	})
}
