package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
)

type CreateTestCaseInput struct {
	Body struct {
		ProjectID uuid.UUID         `json:"project_id"`
		ReqID     uuid.UUID         `json:"req_id" doc:"Owning requirement"`
		Title     string            `json:"title" minLength:"1" maxLength:"500"`
		Steps     []domain.TestStep `json:"steps,omitempty"`
		SourceSys string            `json:"source_sys,omitempty"`
		SourceRef string            `json:"source_ref,omitempty"`
	}
}

type TestCaseOutput struct {
	Body *TestCase
}

type ListTestCasesInput struct {
	ProjectID      uuid.UUID `path:"id" doc:"Project ID"`
	IncludeDeleted bool      `query:"include_deleted"`
}

type ListTestCasesOutput struct {
	Body []*TestCase
}

type GetTestCaseInput struct {
	ID             uuid.UUID `path:"id" doc:"Test case ID"`
	IncludeDeleted bool      `query:"include_deleted"`
}

type UpdateTestCaseInput struct {
	ID   uuid.UUID `path:"id" doc:"Test case ID"`
	Body struct {
		ExpectedVersion int64             `json:"expected_version" minimum:"1"`
		Title           *string           `json:"title,omitempty" minLength:"1" maxLength:"500"`
		Steps           []domain.TestStep `json:"steps,omitempty"`
		ReviewStatus    *string           `json:"review_status,omitempty" enum:"pending,in_review,reviewed"`
		Approval        *string           `json:"approval,omitempty" enum:"pending,approved,rejected"`
		QualityScore    *int              `json:"quality_score,omitempty" minimum:"0" maximum:"100"`
	}
}

type DeleteTestCaseInput struct {
	ID      uuid.UUID `path:"id" doc:"Test case ID"`
	Version int64     `query:"version" minimum:"1"`
}

type RecordRunInput struct {
	ID   uuid.UUID `path:"id" doc:"Test case ID"`
	Body struct {
		Result string `json:"result" enum:"passed,failed,blocked,skipped"`
		Notes  string `json:"notes,omitempty" maxLength:"4000"`
	}
}

type TestRunOutput struct {
	Body *TestRun
}

type ListRunsInput struct {
	ProjectID uuid.UUID `path:"id" doc:"Project ID"`
}

type ListRunsOutput struct {
	Body []*TestRun
}

// RegisterTestRoutes wires test case and execution evidence endpoints.
func RegisterTestRoutes(api huma.API, store *entitystore.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-test-case",
		Method:      http.MethodPost,
		Path:        "/tests",
		Summary:     "Create a test case owned by a requirement",
		Tags:        []string{"Tests"},
	}, func(ctx context.Context, input *CreateTestCaseInput) (*TestCaseOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		tc, err := store.CreateTestCase(ctx, p, entitystore.TestCaseInput{
			ProjectID: input.Body.ProjectID,
			ReqID:     input.Body.ReqID,
			Title:     input.Body.Title,
			Steps:     input.Body.Steps,
			SourceSys: input.Body.SourceSys,
			SourceRef: input.Body.SourceRef,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return &TestCaseOutput{Body: toTestCase(tc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-test-cases",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/tests",
		Summary:     "List a project's test cases",
		Tags:        []string{"Tests"},
	}, func(ctx context.Context, input *ListTestCasesInput) (*ListTestCasesOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		cases, err := store.ListTestCases(ctx, p, input.ProjectID, input.IncludeDeleted)
		if err != nil {
			return nil, mapError(err)
		}
		return &ListTestCasesOutput{Body: toTestCases(cases)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-test-case",
		Method:      http.MethodGet,
		Path:        "/tests/{id}",
		Summary:     "Get a test case by ID",
		Tags:        []string{"Tests"},
	}, func(ctx context.Context, input *GetTestCaseInput) (*TestCaseOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		tc, err := store.GetTestCase(ctx, p, input.ID, input.IncludeDeleted)
		if err != nil {
			return nil, mapError(err)
		}
		return &TestCaseOutput{Body: toTestCase(tc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-test-case",
		Method:      http.MethodPatch,
		Path:        "/tests/{id}",
		Summary:     "Update a test case with optimistic versioning",
		Tags:        []string{"Tests"},
	}, func(ctx context.Context, input *UpdateTestCaseInput) (*TestCaseOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		upd := entitystore.TestCaseUpdate{
			ID:              input.ID,
			ExpectedVersion: input.Body.ExpectedVersion,
			Title:           input.Body.Title,
			Steps:           input.Body.Steps,
			QualityScore:    input.Body.QualityScore,
		}
		if input.Body.ReviewStatus != nil {
			rs := domain.ReviewStatus(*input.Body.ReviewStatus)
			upd.ReviewStatus = &rs
		}
		if input.Body.Approval != nil {
			ap := domain.ApprovalStatus(*input.Body.Approval)
			upd.Approval = &ap
		}
		tc, err := store.UpdateTestCase(ctx, p, upd)
		if err != nil {
			return nil, mapError(err)
		}
		return &TestCaseOutput{Body: toTestCase(tc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-test-case",
		Method:      http.MethodDelete,
		Path:        "/tests/{id}",
		Summary:     "Soft-delete a test case and invalidate its trace links",
		Tags:        []string{"Tests"},
	}, func(ctx context.Context, input *DeleteTestCaseInput) (*struct{}, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := store.DeleteTestCase(ctx, p, input.ID, input.Version); err != nil {
			return nil, mapError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-test-run",
		Method:      http.MethodPost,
		Path:        "/tests/{id}/runs",
		Summary:     "Record an execution result for a test case",
		Tags:        []string{"Tests"},
	}, func(ctx context.Context, input *RecordRunInput) (*TestRunOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		run, err := store.RecordRun(ctx, p, entitystore.RunInput{
			TestID: input.ID,
			Result: domain.RunResult(input.Body.Result),
			Notes:  input.Body.Notes,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return &TestRunOutput{Body: toTestRun(run)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-test-runs",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/runs",
		Summary:     "List a project's test execution evidence",
		Tags:        []string{"Tests"},
	}, func(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		runs, err := store.ListRuns(ctx, p, input.ProjectID)
		if err != nil {
			return nil, mapError(err)
		}
		return &ListRunsOutput{Body: toTestRuns(runs)}, nil
	})
}
