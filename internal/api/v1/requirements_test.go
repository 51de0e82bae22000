package v1_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/veritrail/veritrail/internal/api/v1"
)

// ---------------------------------------------------------------------------
// POST /requirements
// ---------------------------------------------------------------------------

func TestCreateRequirement(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	proj := f.mustCreateProject(t, f.admin)

	t.Run("root requirement", func(t *testing.T) {
		t.Parallel()
		resp := f.api.PostCtx(asCtx(f.officer), "/requirements", map[string]any{
			"project_id": proj.ID,
			"text":       "the pump shall stop on occlusion",
			"risk_class": "A",
			"normative":  true,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var body v1.Requirement
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, 0, body.Level)
		assert.Equal(t, "draft", body.Status)
		assert.True(t, body.Normative)
	})

	t.Run("child inherits level", func(t *testing.T) {
		t.Parallel()
		parent := f.mustCreateRequirement(t, f.officer, proj.ID)

		resp := f.api.PostCtx(asCtx(f.officer), "/requirements", map[string]any{
			"project_id": proj.ID,
			"parent_id":  parent.ID,
			"text":       "the alarm shall sound within 2 seconds",
			"risk_class": "B",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var body v1.Requirement
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		require.NotNil(t, body.ParentID)
		assert.Equal(t, parent.ID, *body.ParentID)
		assert.Equal(t, 1, body.Level)
	})

	t.Run("qa engineer may not author requirements", func(t *testing.T) {
		t.Parallel()
		resp := f.api.PostCtx(asCtx(f.qa), "/requirements", map[string]any{
			"project_id": proj.ID,
			"text":       "unauthorized",
			"risk_class": "C",
		})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// PATCH /requirements/{id}
// ---------------------------------------------------------------------------

func TestUpdateRequirement(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	proj := f.mustCreateProject(t, f.admin)

	t.Run("review workflow advances", func(t *testing.T) {
		t.Parallel()
		req := f.mustCreateRequirement(t, f.officer, proj.ID)

		resp := f.api.PatchCtx(asCtx(f.officer), "/requirements/"+req.ID.String(), map[string]any{
			"expected_version": 1,
			"status":           "under_review",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var body v1.Requirement
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "under_review", body.Status)
		assert.Equal(t, int64(2), body.Version)
	})

	t.Run("skipping review is rejected", func(t *testing.T) {
		t.Parallel()
		req := f.mustCreateRequirement(t, f.officer, proj.ID)

		resp := f.api.PatchCtx(asCtx(f.officer), "/requirements/"+req.ID.String(), map[string]any{
			"expected_version": 1,
			"status":           "approved",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("self-parenting is rejected", func(t *testing.T) {
		t.Parallel()
		req := f.mustCreateRequirement(t, f.officer, proj.ID)

		resp := f.api.PatchCtx(asCtx(f.officer), "/requirements/"+req.ID.String(), map[string]any{
			"expected_version": 1,
			"parent_id":        req.ID,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /projects/{id}/requirements
// ---------------------------------------------------------------------------

func TestListRequirements(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	proj := f.mustCreateProject(t, f.admin)
	f.mustCreateRequirement(t, f.officer, proj.ID)
	f.mustCreateRequirement(t, f.officer, proj.ID)

	resp := f.api.GetCtx(asCtx(f.auditor), "/projects/"+proj.ID.String()+"/requirements")
	require.Equal(t, http.StatusOK, resp.Code)

	var body []*v1.Requirement
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body, 2)

	// Cross-tenant listing reveals nothing.
	foreign := f.api.GetCtx(asCtx(f.outsider), "/projects/"+proj.ID.String()+"/requirements")
	assert.Equal(t, http.StatusNotFound, foreign.Code)
}
