package v1_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/veritrail/veritrail/internal/api/v1"
	"github.com/veritrail/veritrail/internal/policy"
)

// ---------------------------------------------------------------------------
// Organizations
// ---------------------------------------------------------------------------

// Subtests run sequentially: the rename in the last one must not race the
// name assertion in the second.
func TestOrganizationEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	t.Run("provision", func(t *testing.T) {
		resp := f.api.PostCtx(asCtx(f.admin), "/organizations", map[string]any{
			"name":   "new tenant",
			"region": "us-east-1",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var org v1.Organization
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &org))
		assert.Equal(t, "new tenant", org.Name)
		assert.Equal(t, "us-east-1", org.Region)
	})

	t.Run("get own organization", func(t *testing.T) {
		resp := f.api.GetCtx(asCtx(f.qa), "/organization")
		require.Equal(t, http.StatusOK, resp.Code)

		var org v1.Organization
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &org))
		assert.Equal(t, f.qa.OrgID, org.ID)
		assert.Equal(t, "acme medical", org.Name)
	})

	t.Run("only admins update", func(t *testing.T) {
		denied := f.api.PutCtx(asCtx(f.qa), "/organization", map[string]any{
			"name":   "rogue rename",
			"region": "eu-west-1",
		})
		assert.Equal(t, http.StatusForbidden, denied.Code)

		ok := f.api.PutCtx(asCtx(f.admin), "/organization", map[string]any{
			"name":   "acme medical gmbh",
			"region": "eu-central-1",
		})
		require.Equal(t, http.StatusOK, ok.Code)

		var org v1.Organization
		require.NoError(t, json.Unmarshal(ok.Body.Bytes(), &org))
		assert.Equal(t, "acme medical gmbh", org.Name)
		assert.Equal(t, "eu-central-1", org.Region)
	})
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func TestUserEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	create := f.api.PostCtx(asCtx(f.admin), "/users", map[string]any{
		"external_id": "idp|abc123",
		"email":       "nurse@example.com",
		"name":        "Trial Nurse",
		"roles":       []string{"qa_engineer"},
	})
	require.Equal(t, http.StatusOK, create.Code)

	var created v1.User
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &created))
	assert.Equal(t, "active", created.Status)

	t.Run("qa engineer may not create users", func(t *testing.T) {
		t.Parallel()
		resp := f.api.PostCtx(asCtx(f.qa), "/users", map[string]any{
			"external_id": "idp|xyz",
			"email":       "someone@example.com",
			"name":        "Someone",
			"roles":       []string{"auditor"},
		})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("pii masked for non-privileged readers", func(t *testing.T) {
		t.Parallel()
		resp := f.api.GetCtx(asCtx(f.qa), "/users/"+created.ID.String())
		require.Equal(t, http.StatusOK, resp.Code)

		var u v1.User
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &u))
		assert.Equal(t, policy.Redacted, u.Email)
		assert.Equal(t, policy.Redacted, u.ExternalID)
		assert.Equal(t, "Trial Nurse", u.Name)
	})

	t.Run("admin sees pii", func(t *testing.T) {
		t.Parallel()
		resp := f.api.GetCtx(asCtx(f.admin), "/users/"+created.ID.String())
		require.Equal(t, http.StatusOK, resp.Code)

		var u v1.User
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &u))
		assert.Equal(t, "nurse@example.com", u.Email)
	})

	t.Run("suspend account", func(t *testing.T) {
		t.Parallel()
		resp := f.api.PatchCtx(asCtx(f.admin), "/users/"+created.ID.String(), map[string]any{
			"status": "suspended",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var u v1.User
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &u))
		assert.Equal(t, "suspended", u.Status)
	})
}
