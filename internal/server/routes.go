package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/veritrail/veritrail/internal/api/v1"
	"github.com/veritrail/veritrail/internal/api/ws"
	"github.com/veritrail/veritrail/internal/config"
)

func registerAPIRoutes(api huma.API, d Deps, cfg *config.Config) {
	v1.RegisterOrganizationRoutes(api, d.Store)
	v1.RegisterUserRoutes(api, d.Store)
	v1.RegisterProjectRoutes(api, d.Store)
	v1.RegisterRequirementRoutes(api, d.Store)
	v1.RegisterTestRoutes(api, d.Store)
	v1.RegisterTraceLinkRoutes(api, d.Store)
	v1.RegisterAuditRoutes(api, d.Audit, cfg.Ledger.Retention)
	v1.RegisterScoreRoutes(api, d.Store, d.Engine)
}

func registerAdminRoutes(api huma.API, d Deps) {
	v1.RegisterProvisioningRoutes(api, d.Store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/projects/{projectID}/mutations", hub.ServeMutations)
	r.Get("/projects/{projectID}/audit", hub.ServeAudit)
	r.Get("/projects/{projectID}/score", hub.ServeScore)
}
