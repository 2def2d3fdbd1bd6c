package routes

import (
	"net/http"

	"github.com/JakeFriedberg29/Patroller-sub001/app"
	"github.com/JakeFriedberg29/Patroller-sub001/routes/middlewares"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	root.
		With(middlewares.CookieAuth(app.BearerServer), middlewares.Admin(app.TokenSecret)).
		Mount("/admin", servePrivateFiles("/admin"))
	root.Mount("/", servePublicFiles())

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	// public surface: fetch a template as a paged form, file a report,
	// complete account activation
	api.Get(`/templates/{id:^\d+$}/form`, PublicGetTemplateForm(app))
	api.Post(`/templates/{id:^\d+$}/submissions`, PublicSubmitReport(app))
	api.Post("/users/activate", ActivateUser(app))

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		// report templates
		r.Post("/templates", CreateTemplate(app))
		r.Get("/templates", ListTemplates(app))
		r.Get(`/templates/{id:^\d+$}`, GetTemplateById(app))
		r.Put(`/templates/{id:^\d+$}`, UpdateTemplate(app))
		r.Delete(`/templates/{id:^\d+$}`, DeleteTemplate(app))
		r.Get(`/templates/{id:^\d+$}/submissions`, GetTemplateSubmissions(app))

		// subtype assignments
		r.Get(`/templates/{id:^\d+$}/assignments`, GetTemplateAssignments(app))
		r.Put(`/templates/{id:^\d+$}/assignments`, PutTemplateAssignments(app))

		// accounts
		r.Post("/tenants", CreateTenant(app))
		r.Get("/tenants", ListTenants(app))
		r.Get(`/tenants/{id:^\d+$}`, GetTenantById(app))
		r.Put(`/tenants/{id:^\d+$}`, UpdateTenant(app))
		r.Delete(`/tenants/{id:^\d+$}`, DeleteTenant(app))
		r.Post(`/tenants/{id:^\d+$}/subtypes`, AddSubtype(app))
		r.Post(`/tenants/{id:^\d+$}/organizations`, CreateOrganization(app))
		r.Get(`/tenants/{id:^\d+$}/organizations`, ListOrganizations(app))

		// users and admins
		r.Post("/users", CreateUser(app))
		r.Get("/users", ListUsers(app))
		r.Put(`/users/{id:^\d+$}`, UpdateUser(app))
		r.Put(`/users/{id:^\d+$}/status`, ToggleUserStatus(app))
		r.Post("/users/bulk-delete", BulkDeleteAdmins(app))

		// audit log viewer
		r.Get("/audit", ListAuditLog(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}

func servePublicFiles() http.Handler {
	return http.FileServer(http.Dir("public"))
}

func servePrivateFiles(path string) http.Handler {
	return http.StripPrefix(path, http.FileServer(http.Dir("private")))
}
