package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"doc-approval-engine/internal/metrics"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/workflows/synthesize", h.Synthesize)

		r.Get("/templates", h.ListTemplates)
		r.Post("/templates", h.CreateTemplate)
		r.Route("/templates/{templateId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetTemplate(w, r, chi.URLParam(r, "templateId"))
			})
			r.Put("/", func(w http.ResponseWriter, r *http.Request) {
				h.UpdateTemplate(w, r, chi.URLParam(r, "templateId"))
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				h.DeleteTemplate(w, r, chi.URLParam(r, "templateId"))
			})
			r.Post("/duplicate", func(w http.ResponseWriter, r *http.Request) {
				h.DuplicateTemplate(w, r, chi.URLParam(r, "templateId"))
			})
			r.Post("/activate", func(w http.ResponseWriter, r *http.Request) {
				h.SetTemplateActive(w, r, chi.URLParam(r, "templateId"), true)
			})
			r.Post("/deactivate", func(w http.ResponseWriter, r *http.Request) {
				h.SetTemplateActive(w, r, chi.URLParam(r, "templateId"), false)
			})
		})

		r.Get("/documents", h.ListDocuments)
		r.Post("/documents", h.CreateDocument)
		r.Route("/documents/{documentId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetDocument(w, r, chi.URLParam(r, "documentId"))
			})
			r.Get("/plan", func(w http.ResponseWriter, r *http.Request) {
				h.GetPlan(w, r, chi.URLParam(r, "documentId"))
			})
			r.Get("/audit", func(w http.ResponseWriter, r *http.Request) {
				h.GetAudit(w, r, chi.URLParam(r, "documentId"))
			})
			r.Put("/manifest", func(w http.ResponseWriter, r *http.Request) {
				h.UploadManifest(w, r, chi.URLParam(r, "documentId"))
			})
			r.Post("/{action}", func(w http.ResponseWriter, r *http.Request) {
				h.Act(w, r, chi.URLParam(r, "documentId"), chi.URLParam(r, "action"))
			})
		})
	})

	return r
}
