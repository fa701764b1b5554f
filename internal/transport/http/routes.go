package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "repair-job-service/docs"
)

type RouterConfig struct {
	JWTSecret      []byte
	RequestTimeout time.Duration
}

func Routes(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/jobs", func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTSecret))
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Post("/", h.CreateJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetJob)
			r.Patch("/", h.UpdateJob)
			r.Delete("/", h.DeleteJob)

			r.Post("/status", h.ChangeStatus)
			r.Post("/technician", h.AssignTechnician)

			r.Get("/parts", h.ListJobParts)
			r.Post("/parts", h.WithdrawPart)
			r.Delete("/parts/{jobPartId}", h.ReturnPart)

			r.Post("/repair-records", h.AddRepairRecord)
			r.Post("/images", h.AttachImage)
			r.Delete("/images/{imageId}", h.DeleteImage)

			r.Get("/activity", h.ListActivity)
		})
	})

	return r
}
