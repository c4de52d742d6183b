package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter registers the view, action and API handlers of e.
func NewRouter(e *HandlerEnv) *mux.Router {
	r := mux.NewRouter()
	r.Use(e.logRequests)

	r.HandleFunc(HealthRoute, HealthHandler).Methods(http.MethodGet)
	r.HandleFunc(IndexRoute, e.IndexHandler()).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(ListTabRoute, e.ListTabHandler()).Methods(http.MethodPost)
	r.HandleFunc(AddTabRoute, e.AddTabHandler()).Methods(http.MethodPost)
	r.HandleFunc(NewPlantRoute, e.NewPlantHandler()).Methods(http.MethodPost)
	r.HandleFunc(OpenPlantRoute, e.OpenPlantHandler()).Methods(http.MethodPost)
	r.HandleFunc(NewPlantLogRoute, e.NewPlantLogHandler()).Methods(http.MethodPost)
	r.HandleFunc(DeletePlantRoute, e.DeletePlantHandler()).Methods(http.MethodPost)
	r.HandleFunc(TogglePhotoRoute, e.TogglePhotoHandler()).Methods(http.MethodPost)

	r.HandleFunc(PlantsListRoute, e.PlantsListHandler()).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(PlantInfoRoute, e.PlantInfoHandler()).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(PlantPhotosRoute, e.PlantPhotosHandler()).Methods(http.MethodGet, http.MethodHead)
	return r
}

func (e *HandlerEnv) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("Request")
		next.ServeHTTP(w, r)
	})
}
