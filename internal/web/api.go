package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mgmu/greenlog/internal/plants"
)

var (
	PlantsListRoute   = "/api/plants/"
	PlantInfoRoute    = "/api/plants/{id}/"
	PlantPhotosRoute  = "/api/plants/{id}/photos/"
	HealthRoute       = "/health"
	plantNotFoundBody = "Plant not found"
)

/* Returns a handler for the "/api/plants/" URL.
 * The request method should be either HEAD or GET. If the request method is
 * GET, the body of the response is the json encoded list of the short
 * descriptions (identifier, name and species) of the plants of the session.
 */
func (e *HandlerEnv) PlantsListHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		list := e.garden.List()
		descs := make([]plants.PlantShortDesc, len(list))
		for i, p := range list {
			descs[i] = p.ShortDesc()
		}
		writeJSON(w, r, descs)
	}
}

/* Returns a handler for the "/api/plants/{id}/" URL.
 * Sends back the plant, logs included, as json encoded data, or a "Not Found"
 * error when the session has no such plant.
 */
func (e *HandlerEnv) PlantInfoHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := e.garden.Plant(mux.Vars(r)["id"])
		if !ok {
			http.Error(w, plantNotFoundBody, http.StatusNotFound)
			return
		}
		writeJSON(w, r, p)
	}
}

/* Returns a handler for the "/api/plants/{id}/photos/" URL.
 * Sends back the photo timeline of the plant, oldest first.
 */
func (e *HandlerEnv) PlantPhotosHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := e.garden.Plant(mux.Vars(r)["id"])
		if !ok {
			http.Error(w, plantNotFoundBody, http.StatusNotFound)
			return
		}
		writeJSON(w, r, plants.Photos(p))
	}
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "OK")
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if r.Method == http.MethodGet {
		err := json.NewEncoder(w).Encode(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
