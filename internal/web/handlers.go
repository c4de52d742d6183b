// Package web renders the GreenLog views and exposes the plant collection as
// JSON.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mgmu/greenlog/internal/garden"
	"github.com/mgmu/greenlog/internal/ingest"
	"github.com/mgmu/greenlog/internal/plants"
	"github.com/mgmu/greenlog/internal/session"
	"github.com/sirupsen/logrus"
)

//go:embed templates
var templatesFS embed.FS

var (
	IndexRoute       = "/"
	ListTabRoute     = "/nav/list/"
	AddTabRoute      = "/nav/add/"
	NewPlantRoute    = "/plants/new/"
	OpenPlantRoute   = "/plants/{id}/open/"
	NewPlantLogRoute = "/plants/{id}/log/"
	DeletePlantRoute = "/plants/{id}/delete/"
	TogglePhotoRoute = "/photos/{id}/toggle/"
	maxUploadSize    = int64(32 << 20)
)

// Encapsulates environment data for URL handlers
type HandlerEnv struct {
	templates *template.Template
	garden    *garden.Garden
	session   *session.Manager
	log       logrus.FieldLogger
}

func New(g *garden.Garden, s *session.Manager, log logrus.FieldLogger) (*HandlerEnv, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}
	return &HandlerEnv{t, g, s, log}, nil
}

// Encapsulates a plant as shown in the list and at the top of the detail
// view.
type plantCard struct {
	Id      string
	Name    string
	Species string
	Image   template.URL
}

type photoThumb struct {
	Id       string
	Date     plants.Date
	Url      template.URL
	Selected bool
}

type logCard struct {
	plants.LogEntry
	Image template.URL
}

type detailPage struct {
	plantCard
	Photos     []photoThumb
	Comparison []photoThumb
	Logs       []logCard
	LogForm    garden.LogForm
	LogImage   template.URL
}

type page struct {
	View     string
	User     string
	Plants   []plantCard
	AddForm  garden.AddForm
	AddImage template.URL
	Detail   *detailPage
}

// Image references are data URIs produced by ingest; html/template only lets
// them through src attributes as template.URL.
func imageURL(ref plants.ImageRef) template.URL {
	return template.URL(ref)
}

func toCard(p plants.Plant) plantCard {
	return plantCard{p.Id, p.Name, p.Species, imageURL(p.Image)}
}

// Returns a handler for the "/" URL.
// The request method should be GET or HEAD. The handler renders the tab the
// session is currently on: the plants list, the add form or the detail view
// of the selected plant. A detail view whose plant is gone falls back to the
// list.
func (e *HandlerEnv) IndexHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := e.templates.ExecuteTemplate(w, "index.gohtml", e.currentPage()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func (e *HandlerEnv) currentPage() page {
	view, _ := e.garden.View()
	user, _ := e.session.Current()
	pg := page{View: string(view), User: user.Uid}

	switch view {
	case garden.AddView:
		pg.AddForm = e.garden.AddForm()
		pg.AddImage = imageURL(pg.AddForm.Image)
		return pg
	case garden.DetailView:
		if d, ok := e.garden.Detail(); ok {
			pg.Detail = toDetailPage(d, e.garden.LogForm())
			return pg
		}
		pg.View = string(garden.ListView)
	}
	for _, p := range e.garden.List() {
		pg.Plants = append(pg.Plants, toCard(p))
	}
	return pg
}

func toDetailPage(d garden.Detail, form garden.LogForm) *detailPage {
	selected := make(map[string]bool, len(d.Selected))
	for _, id := range d.Selected {
		selected[id] = true
	}
	dp := &detailPage{
		plantCard: toCard(d.Plant),
		LogForm:   form,
		LogImage:  imageURL(form.Image),
	}
	for _, p := range d.Photos {
		dp.Photos = append(dp.Photos, photoThumb{p.Id, p.Date, imageURL(p.Url), selected[p.Id]})
	}
	for _, p := range d.Comparison {
		dp.Comparison = append(dp.Comparison, photoThumb{p.Id, p.Date, imageURL(p.Url), true})
	}
	for _, l := range d.Plant.Logs {
		dp.Logs = append(dp.Logs, logCard{l, imageURL(l.Image)})
	}
	return dp
}

// Returns a handler for the "/nav/list/" URL: switches to the list tab.
func (e *HandlerEnv) ListTabHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		e.garden.Back()
		backToIndex(w, r)
	}
}

// Returns a handler for the "/nav/add/" URL: switches to the add form.
func (e *HandlerEnv) AddTabHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		e.garden.NewPlant()
		backToIndex(w, r)
	}
}

// Returns a handler for the "/plants/{id}/open/" URL: shows the detail view
// of the plant. Unknown plants leave the view unchanged.
func (e *HandlerEnv) OpenPlantHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := e.garden.Open(id); err != nil {
			e.log.WithField("plant", id).Debug("Open ignored: unknown plant")
		}
		backToIndex(w, r)
	}
}

// Returns a handler for the "/plants/new/" URL.
// The request should be a multipart POST with the name, species and
// optionally image fields. The form values are kept as the add form draft so
// that a submission blocked by validation is shown again as typed. Without a
// new upload, the image of the draft is kept. An image that cannot be read
// gives a "Bad Request" error.
func (e *HandlerEnv) NewPlantHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		image, err := parseImageForm(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if image == "" {
			image = e.garden.AddForm().Image
		}
		form := garden.AddForm{
			Name:    r.PostFormValue("name"),
			Species: r.PostFormValue("species"),
			Image:   image,
		}
		e.garden.SetAddForm(form)

		err = e.garden.Create(detach(r), form.Name, form.Species, form.Image)
		if errors.Is(err, plants.ErrValidation) {
			e.log.WithError(err).Debug("New plant rejected")
		}
		backToIndex(w, r)
	}
}

// Returns a handler for the "/plants/{id}/log/" URL.
// The request should be a multipart POST with the note, watered, fertilized
// and optionally image fields. As for plants, the draft image is kept when no
// new one is uploaded.
func (e *HandlerEnv) NewPlantLogHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		image, err := parseImageForm(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if image == "" {
			image = e.garden.LogForm().Image
		}
		form := garden.LogForm{
			Note:       r.PostFormValue("note"),
			Watered:    r.PostFormValue("watered") != "",
			Fertilized: r.PostFormValue("fertilized") != "",
			Image:      image,
		}
		e.garden.SetLogForm(form)

		id := mux.Vars(r)["id"]
		err = e.garden.AppendLog(detach(r), id, form.Note, form.Watered, form.Fertilized, form.Image)
		if err != nil {
			e.log.WithError(err).WithField("plant", id).Debug("Log entry ignored")
		}
		backToIndex(w, r)
	}
}

// Returns a handler for the "/plants/{id}/delete/" URL.
func (e *HandlerEnv) DeletePlantHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		e.garden.Delete(detach(r), mux.Vars(r)["id"])
		backToIndex(w, r)
	}
}

// Returns a handler for the "/photos/{id}/toggle/" URL: adds or removes the
// photo from the comparison of the plant shown.
func (e *HandlerEnv) TogglePhotoHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		e.garden.Toggle(mux.Vars(r)["id"])
		backToIndex(w, r)
	}
}

// parseImageForm parses a multipart or url encoded form and returns the
// uploaded image, if any, as a data URI.
func parseImageForm(r *http.Request) (plants.ImageRef, error) {
	err := r.ParseMultipartForm(maxUploadSize)
	if errors.Is(err, http.ErrNotMultipart) {
		return "", r.ParseForm()
	}
	if err != nil {
		return "", err
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	if header.Size == 0 {
		return "", nil
	}
	return ingest.DataURI(file, header.Header.Get("Content-Type"))
}

// Writes go through to the backend even if the client goes away.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func backToIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, IndexRoute, http.StatusSeeOther)
}
