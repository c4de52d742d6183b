// Package garden holds the state behind the GreenLog views: the plant
// collection, the active tab, the form drafts and the photo comparison.
package garden

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/mgmu/greenlog/internal/gateway"
	"github.com/mgmu/greenlog/internal/plants"
	"github.com/mgmu/greenlog/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrUnknownPlant is returned by operations targeting a plant missing from
// the collection. Such operations change nothing.
var ErrUnknownPlant = errors.New("unknown plant")

// View names the tab currently shown.
type View string

const (
	ListView   View = "list"
	AddView    View = "add"
	DetailView View = "detail"
)

// AddForm is the draft of the new plant form.
type AddForm struct {
	Name    string
	Species string
	Image   plants.ImageRef
}

// LogForm is the draft of the care log form of the detail view.
type LogForm struct {
	Note       string
	Watered    bool
	Fertilized bool
	Image      plants.ImageRef
}

// Detail is everything the detail view shows about the selected plant.
type Detail struct {
	Plant      plants.Plant
	Photos     []plants.Photo
	Selected   []string
	Comparison []plants.Photo
}

// Garden is the view-model of a session. Every write first goes to the
// gateway; when the gateway fails, the same change is applied to the local
// mirror instead. The mirror is replaced by each snapshot the subscription
// delivers.
type Garden struct {
	gw    gateway.Gateway
	local *store.Local
	log   logrus.FieldLogger

	mu        sync.Mutex
	uid       string
	view      View
	plantId   string
	selection plants.Selection
	addForm   AddForm
	logForm   LogForm

	synced     chan struct{}
	syncedOnce sync.Once
	wg         sync.WaitGroup
}

func New(gw gateway.Gateway, local *store.Local, log logrus.FieldLogger) *Garden {
	return &Garden{
		gw:     gw,
		local:  local,
		log:    log,
		view:   ListView,
		synced: make(chan struct{}),
	}
}

// Start subscribes to the collection of uid. Snapshots are applied until ctx
// is done or the subscription fails; in both failure cases the collection
// keeps its last known value.
func (g *Garden) Start(ctx context.Context, uid string) {
	g.mu.Lock()
	g.uid = uid
	g.mu.Unlock()

	log := g.log.WithField("uid", uid)
	events, err := g.gw.Subscribe(ctx, uid)
	if err != nil {
		log.WithError(err).Warn("Subscription unavailable, using local plants")
		g.markSynced()
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.markSynced()
		for ev := range events {
			if ev.Err != nil {
				log.WithError(ev.Err).Error("Subscription failed, keeping last known plants")
				g.markSynced()
				continue
			}
			g.local.Replace(ev.Plants)
			log.WithField("plants", len(ev.Plants)).Debug("Snapshot applied")
			g.markSynced()
		}
	}()
}

// Wait blocks until the subscription goroutine started by Start returns.
func (g *Garden) Wait() {
	g.wg.Wait()
}

// Synced is closed once the first snapshot arrived or the subscription
// failed.
func (g *Garden) Synced() <-chan struct{} {
	return g.synced
}

func (g *Garden) markSynced() {
	g.syncedOnce.Do(func() { close(g.synced) })
}

// List returns the current plants.
func (g *Garden) List() []plants.Plant {
	return g.local.List()
}

// Plant returns the plant of given identifier.
func (g *Garden) Plant(id string) (plants.Plant, bool) {
	return g.local.Get(id)
}

// Create registers a new plant. An invalid name or species returns an error
// wrapping plants.ErrValidation and changes nothing. Otherwise the add form
// is cleared and the list view shown, whether the backend accepted the plant
// or it was kept locally.
func (g *Garden) Create(ctx context.Context, name, species string, image plants.ImageRef) error {
	name, err := plants.SanitizeName(name)
	if err != nil {
		return err
	}
	species, err = plants.SanitizeSpecies(species)
	if err != nil {
		return err
	}

	uid := g.user()
	p := plants.Plant{
		Name:      name,
		Species:   species,
		DateAdded: plants.Today(),
		Image:     image,
		Logs:      []plants.LogEntry{},
	}
	id, err := g.gw.Insert(ctx, uid, p)
	if err != nil {
		p.Id = plants.NewId()
		g.compensate("insert", p.Id, err)
		g.local.Append(p)
	} else {
		g.log.WithFields(logrus.Fields{"uid": uid, "plant": id}).Info("Plant created")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.addForm = AddForm{}
	g.showList()
	return nil
}

// AppendLog records a care event dated today in front of the logs of the
// plant of given identifier and clears the log form.
func (g *Garden) AppendLog(ctx context.Context, plantId, note string, watered, fertilized bool, image plants.ImageRef) error {
	p, ok := g.local.Get(plantId)
	if !ok {
		return ErrUnknownPlant
	}
	e := plants.NewLogEntry(note, watered, fertilized, image)
	logs := p.WithLog(e).Logs

	uid := g.user()
	err := g.gw.Mutate(ctx, uid, plantId, gateway.LogsPatch(logs))
	if err != nil {
		g.compensate("mutate", plantId, err)
		g.local.PrependLog(plantId, e)
	} else {
		g.log.WithFields(logrus.Fields{"uid": uid, "plant": plantId, "log": e.Id}).Info("Log entry added")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.logForm = LogForm{}
	return nil
}

// Delete removes the plant of given identifier and shows the list view, even
// if there was no such plant.
func (g *Garden) Delete(ctx context.Context, plantId string) {
	uid := g.user()
	err := g.gw.Remove(ctx, uid, plantId)
	if err != nil {
		g.compensate("remove", plantId, err)
		g.local.Remove(plantId)
	} else {
		g.log.WithFields(logrus.Fields{"uid": uid, "plant": plantId}).Info("Plant deleted")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.showList()
}

// compensate logs a failed gateway write that is about to be replayed on the
// local mirror.
func (g *Garden) compensate(op, plantId string, err error) {
	g.log.WithError(err).WithFields(logrus.Fields{
		"op":    op,
		"plant": plantId,
		"kind":  gateway.KindOf(err).String(),
	}).Warn("Backend write failed, applying change locally")
}

func (g *Garden) user() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uid
}

// View returns the active tab and, for the detail view, the plant shown.
func (g *Garden) View() (View, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view, g.plantId
}

// Open shows the detail view of the plant of given identifier with an empty
// photo selection.
func (g *Garden) Open(plantId string) error {
	if _, ok := g.local.Get(plantId); !ok {
		return ErrUnknownPlant
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view = DetailView
	g.plantId = plantId
	g.selection.Reset()
	return nil
}

// NewPlant shows the add form.
func (g *Garden) NewPlant() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view = AddView
}

// Back shows the list view.
func (g *Garden) Back() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.showList()
}

func (g *Garden) showList() {
	g.view = ListView
	g.plantId = ""
	g.selection.Reset()
}

func (g *Garden) AddForm() AddForm {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addForm
}

func (g *Garden) SetAddForm(f AddForm) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addForm = f
}

func (g *Garden) LogForm() LogForm {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logForm
}

func (g *Garden) SetLogForm(f LogForm) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logForm = f
}

// Toggle adds or removes a photo of the shown plant from the comparison.
func (g *Garden) Toggle(photoId string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.view != DetailView {
		return
	}
	g.selection.Toggle(photoId)
}

// Detail returns the plant shown in the detail view along with its photo
// timeline and comparison. It reports false when no plant is shown or the
// plant left the collection.
func (g *Garden) Detail() (Detail, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.view != DetailView {
		return Detail{}, false
	}
	p, ok := g.local.Get(g.plantId)
	if !ok {
		return Detail{}, false
	}
	photos := plants.Photos(p)
	return Detail{
		Plant:      p,
		Photos:     photos,
		Selected:   g.selection.Ids(),
		Comparison: plants.Compare(slices.Values(photos), &g.selection),
	}, true
}
