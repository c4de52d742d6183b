package garden

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mgmu/greenlog/internal/gateway"
	"github.com/mgmu/greenlog/internal/plants"
	"github.com/mgmu/greenlog/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mutation struct {
	id    string
	patch gateway.Patch
}

// fakeGateway accepts every write unless fail is set. Snapshots are pushed by
// the test through events.
type fakeGateway struct {
	mu        sync.Mutex
	fail      bool
	events    chan gateway.Event
	inserted  []plants.Plant
	mutations []mutation
	removed   []string
	// ids the backend does not hold
	missing []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{events: make(chan gateway.Event)}
}

func (f *fakeGateway) err(op string) error {
	if f.fail {
		return &gateway.Error{Op: op, Kind: gateway.Unavailable, Err: gateway.ErrUnavailable}
	}
	return nil
}

func (f *fakeGateway) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeGateway) Authenticate(context.Context) (gateway.Identity, error) {
	return gateway.Identity{Uid: "alice"}, nil
}

func (f *fakeGateway) Subscribe(context.Context, string) (<-chan gateway.Event, error) {
	return f.events, nil
}

func (f *fakeGateway) Insert(_ context.Context, _ string, p plants.Plant) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("insert"); err != nil {
		return "", err
	}
	f.inserted = append(f.inserted, p)
	return strconv.Itoa(len(f.inserted)), nil
}

func (f *fakeGateway) Mutate(_ context.Context, _, id string, patch gateway.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("mutate"); err != nil {
		return err
	}
	f.mutations = append(f.mutations, mutation{id, patch})
	return nil
}

func (f *fakeGateway) Remove(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("remove"); err != nil {
		return err
	}
	if slices.Contains(f.missing, id) {
		return &gateway.Error{Op: "remove", Kind: gateway.NotFound, Err: gateway.ErrNotFound}
	}
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeGateway) Close() error {
	return nil
}

func newGarden(t *testing.T, gw gateway.Gateway, seed ...plants.Plant) *Garden {
	t.Helper()
	log, _ := test.NewNullLogger()
	local := store.NewLocal()
	local.Replace(seed)
	return New(gw, local, log)
}

func fig() plants.Plant {
	return plants.Plant{
		Id:        "fig",
		Name:      "Fig",
		DateAdded: "2024-03-01",
		Image:     "data:initial",
		Logs: []plants.LogEntry{
			{Id: "log-2", Date: "2024-05-01", Image: "data:2"},
			{Id: "log-1", Date: "2024-04-01", Note: "repotted"},
		},
	}
}

func TestCreateWithEmptyNameChangesNothing(t *testing.T) {
	g := newGarden(t, gateway.Null{}, fig())
	g.NewPlant()
	g.SetAddForm(AddForm{Species: "Ficus"})

	err := g.Create(context.Background(), "", "Ficus", "")
	assert.ErrorIs(t, err, plants.ErrValidation)

	assert.Equal(t, []plants.Plant{fig()}, g.List())
	view, _ := g.View()
	assert.Equal(t, AddView, view)
	assert.Equal(t, AddForm{Species: "Ficus"}, g.AddForm())
}

func TestCreateFallsBackToLocalStore(t *testing.T) {
	g := newGarden(t, gateway.Null{}, fig())
	g.Start(context.Background(), plants.GuestUid)
	g.NewPlant()
	g.SetAddForm(AddForm{Name: "Fig", Species: "Ficus"})

	require.NoError(t, g.Create(context.Background(), "Fig", "Ficus", ""))

	list := g.List()
	require.Len(t, list, 2)
	created := list[1]
	assert.Equal(t, "Fig", created.Name)
	assert.Equal(t, "Ficus", created.Species)
	assert.Equal(t, plants.Today(), created.DateAdded)
	assert.NotNil(t, created.Logs)
	assert.Empty(t, created.Logs)
	assert.NotEqual(t, list[0].Id, created.Id)
	assert.NotEmpty(t, created.Id)

	view, _ := g.View()
	assert.Equal(t, ListView, view)
	assert.Equal(t, AddForm{}, g.AddForm())
}

func TestCreateRemoteLeavesLocalToSubscription(t *testing.T) {
	gw := newFakeGateway()
	g := newGarden(t, gw)

	require.NoError(t, g.Create(context.Background(), "  Basil ", "", "data:b"))

	assert.Empty(t, g.List())
	require.Len(t, gw.inserted, 1)
	assert.Equal(t, "Basil", gw.inserted[0].Name)
	assert.Equal(t, plants.ImageRef("data:b"), gw.inserted[0].Image)
	view, _ := g.View()
	assert.Equal(t, ListView, view)
}

func TestAppendLogFallsBackToLocalStore(t *testing.T) {
	g := newGarden(t, gateway.Null{}, fig())
	g.SetLogForm(LogForm{Note: "watered today", Watered: true})

	err := g.AppendLog(context.Background(), "fig", "watered today", true, false, "")
	require.NoError(t, err)

	p, ok := g.Plant("fig")
	require.True(t, ok)
	require.Len(t, p.Logs, 3)
	assert.True(t, p.Logs[0].Watered)
	assert.False(t, p.Logs[0].Fertilized)
	assert.Equal(t, "watered today", p.Logs[0].Note)
	assert.Equal(t, plants.Today(), p.Logs[0].Date)
	assert.Equal(t, fig().Logs, p.Logs[1:])
	assert.Equal(t, LogForm{}, g.LogForm())
}

func TestAppendLogRemoteSendsWholeLogSequence(t *testing.T) {
	gw := newFakeGateway()
	g := newGarden(t, gw, fig())
	g.SetLogForm(LogForm{Note: "fed", Fertilized: true})

	require.NoError(t, g.AppendLog(context.Background(), "fig", "fed", false, true, "data:3"))

	require.Len(t, gw.mutations, 1)
	m := gw.mutations[0]
	assert.Equal(t, "fig", m.id)
	require.NotNil(t, m.patch.Logs)
	logs := *m.patch.Logs
	require.Len(t, logs, 3)
	assert.True(t, logs[0].Fertilized)
	assert.Equal(t, plants.ImageRef("data:3"), logs[0].Image)
	assert.Equal(t, fig().Logs, logs[1:])

	// the local mirror waits for the next snapshot
	p, _ := g.Plant("fig")
	assert.Len(t, p.Logs, 2)
	assert.Equal(t, LogForm{}, g.LogForm())
}

func TestAppendLogUnknownPlant(t *testing.T) {
	gw := newFakeGateway()
	g := newGarden(t, gw, fig())
	g.SetLogForm(LogForm{Note: "kept"})

	err := g.AppendLog(context.Background(), "nope", "note", true, true, "")
	assert.ErrorIs(t, err, ErrUnknownPlant)
	assert.Empty(t, gw.mutations)
	assert.Equal(t, LogForm{Note: "kept"}, g.LogForm())
}

func TestDeleteMissingPlantShowsList(t *testing.T) {
	g := newGarden(t, gateway.Null{}, fig())
	require.NoError(t, g.Open("fig"))

	g.Delete(context.Background(), "nope")

	assert.Equal(t, []plants.Plant{fig()}, g.List())
	view, id := g.View()
	assert.Equal(t, ListView, view)
	assert.Equal(t, "", id)
}

func TestDeleteFallsBackToLocalStore(t *testing.T) {
	g := newGarden(t, gateway.Null{}, fig())
	g.Delete(context.Background(), "fig")
	assert.Empty(t, g.List())
}

func TestDeleteRemote(t *testing.T) {
	gw := newFakeGateway()
	g := newGarden(t, gw, fig())
	g.Delete(context.Background(), "fig")
	assert.Equal(t, []string{"fig"}, gw.removed)
	assert.Len(t, g.List(), 1)
}

func TestDeleteLocalOnlyPlant(t *testing.T) {
	gw := newFakeGateway()
	gw.missing = []string{"fig"}
	g := newGarden(t, gw, fig())
	require.NoError(t, g.Open("fig"))

	g.Delete(context.Background(), "fig")

	assert.Empty(t, gw.removed)
	assert.Empty(t, g.List())
	view, _ := g.View()
	assert.Equal(t, ListView, view)
}

func TestSnapshotsReplaceCollection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw := newFakeGateway()
	g := newGarden(t, gw)
	g.Start(ctx, "alice")

	gw.events <- gateway.Event{Plants: []plants.Plant{fig()}}
	<-g.Synced()
	assert.Eventually(t, func() bool { return len(g.List()) == 1 }, time.Second, 5*time.Millisecond)

	// a write made during an outage is only kept until the next snapshot
	gw.setFail(true)
	require.NoError(t, g.Create(ctx, "Basil", "", ""))
	assert.Len(t, g.List(), 2)

	gw.events <- gateway.Event{Plants: []plants.Plant{fig()}}
	assert.Eventually(t, func() bool { return len(g.List()) == 1 }, time.Second, 5*time.Millisecond)

	close(gw.events)
	g.Wait()
}

func TestSubscriptionErrorKeepsLastPlants(t *testing.T) {
	gw := newFakeGateway()
	g := newGarden(t, gw)
	g.Start(context.Background(), "alice")

	gw.events <- gateway.Event{Plants: []plants.Plant{fig()}}
	gw.events <- gateway.Event{Err: &gateway.Error{Op: "subscribe", Kind: gateway.Rejected, Err: gateway.ErrUnavailable}}
	close(gw.events)
	g.Wait()

	assert.Equal(t, []plants.Plant{fig()}, g.List())
}

func TestSyncedWhenSubscriptionUnavailable(t *testing.T) {
	g := newGarden(t, gateway.Null{})
	g.Start(context.Background(), plants.GuestUid)
	select {
	case <-g.Synced():
	default:
		t.Fatal("expected Synced to be closed")
	}
}

func TestOpenUnknownPlant(t *testing.T) {
	g := newGarden(t, gateway.Null{})
	assert.ErrorIs(t, g.Open("nope"), ErrUnknownPlant)
	view, _ := g.View()
	assert.Equal(t, ListView, view)
}

func TestComparisonInDetailView(t *testing.T) {
	g := newGarden(t, gateway.Null{}, fig())
	require.NoError(t, g.Open("fig"))

	g.Toggle("log-2")
	g.Toggle(plants.InitialPhotoId)

	d, ok := g.Detail()
	require.True(t, ok)
	assert.Equal(t, "fig", d.Plant.Id)
	require.Len(t, d.Photos, 2)
	assert.Equal(t, []string{"log-2", plants.InitialPhotoId}, d.Selected)
	require.Len(t, d.Comparison, 2)
	assert.Equal(t, plants.InitialPhotoId, d.Comparison[0].Id)
	assert.Equal(t, "log-2", d.Comparison[1].Id)
}

func TestSelectionResetOnNavigation(t *testing.T) {
	g := newGarden(t, gateway.Null{}, fig())
	require.NoError(t, g.Open("fig"))
	g.Toggle("log-2")
	g.Back()

	g.Toggle(plants.InitialPhotoId)
	_, ok := g.Detail()
	assert.False(t, ok)

	require.NoError(t, g.Open("fig"))
	d, ok := g.Detail()
	require.True(t, ok)
	assert.Empty(t, d.Selected)
	assert.Empty(t, d.Comparison)
}
