package store

import (
	"testing"

	"github.com/mgmu/greenlog/internal/plants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAppendAndGet(t *testing.T) {
	l := NewLocal()
	l.Append(plants.Plant{Id: "1", Name: "Fig"})
	l.Append(plants.Plant{Id: "2", Name: "Basil"})

	require.Equal(t, 2, l.Len())
	p, ok := l.Get("2")
	require.True(t, ok)
	assert.Equal(t, "Basil", p.Name)

	_, ok = l.Get("3")
	assert.False(t, ok)
}

func TestLocalListIsACopy(t *testing.T) {
	l := NewLocal()
	l.Append(plants.Plant{Id: "1", Name: "Fig"})
	list := l.List()
	list[0].Name = "changed"

	p, _ := l.Get("1")
	assert.Equal(t, "Fig", p.Name)
}

func TestLocalReplace(t *testing.T) {
	l := NewLocal()
	l.Append(plants.Plant{Id: "local"})
	l.Replace([]plants.Plant{{Id: "a"}, {Id: "b"}})

	assert.Equal(t, 2, l.Len())
	_, ok := l.Get("local")
	assert.False(t, ok)
}

func TestLocalPrependLog(t *testing.T) {
	l := NewLocal()
	l.Append(plants.Plant{Id: "1", Logs: []plants.LogEntry{{Id: "old"}}})

	assert.True(t, l.PrependLog("1", plants.LogEntry{Id: "new"}))
	assert.False(t, l.PrependLog("2", plants.LogEntry{Id: "new"}))

	p, _ := l.Get("1")
	require.Len(t, p.Logs, 2)
	assert.Equal(t, "new", p.Logs[0].Id)
	assert.Equal(t, "old", p.Logs[1].Id)
}

func TestLocalRemove(t *testing.T) {
	l := NewLocal()
	l.Append(plants.Plant{Id: "1"})
	l.Append(plants.Plant{Id: "2"})

	assert.True(t, l.Remove("1"))
	assert.False(t, l.Remove("1"))
	assert.Equal(t, []plants.Plant{{Id: "2"}}, l.List())
}
