package module

import (
	"testing"

	phttp "contribot/internal/platform/net/http"
	kit "contribot/internal/platform/testkit"
)

type drainer interface{ Drain() int }

type drainImpl struct{ n int }

func (d drainImpl) Drain() int { return d.n }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) Name() string             { return m.name }
func (m fakeModule) Ports() any               { return m.ports }
func (m fakeModule) MountRoutes(phttp.Router) {}

func TestPortsOf(t *testing.T) {
	t.Parallel()
	type bundle struct {
		Drainer drainer
		hidden  drainer
	}
	cases := []struct {
		name  string
		ports any
		ok    bool
	}{
		{"nil", nil, false},
		{"direct", drainImpl{n: 1}, true},
		{"struct field", bundle{Drainer: drainImpl{n: 2}}, true},
		{"pointer bundle", &bundle{Drainer: drainImpl{n: 3}}, true},
		{"unexported only", bundle{hidden: drainImpl{n: 4}}, false},
	}
	for _, c := range cases {
		_, ok := PortsOf[drainer](fakeModule{name: c.name, ports: c.ports})
		kit.MustEqual(t, ok, c.ok, c.name)
	}
	kit.MustPanic(t, func() { MustPortsOf[drainer](fakeModule{name: "annotate"}) })
}

func TestRegistry(t *testing.T) {
	kit.Serial(t)
	Reset()
	t.Cleanup(Reset)

	Register("annotate", drainImpl{n: 5})
	got, ok := PortsAs[drainImpl]("annotate")
	kit.MustEqual(t, ok, true, "found")
	kit.MustEqual(t, got.n, 5, "value")

	_, ok = PortsAs[drainImpl]("missing")
	kit.MustEqual(t, ok, false, "missing")
	_, ok = PortsAs[string]("annotate")
	kit.MustEqual(t, ok, false, "wrong type")
}
