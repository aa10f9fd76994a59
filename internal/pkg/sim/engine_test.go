package sim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/bus"
	"github.com/ohowland/powersim/internal/pkg/snapshot"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

const tickMs = DefaultTickMs

func newEngine(opts Options) *Engine {
	opts.Logger = zerolog.Nop()
	return New(opts)
}

func component(t *testing.T, kind asset.Kind, variant asset.Variant, id string) asset.Component {
	t.Helper()
	c, err := asset.New(kind, variant, id, "")
	assert.NilError(t, err)
	return c
}

func mustComponent(t *testing.T, s State, id string) asset.Component {
	t.Helper()
	c, ok := s.Component(id)
	assert.Assert(t, ok, "component %s missing", id)
	return c
}

func hasEvent(events []Event, kind EventKind, id string) bool {
	for _, ev := range events {
		if ev.Kind == kind && ev.ComponentID == id {
			return true
		}
	}
	return false
}

func run(e *Engine, ticks int) Result {
	var res Result
	for i := 0; i < ticks; i++ {
		res = e.Tick(tickMs)
	}
	return res
}

// feed -> sts (0 ms) -> rack(5 kW)
func scenario(t *testing.T) *Engine {
	t.Helper()
	sts := component(t, asset.VoltageSwitch, asset.STS, "sts")
	assert.Equal(t, sts.TransferDelayMs, int64(0))
	e := newEngine(Options{})
	err := e.LoadTopology(
		[]asset.Component{
			component(t, asset.GridFeed, asset.NoVariant, "feed"),
			sts,
			component(t, asset.Rack, asset.Single, "rack"),
		},
		[]bus.Connection{
			bus.NewConnection("c1", "feed", asset.PortOut, "sts", asset.PortIn1),
			bus.NewConnection("c2", "sts", asset.PortOut, "rack", asset.PortIn1),
		},
		false,
	)
	assert.NilError(t, err)
	return e
}

func TestScenarioSingleTickOutage(t *testing.T) {
	e := scenario(t)

	res := e.Tick(tickMs)
	assert.Equal(t, mustComponent(t, res.State, "rack").State, asset.Normal)
	assert.Equal(t, res.State.Metrics.TotalLoadKW, 5.0)
	c1, _ := res.State.Connection("c1")
	assert.Assert(t, c1.Active)

	e.SetGridDown(true)
	res = e.Tick(tickMs)
	assert.Assert(t, !mustComponent(t, res.State, "sts").Energized(asset.PortOut))
	assert.Equal(t, mustComponent(t, res.State, "rack").State, asset.Fault)
	assert.Equal(t, res.State.Metrics.TotalLoadKW, 0.0)
	assert.Equal(t, res.State.Metrics.GridStatus, "CRITICAL")

	e.SetGridDown(false)
	res = e.Tick(tickMs)
	rack := mustComponent(t, res.State, "rack")
	assert.Equal(t, rack.State, asset.Normal)
	assert.Assert(t, !rack.AlarmActive)
	assert.Equal(t, res.State.Metrics.TotalLoadKW, 5.0)
}

func TestScenarioLongOutageReboots(t *testing.T) {
	e := scenario(t)
	run(e, 1)

	e.SetGridDown(true)
	run(e, 3)
	e.SetGridDown(false)
	res := e.Tick(tickMs)

	rack := mustComponent(t, res.State, "rack")
	assert.Equal(t, rack.State, asset.Rebooting)
	assert.Assert(t, rack.AlarmActive)
	assert.Equal(t, res.State.Metrics.TotalLoadKW, 0.0)
	assert.Equal(t, res.State.Metrics.HealthPct, 0)
	assert.Assert(t, hasEvent(res.Events, RackReboot, "rack"))

	// 250 ticks including the one that started the reboot
	res = run(e, 248)
	assert.Equal(t, mustComponent(t, res.State, "rack").State, asset.Rebooting)
	res = e.Tick(tickMs)
	rack = mustComponent(t, res.State, "rack")
	assert.Equal(t, rack.State, asset.Normal)
	assert.Equal(t, rack.RebootProgressPct, 100.0)
	assert.Assert(t, hasEvent(res.Events, RackRecovered, "rack"))

	_, err := e.ClearAlarm("rack")
	assert.NilError(t, err)
	assert.Assert(t, !mustComponent(t, e.Snapshot(), "rack").AlarmActive)
}

func TestFaultOverrideWithinOneTick(t *testing.T) {
	e := scenario(t)
	run(e, 3)

	_, err := e.SetFault("sts", true)
	assert.NilError(t, err)
	res := e.Tick(tickMs)
	sts := mustComponent(t, res.State, "sts")
	assert.Equal(t, sts.State, asset.Fault)
	assert.Assert(t, !sts.Energized(asset.PortOut))
	assert.Equal(t, mustComponent(t, res.State, "rack").State, asset.Fault)
}

func TestDamagedConnectionIsolates(t *testing.T) {
	e := scenario(t)
	run(e, 1)

	conn, err := e.SetDamaged("c2", true)
	assert.NilError(t, err)
	assert.Assert(t, conn.Damaged)

	res := run(e, 3)
	c2, _ := res.State.Connection("c2")
	assert.Assert(t, !c2.Active)
	assert.Assert(t, mustComponent(t, res.State, "sts").Energized(asset.PortOut))
	rack := mustComponent(t, res.State, "rack")
	assert.Assert(t, !rack.Energized(asset.PortIn1))
	assert.Equal(t, rack.State, asset.Fault)

	_, err = e.SetDamaged("c2", false)
	assert.NilError(t, err)
	res = e.Tick(tickMs)
	assert.Equal(t, mustComponent(t, res.State, "rack").State, asset.Rebooting)
}

func TestInputPortIsOredAcrossConnections(t *testing.T) {
	ups := component(t, asset.UPS, asset.NoVariant, "ups")
	e := newEngine(Options{})
	err := e.LoadTopology(
		[]asset.Component{
			component(t, asset.GridFeed, asset.NoVariant, "feed"),
			ups,
			component(t, asset.Rack, asset.Single, "rack"),
		},
		[]bus.Connection{
			bus.NewConnection("from-ups", "ups", asset.PortOut, "rack", asset.PortIn1),
			bus.NewConnection("from-feed", "feed", asset.PortOut, "rack", asset.PortIn1),
		},
		true,
	)
	assert.NilError(t, err)

	res := run(e, 5)
	rack := mustComponent(t, res.State, "rack")
	assert.Assert(t, rack.Energized(asset.PortIn1))
	assert.Equal(t, rack.State, asset.Normal)
	fromFeed, _ := res.State.Connection("from-feed")
	assert.Assert(t, !fromFeed.Active)
}

// chain builds feed -> s1 -> ... -> sN -> rack with the connections stored
// downstream first, the worst case for a stored-order sweep.
func chain(t *testing.T, switches int) ([]asset.Component, []bus.Connection) {
	t.Helper()
	components := []asset.Component{component(t, asset.GridFeed, asset.NoVariant, "feed")}
	var conns []bus.Connection
	prev := "feed"
	for i := 1; i <= switches; i++ {
		id := fmt.Sprintf("s%d", i)
		components = append(components, component(t, asset.VoltageSwitch, asset.STS, id))
		conns = append([]bus.Connection{bus.NewConnection("to-"+id, prev, asset.PortOut, id, asset.PortIn1)}, conns...)
		prev = id
	}
	components = append(components, component(t, asset.Rack, asset.Single, "rack"))
	conns = append([]bus.Connection{bus.NewConnection("to-rack", prev, asset.PortOut, "rack", asset.PortIn1)}, conns...)
	return components, conns
}

func TestDeepChainLagsBehindPasses(t *testing.T) {
	components, conns := chain(t, 6)

	stored := newEngine(Options{})
	assert.NilError(t, stored.LoadTopology(components, conns, false))
	res := run(stored, 3)
	assert.Assert(t, mustComponent(t, res.State, "s5").Energized(asset.PortOut))
	assert.Assert(t, !mustComponent(t, res.State, "s6").Energized(asset.PortOut))
	assert.Equal(t, mustComponent(t, res.State, "rack").State, asset.Fault)

	deep := newEngine(Options{Passes: 7})
	assert.NilError(t, deep.LoadTopology(components, conns, false))
	res = deep.Tick(tickMs)
	assert.Equal(t, mustComponent(t, res.State, "rack").State, asset.Normal)

	topo := newEngine(Options{Ordering: Topological})
	assert.NilError(t, topo.LoadTopology(components, conns, false))
	res = topo.Tick(tickMs)
	assert.Equal(t, mustComponent(t, res.State, "rack").State, asset.Normal)
}

func TestDanglingConnectionIsInactive(t *testing.T) {
	e := newEngine(Options{})
	err := e.LoadTopology(
		[]asset.Component{component(t, asset.GridFeed, asset.NoVariant, "feed")},
		[]bus.Connection{bus.NewConnection("c1", "feed", asset.PortOut, "ghost", asset.PortIn1)},
		false,
	)
	assert.NilError(t, err)

	res := run(e, 2)
	c1, _ := res.State.Connection("c1")
	assert.Assert(t, !c1.Active)
	assert.Assert(t, mustComponent(t, res.State, "feed").Energized(asset.PortOut))
}

func TestLoadTopologyClearsInvalidActiveInput(t *testing.T) {
	sw := component(t, asset.VoltageSwitch, asset.AVR, "sw")
	sw.ActiveInputID = "in-9"
	e := newEngine(Options{})
	assert.NilError(t, e.LoadTopology([]asset.Component{sw}, nil, false))
	assert.Equal(t, mustComponent(t, e.Snapshot(), "sw").ActiveInputID, "")
}

func TestLoadTopologyRejectsDuplicates(t *testing.T) {
	feed := component(t, asset.GridFeed, asset.NoVariant, "feed")
	e := newEngine(Options{})
	err := e.LoadTopology([]asset.Component{feed, feed}, nil, false)
	assert.Assert(t, errors.Is(err, ErrInvalidTopology))
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	e := scenario(t)
	run(e, 1)

	s := e.Snapshot()
	s.Components[0].Faulty = true
	s.Connections[0].Damaged = true

	fresh := e.Snapshot()
	assert.Assert(t, !fresh.Components[0].Faulty)
	assert.Assert(t, !fresh.Connections[0].Damaged)
}

func TestSeedSite(t *testing.T) {
	e := newEngine(Options{})
	assert.NilError(t, e.LoadSeed())

	res := run(e, 10)
	assert.Equal(t, mustComponent(t, res.State, "rack1").State, asset.Normal)
	assert.Equal(t, mustComponent(t, res.State, "avr1").State, asset.Normal)
	assert.Equal(t, mustComponent(t, res.State, "ups2").State, asset.Normal)
	assert.Equal(t, mustComponent(t, res.State, "dgu1").State, asset.Normal)
	assert.Equal(t, res.State.Metrics.TotalLoadKW, 5.0)
	assert.Equal(t, res.State.Metrics.HealthPct, 100)

	e.SetGridDown(true)
	var events []Event
	for i := 0; i < 200; i++ {
		events = append(events, e.Tick(tickMs).Events...)
	}
	res.State = e.Snapshot()
	assert.Equal(t, mustComponent(t, res.State, "dguavr1").State, asset.Running)
	assert.Equal(t, mustComponent(t, res.State, "dgu1").State, asset.Starting)
	assert.Equal(t, mustComponent(t, res.State, "ups1").State, asset.Warning)
	assert.Equal(t, mustComponent(t, res.State, "rack1").State, asset.Normal)

	var triggered int
	for _, ev := range events {
		if ev.Kind == GeneratorTriggered && ev.ComponentID == "dguavr1" {
			triggered++
		}
	}
	assert.Equal(t, triggered, 1)
}

func TestDeterminismAcrossExportImport(t *testing.T) {
	a := newEngine(Options{})
	assert.NilError(t, a.LoadSeed())
	run(a, 20)
	a.SetGridDown(true)
	run(a, 80)

	data, err := snapshot.Encode(a.Export())
	assert.NilError(t, err)
	doc, err := snapshot.Decode(data)
	assert.NilError(t, err)

	b := newEngine(Options{})
	assert.NilError(t, b.Import(doc))
	assert.DeepEqual(t, b.Snapshot(), a.Snapshot())

	for _, e := range []*Engine{a, b} {
		run(e, 150)
		_, err := e.SetDamaged("c7", true)
		assert.NilError(t, err)
		run(e, 3)
		_, err = e.SetDamaged("c7", false)
		assert.NilError(t, err)
		e.SetGridDown(false)
		run(e, 100)
	}
	assert.DeepEqual(t, b.Snapshot(), a.Snapshot())
}

func TestImportMalformedLeavesStateUntouched(t *testing.T) {
	e := scenario(t)
	run(e, 2)
	before := e.Snapshot()

	doc := e.Export()
	doc.Connections = append(doc.Connections, bus.NewConnection("bad", "sts", asset.PortIn1, "rack", asset.PortIn1))
	err := e.Import(doc)
	assert.Assert(t, errors.Is(err, snapshot.ErrMalformedSnapshot))
	assert.DeepEqual(t, e.Snapshot(), before)
}
