package sim

import (
	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/bus"
)

type seedComponent struct {
	kind    asset.Kind
	variant asset.Variant
	id      string
	label   string
}

var seedComponents = []seedComponent{
	{asset.GridFeed, asset.NoVariant, "tp1", "Grid Source A"},
	{asset.GridFeed, asset.NoVariant, "tp2", "Grid Source B"},
	{asset.GeneratorController, asset.NoVariant, "dguavr1", "DGU Control"},
	{asset.Generator, asset.NoVariant, "dgu1", "Diesel Backup"},
	{asset.VoltageSwitch, asset.AVR, "avr1", "AVR Main/Gen"},
	{asset.UPS, asset.NoVariant, "ups1", "UPS-A"},
	{asset.UPS, asset.NoVariant, "ups2", "UPS-B"},
	{asset.VoltageSwitch, asset.STS, "sts1", "Rack STS"},
	{asset.Rack, asset.Dual, "rack1", "Core Switch Rack"},
}

var seedConnections = []bus.Connection{
	bus.NewConnection("c1", "tp2", asset.PortOut, "avr1", asset.PortIn1),
	bus.NewConnection("c2", "dgu1", asset.PortPower, "avr1", asset.PortIn2),
	bus.NewConnection("c3", "tp1", asset.PortOut, "ups1", asset.PortIn1),
	bus.NewConnection("c4", "avr1", asset.PortOut, "ups2", asset.PortIn1),
	bus.NewConnection("c5", "ups1", asset.PortOut, "sts1", asset.PortIn1),
	bus.NewConnection("c6", "ups2", asset.PortOut, "sts1", asset.PortIn2),
	bus.NewConnection("c7", "sts1", asset.PortOut, "rack1", asset.PortIn1),
	bus.NewConnection("c8", "tp1", asset.PortOut, "dguavr1", asset.PortIn1),
	bus.NewConnection("c9", "dguavr1", asset.PortOut, "dgu1", asset.PortStart),
	bus.NewConnection("c10", "tp1", asset.PortOut, "dgu1", asset.PortBypass),
}

// Seed returns the demo site: two grid feeds, a generator with its
// controller, an AVR, two UPS units, an STS and a dual-PSU rack.
func Seed() ([]asset.Component, []bus.Connection) {
	components := make([]asset.Component, 0, len(seedComponents))
	for _, s := range seedComponents {
		c, err := asset.New(s.kind, s.variant, s.id, s.label)
		if err != nil {
			panic(err)
		}
		components = append(components, c)
	}
	connections := make([]bus.Connection, len(seedConnections))
	copy(connections, seedConnections)
	return components, connections
}

// LoadSeed replaces the topology with the demo site.
func (e *Engine) LoadSeed() error {
	components, connections := Seed()
	return e.LoadTopology(components, connections, false)
}
