package asset

import (
	"fmt"

	"github.com/google/uuid"
)

type archetypeKey struct {
	kind    Kind
	variant Variant
}

// archetypes hold the defaults the editor places on a new component.
var archetypes = map[archetypeKey]Component{
	{GridFeed, NoVariant}: {
		Ports:      []Port{{ID: PortOut, Direction: Output, Label: "L1"}},
		CapacityKW: 2000,
		State:      Normal,
	},
	{Generator, NoVariant}: {
		Ports: []Port{
			{ID: PortStart, Direction: Input, Label: "START"},
			{ID: PortBypass, Direction: Input, Label: "BYPASS"},
			{ID: PortPower, Direction: Output, Label: "LOAD"},
		},
		CapacityKW:      2000,
		TransferDelayMs: DefaultGeneratorStartMs,
		State:           Off,
	},
	{GeneratorController, NoVariant}: {
		Ports: []Port{
			{ID: PortIn1, Direction: Input, Label: "Monitor"},
			{ID: PortOut, Direction: Output, Label: "Trigger"},
		},
		State: Normal,
	},
	{VoltageSwitch, AVR}: {
		Ports: []Port{
			{ID: PortIn1, Direction: Input, Label: "Main"},
			{ID: PortIn2, Direction: Input, Label: "Backup"},
			{ID: PortOut, Direction: Output, Label: "Load"},
		},
		TransferDelayMs: 100,
		State:           Normal,
	},
	{VoltageSwitch, STS}: {
		Ports: []Port{
			{ID: PortIn1, Direction: Input, Label: "A"},
			{ID: PortIn2, Direction: Input, Label: "B"},
			{ID: PortOut, Direction: Output, Label: "Out"},
		},
		TransferDelayMs: 0,
		State:           Normal,
	},
	{VoltageSwitch, ATS}: {
		Ports: []Port{
			{ID: PortIn1, Direction: Input, Label: "A"},
			{ID: PortIn2, Direction: Input, Label: "B"},
			{ID: PortOut, Direction: Output, Label: "Out"},
		},
		TransferDelayMs: 5000,
		State:           Normal,
	},
	{UPS, NoVariant}: {
		Ports: []Port{
			{ID: PortIn1, Direction: Input, Label: "In"},
			{ID: PortOut, Direction: Output, Label: "Out"},
		},
		BatteryPct: 100,
		CapacityKW: 500,
		State:      Normal,
	},
	{Rack, Single}: {
		Ports:             []Port{{ID: PortIn1, Direction: Input, Label: "PSU1"}},
		LoadKW:            5,
		RebootProgressPct: 100,
		State:             Normal,
	},
	{Rack, Dual}: {
		Ports: []Port{
			{ID: PortIn1, Direction: Input, Label: "PSU1"},
			{ID: PortIn2, Direction: Input, Label: "PSU2"},
		},
		LoadKW:            5,
		RebootProgressPct: 100,
		State:             Normal,
	},
}

// New builds a component from the archetype of kind/variant. An empty id is
// replaced by a generated one.
func New(kind Kind, variant Variant, id, label string) (Component, error) {
	arch, ok := archetypes[archetypeKey{kind, variant}]
	if !ok {
		return Component{}, fmt.Errorf("%w: %q/%q", ErrUnknownKind, kind, variant)
	}
	if id == "" {
		id = uuid.NewString()
	}
	c := arch.Clone()
	c.ID = id
	c.Kind = kind
	c.Variant = variant
	c.Label = label
	if c.Label == "" {
		c.Label = DefaultLabel(kind, variant)
	}
	return c, nil
}

// Archetype describes a component type the editor can place.
type Archetype struct {
	Kind    Kind    `json:"kind"`
	Variant Variant `json:"variant,omitempty"`
	Label   string  `json:"label"`
}

var archetypeOrder = []archetypeKey{
	{GridFeed, NoVariant},
	{Generator, NoVariant},
	{GeneratorController, NoVariant},
	{VoltageSwitch, AVR},
	{VoltageSwitch, ATS},
	{VoltageSwitch, STS},
	{UPS, NoVariant},
	{Rack, Single},
	{Rack, Dual},
}

// Archetypes lists every kind/variant pair New accepts.
func Archetypes() []Archetype {
	out := make([]Archetype, 0, len(archetypeOrder))
	for _, k := range archetypeOrder {
		out = append(out, Archetype{Kind: k.kind, Variant: k.variant, Label: DefaultLabel(k.kind, k.variant)})
	}
	return out
}

// DefaultLabel is the human readable name of a kind/variant.
func DefaultLabel(kind Kind, variant Variant) string {
	switch kind {
	case GridFeed:
		return "Transformer Substation"
	case Generator:
		return "Diesel Generator"
	case GeneratorController:
		return "DGU AVR"
	case VoltageSwitch:
		switch variant {
		case ATS:
			return "Automatic Transfer Switch"
		case STS:
			return "Static Transfer Switch"
		}
		return "AVR Switch"
	case UPS:
		return "UPS Unit"
	case Rack:
		if variant == Dual {
			return "Server Rack (Dual PSU)"
		}
		return "Server Rack (Single PSU)"
	}
	return string(kind)
}
