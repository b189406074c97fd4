package agent

// Mode is how a method is executed by the satellite.
type Mode int

const (
	// Query methods are answered by a single replica and not certified.
	Query Mode = iota
	// Update methods go through consensus and are certified.
	Update
)

func (m Mode) String() string {
	if m == Update {
		return "update"
	}
	return "query"
}

// CallStrategy selects between fast uncertified reads and certified ones.
type CallStrategy string

const (
	// Certified runs every method, queries included, as an update call.
	Certified CallStrategy = "certified"
	// Uncertified runs queries as queries.
	Uncertified CallStrategy = "uncertified"
)

// BuildVariant names the satellite build an interface targets.
type BuildVariant string

const (
	Stock    BuildVariant = "stock"
	Extended BuildVariant = "extended"
)

// Interface describes the methods of a satellite build.
type Interface struct {
	Name    string
	Variant BuildVariant
	Methods map[string]Mode
}

// ModeFor returns how method must be called under strategy.
func (i Interface) ModeFor(method string, strategy CallStrategy) (Mode, error) {
	mode, ok := i.Methods[method]
	if !ok {
		return 0, ErrUnknownMethod
	}
	if strategy == Certified {
		return Update, nil
	}
	return mode, nil
}

// SatelliteInterface is the document API every satellite build exposes.
var SatelliteInterface = Interface{
	Name:    "satellite",
	Variant: Stock,
	Methods: map[string]Mode{
		"get_doc":        Query,
		"get_many_docs":  Query,
		"list_docs":      Query,
		"set_doc":        Update,
		"set_many_docs":  Update,
		"del_doc":        Update,
		"authenticate":   Update,
		"get_delegation": Query,
	},
}
