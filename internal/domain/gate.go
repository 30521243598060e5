package domain

// Gate is one stage in the fixed nine-gate pipeline.
type Gate string

const (
	GateG1 Gate = "G1" // discovery
	GateG2 Gate = "G2" // requirements
	GateG3 Gate = "G3" // architecture
	GateG4 Gate = "G4" // design concepts
	GateG5 Gate = "G5" // implementation handoff
	GateG6 Gate = "G6" // implementation
	GateG7 Gate = "G7" // review
	GateG8 Gate = "G8" // verification
	GateG9 Gate = "G9" // release
)

// Gates is the fixed linear gate sequence.
var Gates = []Gate{GateG1, GateG2, GateG3, GateG4, GateG5, GateG6, GateG7, GateG8, GateG9}

// Ordinal returns the zero-based position of the gate, or -1 if unknown.
func (g Gate) Ordinal() int {
	for i, gate := range Gates {
		if gate == g {
			return i
		}
	}
	return -1
}

// Valid reports whether the gate is one of the nine pipeline gates.
func (g Gate) Valid() bool {
	return g.Ordinal() >= 0
}

// Next returns the following gate, or "" at the end of the pipeline.
func (g Gate) Next() Gate {
	i := g.Ordinal()
	if i < 0 || i+1 >= len(Gates) {
		return ""
	}
	return Gates[i+1]
}
