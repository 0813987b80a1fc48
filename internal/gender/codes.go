// Package gender maps each hospital node's local gender codes to and from
// the canonical four-value interchange enumeration used by the HIE broker.
package gender

// Canonical is the interchange gender representation
type Canonical string

const (
	Male    Canonical = "male"
	Female  Canonical = "female"
	Other   Canonical = "other"
	Unknown Canonical = "unknown"
)

// Canonicals lists the four enum members
var Canonicals = []Canonical{Male, Female, Other, Unknown}

// Valid reports whether c is one of the four enum members
func (c Canonical) Valid() bool {
	switch c {
	case Male, Female, Other, Unknown:
		return true
	}
	return false
}

// CodeTable maps a node's local gender codes to canonical values and back
type CodeTable struct {
	node        string
	toLocal     map[Canonical]string
	toCanonical map[string]Canonical
}

// nodeTables holds the static per-node code tables. Each node keeps its own
// legacy encoding; the broker only ever sees canonical values.
var nodeTables = map[string][]struct {
	canonical Canonical
	local     string
}{
	"general": {
		{Male, "M"},
		{Female, "F"},
		{Other, "O"},
		{Unknown, "U"},
	},
	"lakeside": {
		{Male, "1"},
		{Female, "2"},
		{Other, "9"},
		{Unknown, "0"},
	},
	"stmarys": {
		{Male, "male"},
		{Female, "female"},
		{Other, "x"},
		{Unknown, "unk"},
	},
}

// TableFor returns the code table for a node. Unrecognized nodes get the
// identity-style table of the general hospital.
func TableFor(node string) CodeTable {
	rows, ok := nodeTables[node]
	if !ok {
		rows = nodeTables["general"]
	}

	t := CodeTable{
		node:        node,
		toLocal:     make(map[Canonical]string, len(rows)),
		toCanonical: make(map[string]Canonical, len(rows)),
	}
	for _, row := range rows {
		t.toLocal[row.canonical] = row.local
		t.toCanonical[row.local] = row.canonical
	}
	return t
}

// Node returns the node this table belongs to
func (t CodeTable) Node() string {
	return t.node
}

// Local maps a canonical value to the node's local code. Values outside the
// enumeration map to the local code for unknown.
func (t CodeTable) Local(c Canonical) string {
	if code, ok := t.toLocal[c]; ok {
		return code
	}
	return t.toLocal[Unknown]
}

// Canonical maps a local code to its canonical value. Unknown local codes
// fall back to the canonical unknown value; there is no validation beyond
// the table lookup.
func (t CodeTable) Canonical(local string) Canonical {
	if c, ok := t.toCanonical[local]; ok {
		return c
	}
	return Unknown
}
