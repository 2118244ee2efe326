package evm

import "fmt"

// Revision names a consensus-rule version (hard fork). Revisions are
// totally ordered by introduction, so backends can select opcode and gas
// semantics with a simple comparison. The numeric values are wire-stable.
type Revision int

const (
	Frontier         Revision = 0
	Homestead        Revision = 1
	TangerineWhistle Revision = 2
	SpuriousDragon   Revision = 3
	Byzantium        Revision = 4
	Constantinople   Revision = 5
	Petersburg       Revision = 6
	Istanbul         Revision = 7
	Berlin           Revision = 8

	// Latest resolves to the highest-numbered revision known at build time.
	Latest = Berlin
)

var revisionNames = map[Revision]string{
	Frontier:         "frontier",
	Homestead:        "homestead",
	TangerineWhistle: "tangerine_whistle",
	SpuriousDragon:   "spurious_dragon",
	Byzantium:        "byzantium",
	Constantinople:   "constantinople",
	Petersburg:       "petersburg",
	Istanbul:         "istanbul",
	Berlin:           "berlin",
}

// RevisionFromInt maps a numeric revision to its Revision, failing for
// values outside the defined set.
func RevisionFromInt(code int) (Revision, error) {
	r := Revision(code)
	if _, ok := revisionNames[r]; !ok {
		return 0, fmt.Errorf("evm: unknown revision %d", code)
	}
	return r, nil
}

// Supports reports whether rules introduced at other are in force under r.
func (r Revision) Supports(other Revision) bool {
	return r >= other
}

func (r Revision) String() string {
	if name, ok := revisionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("revision(%d)", int(r))
}
