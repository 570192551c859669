package matching

// SynergyGroup is a set of correlated tags that earn a flat bonus when
// requested and satisfied together.
type SynergyGroup struct {
	Name string
	Tags []string
}

// ConflictPair names two tags that pull a brief in opposite directions.
type ConflictPair struct {
	A, B string
}

func DefaultSynergyGroups() []SynergyGroup {
	return []SynergyGroup{
		{Name: "fresh-energetic-young", Tags: []string{"fresh", "energetic", "young"}},
		{Name: "dark-powerful-experimental", Tags: []string{"dark", "powerful", "experimental"}},
		{Name: "elegant-classic-soft", Tags: []string{"elegant", "classic", "soft"}},
		{Name: "street-powerful-athletic", Tags: []string{"street", "powerful", "athletic"}},
	}
}

func DefaultConflictPairs() []ConflictPair {
	return []ConflictPair{
		{"fresh", "dark"},
		{"sexy", "cute"},
		{"powerful", "soft"},
		{"energetic", "calm"},
		{"trendy", "classic"},
		{"experimental", "commercial"},
		{"young", "mature"},
	}
}
