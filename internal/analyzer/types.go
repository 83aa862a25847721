package analyzer

// Record is the removal impact of one package.
type Record struct {
	Identity          string
	Name              string
	SizeBytes         int64    // installed size of the package itself
	TotalRemovalBytes int64    // SizeBytes plus every co-removed package
	CoRemoved         []string // identities removed along with it, sorted
}

// Summary aggregates a set of records.
type Summary struct {
	Packages   int
	TotalBytes int64   // installed size of all packages
	Largest    *Record // record with the largest total removal size
	Leaves     int     // packages nothing else requires
}

// Removal is the combined impact of removing several packages at once.
type Removal struct {
	Roots             []string
	CoRemoved         []string // identities removed beyond the roots, sorted
	TotalRemovalBytes int64
}
