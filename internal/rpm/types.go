package rpm

import "fmt"

// Package represents an installed RPM package.
type Package struct {
	Name      string
	Epoch     string
	Version   string
	Release   string
	Arch      string
	SizeBytes int64
}

// Identity returns the version-qualified identifier of the package in the
// form name-epoch-version-release.arch. The epoch separator is a dash rather
// than the usual colon so identities can be written into graph snapshots
// verbatim.
func (p Package) Identity() string {
	return fmt.Sprintf("%s-%s-%s-%s.%s", p.Name, p.Epoch, p.Version, p.Release, p.Arch)
}
