package catalog

import (
	_ "embed"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Default returns the built-in fixture catalog. The embedded document
// is vetted at build time, so a parse failure here is a programming
// error, not a runtime condition.
func Default() *StaticCatalog {
	c, err := LoadYAML(defaultFixtures)
	if err != nil {
		panic("catalog: embedded fixtures are invalid: " + err.Error())
	}
	return c
}
