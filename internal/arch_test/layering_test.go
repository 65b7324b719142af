package arch_test

import (
	"path/filepath"
	"testing"
)

// layers assigns each internal package to a numeric layer. Lower layers are
// more foundational; higher layers may depend on lower ones but not vice versa.
// A package at layer N may only import packages at layer N or below.
var layers = map[string]int{
	"config":    0,
	"dag":       0,
	"logging":   0,
	"telemetry": 0,

	"manifest": 1,
	"store":    1,
	"ui":       1,
	"watch":    1,

	"project": 2,
}

// forbiddenImports lists same-or-lower layer imports that are still illegal.
// Each entry maps importer → imported → reason.
var forbiddenImports = map[string]map[string]string{
	"dag": {
		"config":    "the engine takes values, not configuration",
		"logging":   "the engine returns errors and never logs",
		"telemetry": "events are emitted by callers of the engine",
	},
	"project": {
		"store": "project consumes the Store interface; cmd wires the SQLite backend",
	},
}

// TestDependencyLayering verifies that no internal package imports a package
// from a higher layer, enforcing the project's dependency DAG.
func TestDependencyLayering(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)

	for _, pkg := range internalPackages(t) {
		importerLayer, ok := layers[pkg]
		if !ok {
			// Unknown packages are caught by TestNoUnknownPackages.
			continue
		}

		for _, imp := range importsOf(t, filepath.Join(dir, pkg)) {
			if reason, bad := forbiddenImports[pkg][imp]; bad {
				t.Errorf("forbidden import: %s imports %s (%s)", pkg, imp, reason)
				continue
			}
			importedLayer, ok := layers[imp]
			if !ok {
				continue
			}
			if importerLayer < importedLayer {
				t.Errorf("layer violation: %s (layer %d) imports %s (layer %d)",
					pkg, importerLayer, imp, importedLayer)
			}
		}
	}
}

// TestNoUnknownPackages verifies that every internal package has an assigned
// layer. This forces developers to place new packages in the dependency DAG.
func TestNoUnknownPackages(t *testing.T) {
	t.Parallel()

	for _, pkg := range internalPackages(t) {
		if _, ok := layers[pkg]; !ok {
			t.Errorf("package %s has no layer assignment; add it to the layers map", pkg)
		}
	}
}
