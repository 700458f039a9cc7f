package remote

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyRemotePackageImportsInfra ensures that only the top-level remote
// package wraps the infra-backed implementations. Other packages must depend
// on the Adapter instead of importing backends directly.
func TestOnlyRemotePackageImportsInfra(t *testing.T) {
	infraPrefix := "voltschool/internal/infra/remote"
	allowedPrefix := "voltschool/internal/remote"

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "voltschool/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, allowedPrefix) || strings.HasPrefix(pkg.PkgPath, infraPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == infraPrefix || strings.HasPrefix(importPath, infraPrefix+"/") {
				seen[filepath.Join(pkg.PkgPath, "...")+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of infra remote package: %s", v)
		}
		t.Fatalf("found %d forbidden imports of infra remote packages", len(violations))
	}
}
