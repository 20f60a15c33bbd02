// Package resolve merges a module's imported and extern Astra modules into
// a single resolved document. Resolution is intentionally simple: functions
// are merged by name, and a name collision is a hard error rather than a
// silent override, so repair loops see a deterministic failure instead of
// a module that quietly shadowed one of its own functions.
package resolve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/ast"
)

func loadJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.NewDriver(fmt.Sprintf("read %s: %v", path, err))
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.NewDriver(fmt.Sprintf("parse %s: %v", path, err))
	}
	return doc, nil
}

// mergeFunctions appends src's functions onto dst's, erroring on any name
// already present in dst.
func mergeFunctions(dst map[string]any, src map[string]any, srcLabel string) error {
	dstFuncsRaw, _ := dst["functions"].([]any)
	existing := map[string]bool{}
	for _, f := range dstFuncsRaw {
		if fm, ok := f.(map[string]any); ok {
			if name := ast.AsString(fm["name"]); name != "" {
				existing[name] = true
			}
		}
	}

	for _, f := range ast.AsList(src["functions"]) {
		fm, ok := f.(map[string]any)
		if !ok {
			continue
		}
		name := ast.AsString(fm["name"])
		if name == "" {
			continue
		}
		if existing[name] {
			return apperr.NewDriver(fmt.Sprintf("function name conflict while merging %s: %s", srcLabel, name))
		}
		dstFuncsRaw = append(dstFuncsRaw, fm)
		existing[name] = true
	}

	dst["functions"] = dstFuncsRaw
	return nil
}

// ResolveModule loads modulePath and merges every module listed under its
// `imports` and `externs` arrays (paths resolved relative to modulePath's
// directory) by function name.
func ResolveModule(modulePath string) (map[string]any, error) {
	baseDir := filepath.Dir(modulePath)
	module, err := loadJSON(modulePath)
	if err != nil {
		return nil, err
	}

	for _, rel := range ast.StringList(module["imports"]) {
		impPath := filepath.Clean(filepath.Join(baseDir, rel))
		imported, err := loadJSON(impPath)
		if err != nil {
			return nil, err
		}
		if err := mergeFunctions(module, imported, "import:"+rel); err != nil {
			return nil, err
		}
	}

	for _, rel := range ast.StringList(module["externs"]) {
		extPath := filepath.Clean(filepath.Join(baseDir, rel))
		externMod, err := loadJSON(extPath)
		if err != nil {
			return nil, err
		}
		if err := mergeFunctions(module, externMod, "extern:"+rel); err != nil {
			return nil, err
		}
	}

	return module, nil
}
