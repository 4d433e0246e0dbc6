package process

import (
	"path/filepath"
	"strings"

	"cssscope/config"
	"cssscope/state"
)

// buildOutputPath returns output file path for stylesheet. "name" is the
// source path relative to the processed root (for single file just its base
// name), its directory part is kept under dst unless requested otherwise.
// style.css becomes style<suffix>.css.
func buildOutputPath(name, dst string, env *state.LocalEnv) string {
	outDir := dst
	if !env.NoDirs {
		outDir = filepath.Join(dst, filepath.Dir(name))
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := config.CleanFileName(strings.TrimSuffix(base, ext))
	if ext == "" {
		ext = stylesheetExt
	}
	return filepath.Join(outDir, stem+env.Cfg.Scoping.OutputSuffix+ext)
}
