package vba

import "fmt"

// ModuleEntry names one module's location inside the VBA project storage:
// its stream name and the performance-cache version needed to choose the
// 97+ or "5x" header shape (spec §4.9's module directory, supplemented per
// SPEC_FULL since the distilled spec only covers a single already-located
// module blob).
type ModuleEntry struct {
	Name       string
	StreamName string
	VBAVersion uint16
}

// Project is the minimal module directory: enough to resolve a module name
// to the blob LoadModule expects. SysKind is the PROJECTSYSKIND value shared
// by every module in the project (1 = Win16, 3 = Win32/64); it lives in the
// project's dir stream, which this parser does not otherwise model.
type Project struct {
	Modules []ModuleEntry
	SysKind int
}

// Find returns the entry for name, or false if the project has no such
// module.
func (p *Project) Find(name string) (ModuleEntry, bool) {
	for _, m := range p.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleEntry{}, false
}

// ModuleDecompiler is the public entry point named in spec §6: open a
// module's blob, inspect its line counts, then iterate decompiled lines.
type ModuleDecompiler struct {
	module *Module
	dec    *Decompiler
	pos    int
}

// OpenModule loads data as a module's performance cache and returns a
// decompiler over it (spec §6: "ModuleDecompiler::open(f, size, project,
// vba_project)"; project/vba_project resolve the module's vbaVersion and
// sysKind ahead of this call since Go's LoadModule takes them directly).
func OpenModule(data []byte, vbaVersion uint16, sysKind int) (*ModuleDecompiler, error) {
	m, err := LoadModule(data, vbaVersion, sysKind)
	if err != nil {
		return nil, err
	}
	return &ModuleDecompiler{module: m, dec: NewDecompiler(m)}, nil
}

// NumLines returns (total, non_contiguous) per spec §4.9.
func (md *ModuleDecompiler) NumLines() (total, nonContiguous int) {
	return md.module.NumLines()
}

// Next returns the next decompiled line, or ok=false once the module is
// exhausted. A non-nil err with ok=true means this particular line failed
// to decompile; callers should log it and keep calling Next.
func (md *ModuleDecompiler) Next() (text string, err error, ok bool) {
	if md.pos >= len(md.module.Lines) {
		return "", nil, false
	}
	text, err = md.dec.DecompileLine(md.pos)
	md.pos++
	return text, err, true
}

// Lines decompiles every line of the module eagerly, starting from the first
// regardless of how far Next has advanced.
func (md *ModuleDecompiler) Lines() []LineResult {
	return md.dec.Lines()
}

// Module exposes the underlying loaded module, e.g. for Attributes().
func (md *ModuleDecompiler) Module() *Module { return md.module }

func (p *Project) String() string {
	return fmt.Sprintf("vba project with %d module(s)", len(p.Modules))
}
