package patch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
)

// PatchFile applies the pipeline to path and writes the result back in
// place, keeping the file mode. With dryRun nothing is written. It returns
// the number of rewritten matches.
func (p *Pipeline) PatchFile(path string, dryRun bool, rep *report.Reporter) (int, error) {
	n, err := p.patchFile(path, dryRun, rep)
	if err != nil {
		err = &probe.OperationError{Target: path, Op: "patch", Err: err}
		rep.Failure("%v", err)
		return 0, err
	}
	return n, nil
}

// PatchFiles patches each path in order and stops at the first failure.
func (p *Pipeline) PatchFiles(paths []string, dryRun bool, rep *report.Reporter) error {
	total := 0
	for _, path := range paths {
		n, err := p.PatchFile(path, dryRun, rep)
		if err != nil {
			return err
		}
		total += n
	}

	rep.Info("%d files, %d changes", len(paths), total)
	return nil
}

func (p *Pipeline) patchFile(path string, dryRun bool, rep *report.Reporter) (int, error) {
	// Write through symlinks to the file they point at; the link stays.
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file")
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return 0, err
	}

	out, changes, err := p.ApplyChecked(string(data))
	if err != nil {
		return 0, err
	}

	if len(changes) == 0 {
		rep.Info("unchanged %s", path)
		return 0, nil
	}

	n := 0
	for _, c := range changes {
		n += c.Count
	}

	if dryRun {
		rep.Info("would patch %s (%d changes)", path, n)
	} else {
		if err := writeAtomic(target, []byte(out), info.Mode().Perm()); err != nil {
			return 0, err
		}
		rep.Success("patched %s (%d changes)", path, n)
	}

	for _, c := range changes {
		rep.Detail("%s: %d", c.Rule, c.Count)
	}
	return n, nil
}

// writeAtomic replaces path through a temp file in the same directory so a
// failed write never leaves a truncated file behind.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
