package applier

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/exec"
	"github.com/NielsdaWheelz/stencil/internal/patch"
	"github.com/NielsdaWheelz/stencil/internal/step"
	"github.com/NielsdaWheelz/stencil/internal/tmpl"
)

func (a *Applier) execute(ctx context.Context, s step.Step, cs *changeSet, force bool) error {
	switch s.Kind {
	case step.KindCopyDirectory:
		return a.copyDirectory(s, cs, force)
	case step.KindCopyFile:
		return a.copyFile(s, cs, force)
	case step.KindInsertText:
		return a.insertText(s, cs)
	case step.KindAppendText:
		return a.appendText(s, cs)
	case step.KindRegexReplace:
		return a.regexReplace(s, cs)
	case step.KindRunCommand:
		return a.runCommand(ctx, s)
	case step.KindRemoveFile:
		return a.removeFile(s, cs)
	case step.KindSay:
		a.ws.reporter().Say(s.Message)
		return nil
	}
	return errors.Newf(errors.EInvalidRecipe, "unknown step kind %q", s.Kind)
}

func (a *Applier) copyDirectory(s step.Step, cs *changeSet, force bool) error {
	src, err := a.ws.FindSource(s.Src)
	if err != nil {
		return err
	}
	info, err := a.ws.FS.Stat(src)
	if err != nil {
		return errors.Wrap(errors.ESourceNotFound, "failed to stat template source", err)
	}
	if !info.IsDir() {
		return errors.NewWithDetails(errors.EInvalidRecipe, "copy_directory source is not a directory",
			map[string]string{"src": s.Src})
	}
	dst := s.Dst
	if dst == "" {
		dst = s.Src
	}
	return a.copyTree(src, a.ws.Path(dst), cs, force)
}

func (a *Applier) copyTree(srcDir, dstDir string, cs *changeSet, force bool) error {
	entries, err := a.ws.FS.ReadDir(srcDir)
	if err != nil {
		return errors.WrapWithDetails(errors.ESourceNotFound, "failed to read template directory", err,
			map[string]string{"dir": srcDir})
	}
	for _, e := range entries {
		if skipEntry(e.Name()) {
			continue
		}
		src := filepath.Join(srcDir, e.Name())
		dst := filepath.Join(dstDir, e.Name())
		if e.IsDir() {
			if err := a.copyTree(src, dst, cs, force); err != nil {
				return err
			}
			continue
		}
		if tmpl.IsTemplate(dst) {
			dst = tmpl.OutputName(dst)
		}
		if err := a.copyOne(src, dst, cs, force); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) copyFile(s step.Step, cs *changeSet, force bool) error {
	src, err := a.ws.FindSource(s.Src)
	if err != nil {
		return err
	}
	info, err := a.ws.FS.Stat(src)
	if err != nil {
		return errors.Wrap(errors.ESourceNotFound, "failed to stat template source", err)
	}
	if info.IsDir() {
		return errors.NewWithDetails(errors.EInvalidRecipe, "copy_file source is a directory",
			map[string]string{"src": s.Src})
	}
	dst := s.Dst
	if dst == "" {
		dst = tmpl.OutputName(s.Src)
	}
	return a.copyOne(src, a.ws.Path(dst), cs, force)
}

// copyOne writes src to dst, rendering `.tt` sources.
// Status lines: create, identical, skip (exists, no force), force (overwritten).
func (a *Applier) copyOne(src, dst string, cs *changeSet, force bool) error {
	data, err := a.ws.FS.ReadFile(src)
	if err != nil {
		return errors.WrapWithDetails(errors.ESourceNotFound, "failed to read template file", err,
			map[string]string{"file": src})
	}
	info, err := a.ws.FS.Stat(src)
	if err != nil {
		return errors.WrapWithDetails(errors.ESourceNotFound, "failed to stat template file", err,
			map[string]string{"file": src})
	}
	if tmpl.IsTemplate(src) {
		out, err := tmpl.Render(string(data), a.ws.Vars)
		if err != nil {
			return errors.WrapWithDetails(errors.ERenderFailed, "failed to render template", err,
				map[string]string{"file": src})
		}
		data = []byte(out)
	}

	rel := a.ws.Rel(dst)
	action := "create"
	existing, err := a.ws.FS.ReadFile(dst)
	switch {
	case err == nil && bytes.Equal(existing, data):
		a.ws.reporter().Status("identical", rel)
		return nil
	case err == nil && !force:
		a.ws.reporter().Status("skip", rel)
		return nil
	case err == nil:
		action = "force"
	case !os.IsNotExist(err):
		return errors.WrapWithDetails(errors.EWriteFailed, "failed to read destination", err,
			map[string]string{"file": rel})
	}

	a.ws.reporter().Status(action, rel)
	return cs.write(dst, data, info.Mode().Perm())
}

// readTarget reads a file that a step edits in place. Missing is E_FILE_MISSING.
func (a *Applier) readTarget(file string) (path string, content string, mode os.FileMode, err error) {
	path, err = a.ws.ResolveFile(file)
	if err != nil {
		return "", "", 0, err
	}
	info, err := a.ws.FS.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", 0, errors.NewWithDetails(errors.EFileMissing, "file does not exist",
				map[string]string{"file": file})
		}
		return "", "", 0, errors.Wrap(errors.EWriteFailed, "failed to stat file", err)
	}
	data, err := a.ws.FS.ReadFile(path)
	if err != nil {
		return "", "", 0, errors.WrapWithDetails(errors.EWriteFailed, "failed to read file", err,
			map[string]string{"file": file})
	}
	return path, string(data), info.Mode().Perm(), nil
}

func (a *Applier) insertText(s step.Step, cs *changeSet) error {
	path, content, mode, err := a.readTarget(s.File)
	if err != nil {
		return err
	}
	rel := a.ws.Rel(path)
	if s.Once && patch.Inserted(content, s.Anchor, s.Text, s.Position) {
		a.ws.reporter().Status("identical", rel)
		return nil
	}
	out, err := patch.Insert(content, s.Anchor, s.Text, s.Position)
	if stderrors.Is(err, patch.ErrAnchorNotFound) {
		return errors.NewWithDetails(errors.EAnchorNotFound, "anchor not found in file",
			map[string]string{"file": rel, "anchor": s.Anchor})
	}
	if err != nil {
		return err
	}
	a.ws.reporter().Status("insert", rel)
	return cs.write(path, []byte(out), mode)
}

func (a *Applier) appendText(s step.Step, cs *changeSet) error {
	path, content, mode, err := a.readTarget(s.File)
	if err != nil {
		return err
	}
	if s.Line && content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	a.ws.reporter().Status("append", a.ws.Rel(path))
	return cs.write(path, []byte(content+s.Text), mode)
}

func (a *Applier) regexReplace(s step.Step, cs *changeSet) error {
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return errors.WrapWithDetails(errors.EInvalidRecipe, "invalid pattern", err,
			map[string]string{"pattern": s.Pattern})
	}
	path, content, mode, err := a.readTarget(s.File)
	if err != nil {
		return err
	}
	rel := a.ws.Rel(path)
	out, matched := patch.ReplaceFirst(content, re, s.Replacement)
	if !matched || out == content {
		a.ws.logger().Debug("pattern did not change file", "file", rel, "pattern", s.Pattern)
		return nil
	}
	a.ws.reporter().Status("gsub", rel)
	return cs.write(path, []byte(out), mode)
}

func (a *Applier) runCommand(ctx context.Context, s step.Step) error {
	name, args := s.Command, s.Args
	if s.Shell != "" {
		name, args = exec.Shell(s.Shell)
	}
	dir := a.ws.Target
	if s.Dir != "" {
		dir = a.ws.Path(s.Dir)
	}
	display := exec.Display(name, args)
	if s.Shell != "" {
		display = s.Shell
	}
	a.ws.reporter().Status("run", display)

	res, err := a.ws.Runner.Run(ctx, name, args, exec.RunOpts{Dir: dir, Echo: a.ws.Echo})
	if ctxErr := ctx.Err(); ctxErr != nil && (err != nil || res.ExitCode != 0) {
		return errors.WrapWithDetails(errors.EInternal, "apply canceled", ctxErr,
			map[string]string{"command": display})
	}
	if err != nil {
		return errors.WrapWithDetails(errors.ECommandStart, "failed to start command", err,
			map[string]string{"command": display})
	}
	if res.ExitCode != 0 {
		return errors.NewWithDetails(errors.ECommandFailed, "command exited non-zero", map[string]string{
			"command":   display,
			"exit_code": strconv.Itoa(res.ExitCode),
			"stderr":    res.Stderr,
		})
	}
	return nil
}

func (a *Applier) removeFile(s step.Step, cs *changeSet) error {
	path, err := a.ws.ResolveFile(s.File)
	if err != nil {
		return err
	}
	info, err := a.ws.FS.Stat(path)
	if err != nil || info.IsDir() {
		return errors.NewWithDetails(errors.EFileMissing, "file does not exist",
			map[string]string{"file": s.File})
	}
	a.ws.reporter().Status("remove", a.ws.Rel(path))
	return cs.remove(path)
}
