package scaffold

import (
	"os"
	"path/filepath"

	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/fs"
)

// StarterFile is one file written by CreateStarter.
type StarterFile struct {
	RelPath string
	Content string
}

// StarterFiles lists the files of a starter recipe directory.
// The recipe comes first.
func StarterFiles() []StarterFile {
	return []StarterFile{
		{RelPath: RecipeFile, Content: StarterRecipe},
		{RelPath: filepath.Join("templates", "NOTICE.md.tt"), Content: NoticeTemplate},
	}
}

// CreateStarterResult lists what CreateStarter did.
type CreateStarterResult struct {
	Created     []string
	Overwritten []string
	Skipped     []string // template files that already existed
}

// CreateStarter writes the starter recipe and its templates under dir.
// An existing recipe is E_RECIPE_EXISTS unless force; existing templates are never overwritten.
func CreateStarter(fsys fs.FS, dir string, force bool) (CreateStarterResult, error) {
	var result CreateStarterResult
	for i, f := range StarterFiles() {
		path := filepath.Join(dir, f.RelPath)
		_, err := fsys.Stat(path)
		exists := err == nil
		if err != nil && !os.IsNotExist(err) {
			return result, errors.WrapWithDetails(errors.EWriteFailed, "failed to stat file", err,
				map[string]string{"file": path})
		}

		isRecipe := i == 0
		switch {
		case exists && isRecipe && !force:
			return result, errors.NewWithDetails(errors.ERecipeExists, f.RelPath+" already exists; use --force to overwrite",
				map[string]string{"file": path})
		case exists && !isRecipe:
			result.Skipped = append(result.Skipped, f.RelPath)
			continue
		}

		if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return result, errors.Wrap(errors.EWriteFailed, "failed to create directory", err)
		}
		if err := fs.WriteFileAtomic(fsys, path, []byte(f.Content), 0o644); err != nil {
			return result, errors.WrapWithDetails(errors.EWriteFailed, "failed to write file", err,
				map[string]string{"file": path})
		}
		if exists {
			result.Overwritten = append(result.Overwritten, f.RelPath)
		} else {
			result.Created = append(result.Created, f.RelPath)
		}
	}
	return result, nil
}
