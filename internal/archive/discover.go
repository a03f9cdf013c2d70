package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sevenz-forensic/internal/errz"
)

// discoveredFile is one input walked off disk, paired with the archive-
// relative name it will be recorded under.
type discoveredFile struct {
	ArchiveName string
	AbsPath     string
	IsDir       bool
	Size        int64
	Mode        fs.FileMode
	ModTime     time.Time
}

// discoverInputs walks each of the given input paths (files or directories)
// and returns a flattened, name-sorted list of entries. Sorting by name
// makes archive contents deterministic across runs with the same input set,
// independent of directory-read order.
func discoverInputs(inputs []string) ([]discoveredFile, error) {
	var out []discoveredFile

	for _, input := range inputs {
		info, err := os.Lstat(input)
		if err != nil {
			return nil, errz.NewIOError("stat", input, err)
		}

		base := filepath.Base(filepath.Clean(input))
		parent := filepath.Dir(filepath.Clean(input))

		if !info.IsDir() {
			out = append(out, discoveredFile{
				ArchiveName: base,
				AbsPath:     input,
				IsDir:       false,
				Size:        info.Size(),
				Mode:        info.Mode(),
				ModTime:     info.ModTime(),
			})
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return errz.NewIOError("walk", path, walkErr)
			}
			rel, err := filepath.Rel(parent, path)
			if err != nil {
				return errz.Wrap(err, "archive: relative path")
			}
			info, err := d.Info()
			if err != nil {
				return errz.NewIOError("stat", path, err)
			}
			out = append(out, discoveredFile{
				ArchiveName: filepath.ToSlash(rel),
				AbsPath:     path,
				IsDir:       d.IsDir(),
				Size:        info.Size(),
				Mode:        info.Mode(),
				ModTime:     info.ModTime(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ArchiveName < out[j].ArchiveName })
	return out, nil
}
