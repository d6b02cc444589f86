package job

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bimmerbailey/logsheet/internal/config"
)

// WorkbookExt is appended to derived output names.
const WorkbookExt = ".xlsx"

// ParamError reports invalid job parameters.
type ParamError struct {
	Msg string
}

func (e *ParamError) Error() string { return e.Msg }

// Resolve maps directory addressing to input files and an output name.
// With a name, the single file dir/name is read and the output is
// name.xlsx. Without one, every regular file in dir is read in name order
// and the output is named after the last element of dir.
func Resolve(dir, name string) ([]string, string, error) {
	if dir == "" {
		return nil, "", &ParamError{Msg: "source path is required"}
	}

	if name != "" {
		return []string{filepath.Join(dir, name)}, name + WorkbookExt, nil
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, "", &ParamError{Msg: "source directory is not present"}
	}
	files, err := config.ListDir(dir)
	if err != nil {
		return nil, "", &ParamError{Msg: "source directory is not readable"}
	}
	if len(files) == 0 {
		return nil, "", &ParamError{Msg: "source directory is empty"}
	}

	return files, OutputName(dir), nil
}

// OutputName derives a workbook name from the last element of path.
func OutputName(path string) string {
	base := filepath.Base(strings.TrimRight(path, "/"))
	if base == "." || base == "/" || base == "" {
		base = "logsheet"
	}
	for _, ext := range []string{".gz", ".zst"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base + WorkbookExt
}
