package era5

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/units"
)

// LoadMultiDir loads the same set of files for several labels, typically one
// directory per model run. Every "{}" in pathMask is replaced by the label
// and the result is expanded as a glob pattern. Cubes with the same name are
// stacked along a new leading coordinate called labelName ("run" when empty),
// whose points are the indices of the labels the cube was found under.
func LoadMultiDir(pathMask string, labels []string, labelName string) (cube.List, error) {
	if labelName == "" {
		labelName = "run"
	}
	var order []string
	groups := make(map[string]cube.List)
	index := make(map[string][]float64)
	for i, label := range labels {
		pattern := strings.ReplaceAll(pathMask, "{}", label)
		paths, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad path mask %q: %w", pattern, err)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, path := range paths {
			cubes, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("cannot load %q: %w", path, err)
			}
			for _, c := range cubes {
				name := c.Name()
				if _, ok := groups[name]; !ok {
					order = append(order, name)
				}
				if idx := index[name]; len(idx) > 0 && idx[len(idx)-1] == float64(i) {
					return nil, fmt.Errorf("more than one cube named %q under label %q", name, label)
				}
				groups[name] = append(groups[name], c)
				index[name] = append(index[name], float64(i))
			}
		}
	}

	out := make(cube.List, 0, len(order))
	for _, name := range order {
		co := cube.NewCoord(labelName, units.Dimensionless, index[name])
		c, err := cube.Stack(groups[name], co)
		if err != nil {
			return nil, fmt.Errorf("cannot merge cube %q: %w", name, err)
		}
		out = append(out, c)
	}
	return out, nil
}
