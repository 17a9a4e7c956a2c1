package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/modelforge/paramd/internal/model"
)

// maxLoadConcurrency limits parallel file reads in LoadTemplatesFromDir.
const maxLoadConcurrency = 8

// templateFile is the on-disk shape of a template document.
type templateFile struct {
	Templates []model.Template `yaml:"templates"`
}

// LoadTemplatesFromFile reads a YAML document holding one or more
// templates from the given path.
func LoadTemplatesFromFile(path string) ([]model.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read template file")
	}

	var doc templateFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "registry: unmarshal %s", path)
	}

	for _, tpl := range doc.Templates {
		if err := tpl.Check(); err != nil {
			return nil, eris.Wrapf(err, "registry: %s", path)
		}
	}
	return doc.Templates, nil
}

// LoadTemplatesFromDir loads every .yaml/.yml file in dir, fanning the
// reads out across goroutines. Templates come back grouped by file in
// lexical filename order.
func LoadTemplatesFromDir(ctx context.Context, dir string) ([]model.Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read template dir")
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	perFile := make([][]model.Template, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxLoadConcurrency)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			tpls, err := LoadTemplatesFromFile(path)
			if err != nil {
				return err
			}
			perFile[i] = tpls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.Template
	for _, tpls := range perFile {
		all = append(all, tpls...)
	}
	return all, nil
}
