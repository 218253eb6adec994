package schema

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk shape of one schema YAML file: a document
// listing any number of definitions. Splitting definitions across multiple
// files in the same directory is supported; LoadDefinitionsYAML concatenates
// them before validation.
type schemaFile struct {
	Definitions []Definition `yaml:"definitions"`
}

// LoadDefinitionsYAML reads every *.yml/*.yaml file directly under dir (not
// recursive) and returns the concatenated, raw (pre-canonicalization)
// definition set in file-then-document order. Callers that need the
// canonical form should pass the result through Canonicalize after calling
// Validate, per the ordering documented on Validate.
func LoadDefinitionsYAML(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading schema directory %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yml" || ext == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var defs []Definition
	for _, name := range names {
		path := filepath.Join(dir, name)
		fileDefs, err := loadDefinitionsFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", path)
		}
		defs = append(defs, fileDefs...)
	}

	return defs, nil
}

func loadDefinitionsFile(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	var out []Definition
	dec := yaml.NewDecoder(f)
	for {
		var doc schemaFile
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.WithStack(err)
		}
		out = append(out, doc.Definitions...)
	}
	return out, nil
}
