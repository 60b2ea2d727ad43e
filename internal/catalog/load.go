package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadError reports a failure while loading model definitions.
type LoadError struct {
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// entityDecl mirrors the CUE shape of one entity definition.
type entityDecl struct {
	Fields    map[string]string       `json:"fields"`
	Relations map[string]relationDecl `json:"relations"`
}

type relationDecl struct {
	Kind          string   `json:"kind"`
	Target        string   `json:"target"`
	ReverseField  string   `json:"reverseField"`
	Through       string   `json:"through"`
	ThroughFields []string `json:"throughFields"`
}

var relationKinds = map[string]Kind{
	"forward":    KindForward,
	"reverse":    KindReverse,
	"manyToMany": KindManyToMany,
}

// Load reads every .cue file under dir and builds the catalog from the
// `entities` struct they unify to. A definition looks like:
//
//	entities: "shop.Category": {
//		fields: {name: "string", slug: "string"}
//		relations: {
//			parent:   {kind: "forward", target: "shop.Category"}
//			products: {kind: "reverse", target: "shop.Product", reverseField: "category"}
//		}
//	}
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Path: dir, Message: "models directory not found"}
	}
	if err != nil {
		return nil, &LoadError{Path: dir, Message: fmt.Sprintf("accessing models directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Path: dir, Message: "not a directory"}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Message: fmt.Sprintf("scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Path: dir, Message: "no .cue model files found"}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Path: dir, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Path: dir, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Path: dir, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	return FromValue(value)
}

// FromValue builds a catalog from an already-built CUE value holding an
// `entities` struct. Split from Load so tests can compile definitions from
// strings.
func FromValue(value cue.Value) (*Catalog, error) {
	entitiesVal := value.LookupPath(cue.ParsePath("entities"))
	if !entitiesVal.Exists() {
		return nil, &LoadError{Message: "no `entities` struct found in model files"}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("iterating entities: %v", err)}
	}

	var entities []*Entity
	for iter.Next() {
		name := iter.Selector().Unquoted()
		var decl entityDecl
		if err := iter.Value().Decode(&decl); err != nil {
			return nil, &LoadError{Message: fmt.Sprintf("entity %q: %v", name, err)}
		}
		entity, err := declToEntity(name, decl)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if len(entities) == 0 {
		return nil, &LoadError{Message: "`entities` struct declares no entity types"}
	}

	cat, err := New(entities...)
	if err != nil {
		return nil, &LoadError{Message: err.Error()}
	}
	return cat, nil
}

func declToEntity(name string, decl entityDecl) (*Entity, error) {
	entity := &Entity{
		Name:      name,
		Fields:    decl.Fields,
		Relations: make(map[string]Relation, len(decl.Relations)),
	}
	if entity.Fields == nil {
		entity.Fields = map[string]string{}
	}
	for relName, rel := range decl.Relations {
		kind, ok := relationKinds[rel.Kind]
		if !ok {
			return nil, &LoadError{Message: fmt.Sprintf(
				"entity %q relation %q: unknown kind %q (want forward, reverse or manyToMany)",
				name, relName, rel.Kind)}
		}
		if rel.Target == "" {
			return nil, &LoadError{Message: fmt.Sprintf("entity %q relation %q: target is required", name, relName)}
		}
		entity.Relations[relName] = Relation{
			Name:          relName,
			Kind:          kind,
			Target:        rel.Target,
			ReverseField:  rel.ReverseField,
			Through:       rel.Through,
			ThroughFields: rel.ThroughFields,
		}
	}
	return entity, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
