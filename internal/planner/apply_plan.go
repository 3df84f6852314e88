package planner

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/mix"
	"github.com/danieljhkim/gridmix/internal/rewrite"
)

// BuildDeployPlan generates a deterministic plan for every feeder × mix
// pair. Jobs are ordered by substation, feeder, then mix declaration order.
func BuildDeployPlan(feeders []Feeder, mixes []mix.Mix, outputDir string, fs fsops.FS, force bool) (*DeployPlan, error) {
	plan := NewDeployPlan(outputDir)
	checker := NewConflictChecker(fs, force)

	ordered := append([]Feeder(nil), feeders...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Substation != ordered[j].Substation {
			return ordered[i].Substation < ordered[j].Substation
		}
		return ordered[i].Name < ordered[j].Name
	})

	// Track which feeder claimed each instance name
	owners := make(map[string]string)

	for _, f := range ordered {
		for _, mx := range mixes {
			name := InstanceName(f.Substation, f.Circuit, mx.Name)
			if err := fs.ValidateIdentifier(name); err != nil {
				return nil, fmt.Errorf("invalid instance name %q: %w", name, err)
			}
			dir := filepath.Join(outputDir, name)

			if previous, exists := owners[name]; exists {
				plan.AddConflict(Conflict{
					Instance: name,
					Path:     dir,
					Reason:   fmt.Sprintf("Feeder %s/%s maps to the same circuit as %s", f.Substation, f.Name, previous),
					Existing: "planned",
				})
				continue
			}
			owners[name] = f.Substation + "/" + f.Name

			conflict, replace := checker.CheckInstance(name, dir)
			if conflict != nil {
				plan.AddConflict(*conflict)
				continue
			}

			plan.AddJob(Job{
				Feeder:   f,
				Mix:      mx,
				Instance: name,
				Dir:      dir,
				Replace:  replace,
			})
		}
	}

	return plan, nil
}

// MaterializePlan is the ordered operations that create one instance.
type MaterializePlan struct {
	Root       string
	Operations []Operation
}

// BuildMaterializePlan turns a rewritten instance into operations rooted at
// root. A replaced instance is removed first; generated files are written
// before curve copies, each group in path order.
func BuildMaterializePlan(root string, inst *rewrite.Instance, replace bool) (*MaterializePlan, error) {
	plan := &MaterializePlan{Root: root, Operations: []Operation{}}
	if replace {
		plan.Operations = append(plan.Operations, Operation{Type: OpRemove, DestPath: root})
	}

	for _, rel := range sortedKeys(inst.Files) {
		if err := fsops.ValidateRelPath(rel); err != nil {
			return nil, fmt.Errorf("refusing to write %q: %w", rel, err)
		}
		plan.Operations = append(plan.Operations, Operation{
			Type:     OpWrite,
			DestPath: filepath.Join(root, filepath.FromSlash(rel)),
			RelPath:  rel,
			Data:     inst.Files[rel],
		})
	}

	for _, rel := range sortedKeys(inst.Copies) {
		if err := fsops.ValidateRelPath(rel); err != nil {
			return nil, fmt.Errorf("refusing to copy to %q: %w", rel, err)
		}
		plan.Operations = append(plan.Operations, Operation{
			Type:       OpCopy,
			SourcePath: inst.Copies[rel],
			DestPath:   filepath.Join(root, filepath.FromSlash(rel)),
			RelPath:    rel,
		})
	}

	return plan, nil
}

// RelPaths returns the instance-relative paths the plan creates.
func (p *MaterializePlan) RelPaths() []string {
	var out []string
	for _, op := range p.Operations {
		if op.Type != OpRemove {
			out = append(out, op.RelPath)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
