package semantics

import "fmt"

// Default label ids emitted by the simulator's scene customisation step.
const (
	DefaultGroundLabel = 2
	DefaultWoodLabel   = 3
	DefaultLeafLabel   = 4
)

// Output values of semantic_seg when labels are collapsed to two classes.
const (
	SegGround     float32 = 1
	SegVegetation float32 = 2
)

// NoTree is the treeID written for points that belong to no vegetation
// instance.
const NoTree float32 = -1

// LabelSet is a small ordered set of class ids.
type LabelSet []int

// Contains reports whether class is a member of the set.
func (s LabelSet) Contains(class int) bool {
	for _, c := range s {
		if c == class {
			return true
		}
	}
	return false
}

// Policy controls which classes count as vegetation and how class ids are
// rewritten on output. It is a plain value; callers pass it explicitly.
type Policy struct {
	Ground int
	Wood   int
	Leaf   int

	// LeafWood keeps leaf and wood as separate classes in the output and
	// treats both as vegetation. When false only wood is vegetation and
	// labels collapse to ground/vegetation.
	LeafWood bool
}

// DefaultPolicy returns the ground=2, wood=3, leaf=4 policy with leaf/wood
// collapsed.
func DefaultPolicy() Policy {
	return Policy{Ground: DefaultGroundLabel, Wood: DefaultWoodLabel, Leaf: DefaultLeafLabel}
}

// VegetationSet returns {Wood}, or {Wood, Leaf} when LeafWood is set.
func (p Policy) VegetationSet() LabelSet {
	if p.LeafWood {
		return LabelSet{p.Wood, p.Leaf}
	}
	return LabelSet{p.Wood}
}

// IsGround reports whether class is the ground label.
func (p Policy) IsGround(class int) bool { return class == p.Ground }

// IsVegetation reports whether class is in the vegetation set.
func (p Policy) IsVegetation(class int) bool {
	return class == p.Wood || (p.LeafWood && class == p.Leaf)
}

// Annotate derives the semantic_seg and treeID output fields for one point.
func (p Policy) Annotate(class int, instance int64) (seg, treeID float32) {
	if p.LeafWood {
		seg = float32(class)
		treeID = NoTree
		if p.IsVegetation(class) {
			treeID = float32(instance)
		}
		return seg, treeID
	}

	seg = SegVegetation
	if class == p.Ground {
		seg = SegGround
	}
	treeID = NoTree
	if class == p.Wood {
		treeID = float32(instance)
	}
	return seg, treeID
}

// Validate rejects policies whose ground label collides with a vegetation
// label, which would make a point both ground and vegetation.
func (p Policy) Validate() error {
	if p.Ground == p.Wood {
		return fmt.Errorf("ground label %d must differ from wood label", p.Ground)
	}
	if p.LeafWood && p.Ground == p.Leaf {
		return fmt.Errorf("ground label %d must differ from leaf label", p.Ground)
	}
	return nil
}

func (p Policy) String() string {
	return fmt.Sprintf("ground=%d wood=%d leaf=%d leafwood=%t", p.Ground, p.Wood, p.Leaf, p.LeafWood)
}
