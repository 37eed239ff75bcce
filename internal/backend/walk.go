package backend

import (
	"errors"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WalkFunc is called for each node during traversal.
// Return nil to continue walking, SkipGroup to skip a group's children,
// or any other error to stop.
type WalkFunc func(node Node, depth int) error

// SkipGroup skips the children of the group just visited.
var SkipGroup = errors.New("skip this group")

// Walk traverses g and everything below it, parents before children,
// children in sorted order.
//
// Example:
//
//	backend.Walk(root, func(n backend.Node, depth int) error {
//	    switch o := n.(type) {
//	    case backend.Group:
//	        fmt.Println("Group:", o.Path())
//	    case backend.Array:
//	        fmt.Println("Array:", o.Path(), "len:", o.Len())
//	    }
//	    return nil
//	})
func Walk(g Group, fn WalkFunc) error {
	err := walkGroup(g, 0, fn)
	if err == SkipGroup {
		return nil
	}
	return err
}

func walkGroup(g Group, depth int, fn WalkFunc) error {
	if err := fn(g, depth); err != nil {
		return err
	}

	members, err := g.Members()
	if err != nil {
		return err
	}

	for _, name := range members {
		child, err := g.Child(name)
		if err != nil {
			return err
		}
		if grp, ok := child.(Group); ok {
			if err := walkGroup(grp, depth+1, fn); err != nil && err != SkipGroup {
				return err
			}
			continue
		}
		if err := fn(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
