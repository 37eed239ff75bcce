package backend

import (
	"fmt"
	"strings"
)

// SplitPath splits a path into its components.
// Leading and trailing slashes are handled, empty components are removed.
//
// Examples:
//   - "/" -> []string{}
//   - "/foo" -> []string{"foo"}
//   - "foo//bar/" -> []string{"foo", "bar"}
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanPath normalizes a path, ensuring it starts with "/" and has no
// trailing or repeated slashes.
func CleanPath(path string) string {
	return "/" + strings.Join(SplitPath(path), "/")
}

// JoinPath joins a group path and a child name.
func JoinPath(parent, name string) string {
	if parent == "/" || parent == "" {
		return "/" + name
	}
	return parent + "/" + name
}

// CheckName validates a single path component.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, ".z") {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

// Resolve walks from g along path and returns the node found.
func Resolve(g Group, path string) (Node, error) {
	var node Node = g
	for _, part := range SplitPath(path) {
		grp, ok := node.(Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a group", ErrNotFound, node.Path())
		}
		child, err := grp.Child(part)
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// RequireGroup walks from g along path, creating missing groups.
func RequireGroup(g Group, path string) (Group, error) {
	cur := g
	for _, part := range SplitPath(path) {
		child, err := cur.Child(part)
		switch {
		case err == nil:
			grp, ok := child.(Group)
			if !ok {
				return nil, fmt.Errorf("%w: %s is an array", ErrExists, child.Path())
			}
			cur = grp
		case isNotFound(err):
			grp, err := cur.CreateGroup(part)
			if err != nil {
				return nil, err
			}
			cur = grp
		default:
			return nil, err
		}
	}
	return cur, nil
}
