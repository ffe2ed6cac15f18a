package desired

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/iamsync/internal/identity"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("desired-state document failed validation")

// Issue is a single schema violation at a document path such as
// "Users[2].Tags.team".
type Issue struct {
	Path    string
	Line    int
	Message string
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", i.Path, i.Line, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return "invalid document: " + strings.Join(parts, "; ")
}

// Is reports ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

const (
	keyUsers  = "Users"
	keyName   = "Name"
	keyTags   = "Tags"
	keyGroups = "Groups"

	tagStr  = "!!str"
	tagNull = "!!null"
)

type validator struct {
	issues []Issue
}

func (v *validator) add(n *yaml.Node, path, format string, args ...any) {
	line := 0
	if n != nil {
		line = n.Line
	}
	v.issues = append(v.issues, Issue{Path: path, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a parsed document tree against the desired-state schema.
// It returns a *ValidationError listing every violation, or nil.
func Validate(root *yaml.Node) error {
	v := &validator{}
	v.document(root)
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: v.issues}
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == tagNull
}

func isString(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == tagStr
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		return strings.TrimPrefix(n.ShortTag(), "!!")
	default:
		return "unknown"
	}
}

// fields walks a mapping node, reporting non-string and repeated keys. It
// returns the keys in document order and the values by key.
func (v *validator) fields(n *yaml.Node, path string) ([]string, map[string]*yaml.Node) {
	var keys []string
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, val := resolve(n.Content[i]), resolve(n.Content[i+1])
		if !isString(k) {
			v.add(k, path, "key must be a string, got %s", kindName(k))
			continue
		}
		if _, dup := out[k.Value]; dup {
			v.add(k, join(path, k.Value), "key repeated")
			continue
		}
		keys = append(keys, k.Value)
		out[k.Value] = val
	}
	return keys, out
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func (v *validator) document(root *yaml.Node) {
	n := root
	if n != nil && n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			n = nil
		} else {
			n = n.Content[0]
		}
	}
	n = resolve(n)
	if n == nil || n.Kind == 0 || isNull(n) {
		v.add(nil, keyUsers, "required")
		return
	}
	if n.Kind != yaml.MappingNode {
		v.add(n, "(document)", "must be a mapping, got %s", kindName(n))
		return
	}

	keys, fields := v.fields(n, "")
	for _, key := range keys {
		if key != keyUsers {
			v.add(fields[key], key, "unknown key")
		}
	}

	users, ok := fields[keyUsers]
	if !ok {
		v.add(n, keyUsers, "required")
		return
	}
	if users.Kind != yaml.SequenceNode {
		v.add(users, keyUsers, "must be a list, got %s", kindName(users))
		return
	}

	seen := make(map[string]int)
	for i, item := range users.Content {
		path := fmt.Sprintf("%s[%d]", keyUsers, i)
		name := v.user(resolve(item), path)
		if name == "" {
			continue
		}
		key := identity.Fold(name)
		if first, dup := seen[key]; dup {
			v.add(item, path+"."+keyName, "duplicate of %s[%d]", keyUsers, first)
			continue
		}
		seen[key] = i
	}
}

// user validates one Users entry and returns its name when valid.
func (v *validator) user(n *yaml.Node, path string) string {
	if n.Kind != yaml.MappingNode {
		v.add(n, path, "must be a mapping, got %s", kindName(n))
		return ""
	}

	keys, fields := v.fields(n, path)
	for _, key := range keys {
		switch key {
		case keyName, keyTags, keyGroups:
		default:
			v.add(fields[key], join(path, key), "unknown key")
		}
	}

	var name string
	namePath := join(path, keyName)
	if nameNode, ok := fields[keyName]; !ok {
		v.add(n, namePath, "required")
	} else if !isString(nameNode) {
		v.add(nameNode, namePath, "must be a string, got %s", kindName(nameNode))
	} else if strings.TrimSpace(nameNode.Value) == "" {
		v.add(nameNode, namePath, "must not be empty")
	} else {
		name = nameNode.Value
	}

	if tags, ok := fields[keyTags]; ok && !isNull(tags) {
		v.tags(tags, join(path, keyTags))
	}
	if groups, ok := fields[keyGroups]; ok && !isNull(groups) {
		v.groups(groups, join(path, keyGroups))
	}
	return name
}

func (v *validator) tags(n *yaml.Node, path string) {
	if n.Kind != yaml.MappingNode {
		v.add(n, path, "must be a mapping of string to string, got %s", kindName(n))
		return
	}
	keys, fields := v.fields(n, path)
	seen := make(map[string]string, len(keys))
	for _, key := range keys {
		if val := fields[key]; !isString(val) {
			v.add(val, join(path, key), "must be a string, got %s", kindName(val))
		}
		folded := identity.Fold(key)
		if first, dup := seen[folded]; dup {
			v.add(fields[key], join(path, key), "same key as %s", first)
			continue
		}
		seen[folded] = key
	}
}

func (v *validator) groups(n *yaml.Node, path string) {
	if n.Kind != yaml.SequenceNode {
		v.add(n, path, "must be a list of strings, got %s", kindName(n))
		return
	}
	for i, item := range n.Content {
		item = resolve(item)
		if !isString(item) {
			v.add(item, fmt.Sprintf("%s[%d]", path, i), "must be a string, got %s", kindName(item))
		}
	}
}
