// Package desired loads and validates the desired-state document that declares
// IAM users, their tags and their groups.
//
// The document format is:
//
//	Users:
//	  - Name: alice            # required, unique
//	    Tags: {team: core}     # optional mapping of string to string
//	    Groups: [admins]       # optional list of strings
//
// Tags are accepted only as a mapping. Unknown keys are rejected.
package desired

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound indicates the document could not be read.
	ErrNotFound = errors.New("desired-state document not readable")

	// ErrParse indicates the document is not well-formed YAML.
	ErrParse = errors.New("desired-state document malformed")
)

// User is one declared identity. Tags and Groups are never nil after loading.
type User struct {
	Name   string            `yaml:"Name"`
	Tags   map[string]string `yaml:"Tags,omitempty"`
	Groups []string          `yaml:"Groups,omitempty"`
}

// Document is the top-level shape of the desired-state file.
type Document struct {
	Users []User `yaml:"Users"`
}

// Load reads, validates and decodes the document at path.
func Load(path string) ([]User, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}
	users, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return users, nil
}

// Parse validates and decodes a document held in memory.
func Parse(data []byte) ([]User, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	if err := Validate(&root); err != nil {
		return nil, err
	}

	var doc Document
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	users := make([]User, 0, len(doc.Users))
	for _, u := range doc.Users {
		users = append(users, normalize(u))
	}
	return users, nil
}

// normalize applies the empty defaults for absent Tags and Groups.
func normalize(u User) User {
	if u.Tags == nil {
		u.Tags = map[string]string{}
	}
	if u.Groups == nil {
		u.Groups = []string{}
	}
	return u
}

// Marshal renders users back into document form. Empty Tags and Groups are
// omitted.
func Marshal(users []User) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Users: users}); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return buf.Bytes(), nil
}
