package registry

import (
	"fmt"
	"strings"
)

// RepoID identifies a repository as OWNER/NAME. Dependency declarations may use a
// bare NAME, in which case Org is empty.
type RepoID struct {
	Org  string
	Name string
}

// ParseRepoID parses "org/name" or a bare "name". Only the first '/' separates
// the owner from the name. Whitespace is kept, so " org/name" names a
// different repository than "org/name".
func ParseRepoID(raw string) RepoID {
	org, name, ok := strings.Cut(raw, "/")
	if !ok {
		return RepoID{Name: raw}
	}
	return RepoID{Org: org, Name: name}
}

func NewRepoID(org, name string) RepoID {
	return RepoID{Org: org, Name: name}
}

// Qualified reports whether the id carries an owning organization.
func (id RepoID) Qualified() bool {
	return id.Org != ""
}

func (id RepoID) IsZero() bool {
	return id.Org == "" && id.Name == ""
}

func (id RepoID) String() string {
	if id.Org == "" {
		return id.Name
	}
	return id.Org + "/" + id.Name
}

func (id RepoID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *RepoID) UnmarshalText(b []byte) error {
	if id == nil {
		return fmt.Errorf("repo id: nil receiver")
	}
	*id = ParseRepoID(string(b))
	return nil
}
