package registry

import "fmt"

// Entry pairs a repository with the registry key of its organ.
type Entry struct {
	OrganKey string
	Repo     *Repo
}

// All returns every repository in registry order.
func (r *Registry) All() []Entry {
	if r == nil {
		return nil
	}
	var out []Entry
	for i := range r.Organs {
		o := &r.Organs[i]
		for j := range o.Repositories {
			out = append(out, Entry{OrganKey: o.Key, Repo: &o.Repositories[j]})
		}
	}
	return out
}

// FindRepo looks a repository up by name. A qualified "org/name" must match both parts.
func (r *Registry) FindRepo(name string) (Entry, error) {
	id := ParseRepoID(name)
	for _, e := range r.All() {
		if e.Repo.Name != id.Name {
			continue
		}
		if id.Qualified() && e.Repo.Org != id.Org {
			continue
		}
		return e, nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrRepoNotFound, name)
}

type Filter struct {
	Organ           string
	Status          string
	Tier            string
	PublicOnly      bool
	PromotionStatus string
}

func (f Filter) match(e Entry) bool {
	if f.Organ != "" && e.OrganKey != f.Organ {
		return false
	}
	if f.Status != "" && e.Repo.ImplementationStatus != f.Status {
		return false
	}
	if f.Tier != "" && e.Repo.Tier != f.Tier {
		return false
	}
	if f.PublicOnly && (e.Repo.Public == nil || !*e.Repo.Public) {
		return false
	}
	if f.PromotionStatus != "" && e.Repo.PromotionStatus != f.PromotionStatus {
		return false
	}
	return true
}

func (r *Registry) List(f Filter) []Entry {
	var out []Entry
	for _, e := range r.All() {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}
