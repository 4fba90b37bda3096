package registry

// Unit is a read-only view of one repository entry, with identities parsed once.
type Unit struct {
	OrganKey             string
	ID                   RepoID
	PromotionStatus      string
	Dependencies         []RepoID
	Tier                 string
	ImplementationStatus string
}

// Snapshot is the ordered set of units of a registry. Order follows the organs
// object and then each organ's repositories list.
type Snapshot []Unit

// Snapshot builds a fresh snapshot. The result shares no memory with r.
func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return nil
	}
	var out Snapshot
	for _, o := range r.Organs {
		for _, repo := range o.Repositories {
			deps := make([]RepoID, 0, len(repo.Dependencies))
			for _, d := range repo.Dependencies {
				deps = append(deps, ParseRepoID(d))
			}
			out = append(out, Unit{
				OrganKey:             o.Key,
				ID:                   repo.ID(),
				PromotionStatus:      repo.PromotionStatus,
				Dependencies:         deps,
				Tier:                 repo.Tier,
				ImplementationStatus: repo.ImplementationStatus,
			})
		}
	}
	return out
}

// Index returns units keyed by identity. The first occurrence of an identity wins.
func (s Snapshot) Index() map[RepoID]Unit {
	idx := make(map[RepoID]Unit, len(s))
	for _, u := range s {
		if _, ok := idx[u.ID]; ok {
			continue
		}
		idx[u.ID] = u
	}
	return idx
}
