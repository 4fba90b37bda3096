package governance

import (
	"reflect"
	"testing"

	"organvm/internal/registry"
)

func TestPlanCascade(t *testing.T) {
	snap := registry.Snapshot{
		unit("o/base"),
		unit("o/mid-1", "o/base"),
		unit("o/mid-2", "o/base"),
		unit("o/top", "o/mid-1", "o/mid-2"),
		unit("o/bare-user", "base"),
		unit("o/unrelated"),
	}
	got := PlanCascade(snap, registry.NewRepoID("o", "base"))
	want := []registry.RepoID{
		registry.NewRepoID("o", "mid-1"),
		registry.NewRepoID("o", "mid-2"),
		registry.NewRepoID("o", "top"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PlanCascade = %v, want %v", got, want)
	}
}

func TestPlanCascade_CycleTerminates(t *testing.T) {
	snap := registry.Snapshot{
		unit("o/a", "o/b"),
		unit("o/b", "o/a"),
	}
	got := PlanCascade(snap, registry.NewRepoID("o", "a"))
	if !reflect.DeepEqual(got, []registry.RepoID{registry.NewRepoID("o", "b")}) {
		t.Fatalf("PlanCascade = %v", got)
	}
}
