package plugin

import (
	"errors"
	"slices"
	"testing"
)

func manifestsOf(specs map[string][2][]string) map[string]*Manifest {
	out := make(map[string]*Manifest)
	for name, deps := range specs {
		out[name] = &Manifest{Name: name, Version: "1.0.0", Main: DefaultMain, Depend: deps[0], SoftDepend: deps[1]}
	}
	return out
}

func TestLoadOrder(t *testing.T) {
	order, failed := loadOrder(manifestsOf(map[string][2][]string{
		"app":    {{"core", "db"}, nil},
		"core":   {nil, nil},
		"db":     {{"core"}, nil},
		"extras": {nil, {"app", "absent"}},
		"alone":  {nil, nil},
	}))
	if len(failed) != 0 {
		t.Fatalf("unexpected failures %v", failed)
	}
	// app's dependencies are pulled ahead of it.
	want := []string{"alone", "core", "db", "app", "extras"}
	if !slices.Equal(order, want) {
		t.Errorf("loadOrder() = %v, want %v", order, want)
	}
}

func TestLoadOrderFailures(t *testing.T) {
	order, failed := loadOrder(manifestsOf(map[string][2][]string{
		"a":       {{"b"}, nil},
		"b":       {{"a"}, nil},
		"needy":   {{"missing"}, nil},
		"chained": {{"needy"}, nil},
		"ok":      {nil, {"soft"}},
		"soft":    {nil, {"ok"}},
	}))

	if !errors.Is(failed["a"], ErrCyclicDependency) || !errors.Is(failed["b"], ErrCyclicDependency) {
		t.Errorf("expected cycle errors, got a=%v b=%v", failed["a"], failed["b"])
	}
	if !errors.Is(failed["needy"], ErrDependencyNotFound) {
		t.Errorf("needy error = %v", failed["needy"])
	}
	if !errors.Is(failed["chained"], ErrDependencyNotFound) {
		t.Errorf("chained error = %v", failed["chained"])
	}
	// A soft cycle is broken rather than failed.
	if !slices.Contains(order, "ok") || !slices.Contains(order, "soft") || len(order) != 2 {
		t.Errorf("loadOrder() = %v", order)
	}
}
