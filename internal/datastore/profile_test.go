package datastore

import "testing"

func TestExtraColumnsResourcesAssociation(t *testing.T) {
	doc := map[string]any{"type_": "Association"}
	cols, table := extraColumns(doc, "res", ProfileResources)
	if table != "res_assoc" {
		t.Fatalf("table = %q, want res_assoc", table)
	}
	want := []string{"s", "st", "p", "o", "ot", "retired"}
	if len(cols) != len(want) {
		t.Fatalf("cols = %v, want %v", cols, want)
	}
}

func TestExtraColumnsResourcesTyped(t *testing.T) {
	doc := map[string]any{"type_": "Widget"}
	cols, table := extraColumns(doc, "res", ProfileResources)
	if table != "res" {
		t.Fatalf("table = %q, want res", table)
	}
	if len(cols) != 5 {
		t.Fatalf("cols = %v, want 5 entries", cols)
	}
}

func TestExtraColumnsDirectory(t *testing.T) {
	doc := map[string]any{"type_": "DirEntry"}
	cols, table := extraColumns(doc, "dir", ProfileDirectory)
	if table != "dir_dir" {
		t.Fatalf("table = %q, want dir_dir", table)
	}
	want := []string{"org", "parent", "key"}
	if len(cols) != len(want) {
		t.Fatalf("cols = %v, want %v", cols, want)
	}
}

func TestExtraColumnsEvents(t *testing.T) {
	doc := map[string]any{"origin": "svc-a"}
	cols, table := extraColumns(doc, "ev", ProfileEvents)
	if table != "ev" {
		t.Fatalf("table = %q, want ev", table)
	}
	if len(cols) != 5 {
		t.Fatalf("cols = %v, want 5 entries", cols)
	}
}

func TestExtraColumnsBasicHasNone(t *testing.T) {
	doc := map[string]any{"type_": "Anything"}
	cols, table := extraColumns(doc, "b", ProfileBasic)
	if cols != nil {
		t.Fatalf("cols = %v, want nil", cols)
	}
	if table != "b" {
		t.Fatalf("table = %q, want b", table)
	}
}

func TestDDLScriptProfileDirectoryFallback(t *testing.T) {
	if got := ddlScriptProfile(ProfileDirectory, false); got != ProfileResources {
		t.Fatalf("got %v, want ProfileResources", got)
	}
	if got := ddlScriptProfile(ProfileDirectory, true); got != ProfileDirectory {
		t.Fatalf("got %v, want ProfileDirectory", got)
	}
	if got := ddlScriptProfile(ProfileEvents, false); got != ProfileEvents {
		t.Fatalf("got %v, want ProfileEvents unchanged", got)
	}
}

func TestValidIdentifier(t *testing.T) {
	cases := map[string]bool{
		"resource":      true,
		"acme_resource": true,
		"_private":      true,
		"Resource":      false,
		"res-ource":     false,
		"1resource":     false,
		"":              false,
	}
	for name, want := range cases {
		if got := validIdentifier(name); got != want {
			t.Fatalf("validIdentifier(%q) = %v, want %v", name, got, want)
		}
	}
}
