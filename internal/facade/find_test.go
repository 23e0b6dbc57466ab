package facade

import (
	"testing"

	"github.com/docxology/pyonstore/internal/datastore"
)

func TestFilterAssocByPredicate(t *testing.T) {
	assocs := []datastore.Document{
		{"p": "hasChild", "o": "B", "ot": "R"},
		{"p": "hasParent", "o": "C", "ot": "R"},
	}
	got := filterAssoc(assocs, "hasChild", "", true)
	if len(got) != 1 || got[0]["o"] != "B" {
		t.Fatalf("got %v", got)
	}
}

func TestFilterAssocByFarType(t *testing.T) {
	assocs := []datastore.Document{
		{"p": "hasChild", "o": "B", "ot": "Device"},
		{"p": "hasChild", "o": "C", "ot": "Sensor"},
	}
	got := filterAssoc(assocs, "hasChild", "Sensor", true)
	if len(got) != 1 || got[0]["o"] != "C" {
		t.Fatalf("got %v", got)
	}
}

func TestFilterAssocRetiredExcludedUpstream(t *testing.T) {
	// filterAssoc itself does not know about retired; the view layer
	// excludes retired rows before this filter runs (see
	// ViewPlanner.BySubject's "AND retired=false").
	assocs := []datastore.Document{{"p": "hasChild", "o": "B"}}
	got := filterAssoc(assocs, "", "", true)
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestFindResourcesExtRejectsMultipleFilters(t *testing.T) {
	s := &Store{}
	_, err := s.FindResourcesExt(nil, ResourceFilter{Keyword: "k", NestedType: "n"}, datastore.FilterOpts{})
	if !datastore.IsKind(err, datastore.KindBadRequest) {
		t.Fatalf("got %v, want BadRequest", err)
	}
}

func TestFindResourcesExtRejectsAttrNameWithoutRestype(t *testing.T) {
	s := &Store{}
	_, err := s.FindResourcesExt(nil, ResourceFilter{AttrName: "color", AttrValue: "red"}, datastore.FilterOpts{})
	if !datastore.IsKind(err, datastore.KindBadRequest) {
		t.Fatalf("got %v, want BadRequest", err)
	}
}

func TestFindResourcesExtRejectsNoFilter(t *testing.T) {
	s := &Store{}
	_, err := s.FindResourcesExt(nil, ResourceFilter{}, datastore.FilterOpts{})
	if !datastore.IsKind(err, datastore.KindBadRequest) {
		t.Fatalf("got %v, want BadRequest", err)
	}
}
