package facade

import (
	"context"

	"github.com/docxology/pyonstore/internal/datastore"
)

// FindResult pairs an association with the resource document on its far
// side, or just the far-side id when idOnly is set (Associations is nil).
type FindResult struct {
	Objects      []datastore.Document
	ObjectIDs    []string
	Associations []datastore.Document
}

// FindObjects implements find_objects (§4.7): resources reachable from
// subjectID via predicate (optional), optionally restricted to
// objectType, joining <ds>_assoc with <ds> on o=id.
func (s *Store) FindObjects(ctx context.Context, subjectID, predicate, objectType string, idOnly bool, opts datastore.FilterOpts) (*FindResult, error) {
	if predicate == "" && objectType != "" {
		return nil, badRequest("object_type given without predicate")
	}
	assocs, err := s.views.BySubject(ctx, subjectID, opts)
	if err != nil {
		return nil, err
	}
	assocs = filterAssoc(assocs, predicate, objectType, true)
	return s.resolveFarSide(ctx, assocs, "o", idOnly)
}

// FindSubjects implements find_subjects (§4.7): the symmetric join on
// s=id, reachable from objectID via predicate.
func (s *Store) FindSubjects(ctx context.Context, objectID, predicate, subjectType string, idOnly bool, opts datastore.FilterOpts) (*FindResult, error) {
	if predicate == "" && subjectType != "" {
		return nil, badRequest("subject_type given without predicate")
	}
	assocs, err := s.views.ByObject(ctx, objectID, opts)
	if err != nil {
		return nil, err
	}
	assocs = filterAssoc(assocs, predicate, subjectType, false)
	return s.resolveFarSide(ctx, assocs, "s", idOnly)
}

// AnySide is one element of find_associations' anyside list: either a bare
// id, or an (id, predicate) pair.
type AnySide struct {
	ID        string
	Predicate string
}

// FindAssociations implements find_associations (§4.7): any subset of
// (subject, object, predicate), or an OR-combined anyside list instead of
// subject/object.
func (s *Store) FindAssociations(ctx context.Context, subject, object, predicate string, anyside []AnySide, opts datastore.FilterOpts) ([]datastore.Document, error) {
	if len(anyside) > 0 {
		if subject != "" || object != "" {
			return nil, badRequest("anyside combined with subject or object")
		}
		if predicate != "" {
			return nil, badRequest("anyside combined with predicate")
		}
		return s.findAssociationsAnyside(ctx, anyside, opts)
	}
	switch {
	case subject != "" && object == "":
		assocs, err := s.views.BySubject(ctx, subject, opts)
		if err != nil {
			return nil, err
		}
		return filterAssoc(assocs, predicate, "", true), nil
	case object != "" && subject == "":
		assocs, err := s.views.ByObject(ctx, object, opts)
		if err != nil {
			return nil, err
		}
		return filterAssoc(assocs, predicate, "", false), nil
	case subject != "" && object != "":
		assocs, err := s.views.BySubject(ctx, subject, opts)
		if err != nil {
			return nil, err
		}
		out := make([]datastore.Document, 0, len(assocs))
		for _, a := range assocs {
			if s2, _ := a["o"].(string); s2 == object {
				out = append(out, a)
			}
		}
		return filterAssoc(out, predicate, "", true), nil
	default:
		return nil, badRequest("find_associations requires subject, object, or anyside")
	}
}

func (s *Store) findAssociationsAnyside(ctx context.Context, anyside []AnySide, opts datastore.FilterOpts) ([]datastore.Document, error) {
	var out []datastore.Document
	for _, side := range anyside {
		bySubj, err := s.views.BySubject(ctx, side.ID, opts)
		if err != nil {
			return nil, err
		}
		byObj, err := s.views.ByObject(ctx, side.ID, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, filterAssoc(bySubj, side.Predicate, "", true)...)
		out = append(out, filterAssoc(byObj, side.Predicate, "", false)...)
	}
	return out, nil
}

func filterAssoc(assocs []datastore.Document, predicate, farType string, farIsObject bool) []datastore.Document {
	if predicate == "" && farType == "" {
		return assocs
	}
	out := make([]datastore.Document, 0, len(assocs))
	for _, a := range assocs {
		if predicate != "" {
			if p, _ := a["p"].(string); p != predicate {
				continue
			}
		}
		if farType != "" {
			col := "st"
			if farIsObject {
				col = "ot"
			}
			if t, _ := a[col].(string); t != farType {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func (s *Store) resolveFarSide(ctx context.Context, assocs []datastore.Document, col string, idOnly bool) (*FindResult, error) {
	ids := make([]string, 0, len(assocs))
	for _, a := range assocs {
		if id, _ := a[col].(string); id != "" {
			ids = append(ids, id)
		}
	}
	if idOnly {
		return &FindResult{ObjectIDs: ids, Associations: nil}, nil
	}
	docs, err := s.ds.ReadMulti(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &FindResult{Objects: docs, Associations: assocs}, nil
}

// ResourceFilter is the set of find_resources_ext inputs (§4.7); at most
// one of Keyword, NestedType, (AttrName,AttrValue), (AltID,AltIDNS) may be
// set, and it selects the view family. Restype narrows the keyword,
// nested-type and attribute views; the alt-id view ignores it. LCState and
// Name are used only when none of those exclusive filters is set, LCState
// taking precedence over Name; they are never rejected, but are ignored
// when an exclusive filter is set.
type ResourceFilter struct {
	Restype    string
	LCState    string
	Name       string
	Keyword    string
	NestedType string
	AttrName   string
	AttrValue  string
	AltID      string
	AltIDNS    string
}

// FindResourcesExt implements find_resources_ext (§4.7): dispatches to the
// view matching whichever mutually exclusive filter is set.
func (s *Store) FindResourcesExt(ctx context.Context, f ResourceFilter, opts datastore.FilterOpts) ([]datastore.Document, error) {
	set := 0
	for _, v := range []string{f.Keyword, f.NestedType, f.AttrName, f.AltID + f.AltIDNS} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return nil, badRequest("find_resources_ext: mutually exclusive filters combined")
	}

	switch {
	case f.Keyword != "":
		return s.views.ByKeyword(ctx, f.Keyword, f.Restype, opts)
	case f.NestedType != "":
		return s.views.ByNestedType(ctx, f.NestedType, f.Restype, opts)
	case f.AttrName != "":
		if f.Restype == "" {
			return nil, badRequest("find_resources_ext: attr_name requires restype")
		}
		return s.views.ByAttribute(ctx, f.Restype, f.AttrName, f.AttrValue, opts)
	case f.AltID != "" || f.AltIDNS != "":
		matches, err := s.views.ByAltID(ctx, f.AltID, f.AltIDNS, opts)
		if err != nil {
			return nil, err
		}
		out := make([]datastore.Document, len(matches))
		for i, m := range matches {
			out[i] = m.Doc
		}
		return out, nil
	case f.LCState != "":
		return s.views.ByLCState(ctx, f.LCState, f.Restype, opts)
	case f.Name != "":
		return s.views.ByName(ctx, f.Name, f.Restype, opts)
	case f.Restype != "":
		return s.views.ByType(ctx, f.Restype, opts)
	default:
		return nil, badRequest("find_resources_ext: no filter given")
	}
}

func badRequest(msg string) error {
	return &datastore.Error{Kind: datastore.KindBadRequest, Message: msg}
}
