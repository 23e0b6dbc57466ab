// Package facade implements the object façade (C8): it serializes typed
// records to and from the wire codec, resolves them through the type
// registry, and exposes the finder operations (find_objects, find_subjects,
// find_associations, find_resources_ext) the rest of the system calls
// instead of talking to internal/datastore directly.
package facade

import (
	"context"

	"github.com/docxology/pyonstore/internal/codec"
	"github.com/docxology/pyonstore/internal/datastore"
	"github.com/docxology/pyonstore/internal/registry"
)

// Store is the object façade over a single datastore.Store.
type Store struct {
	ds    *datastore.Store
	views *datastore.ViewPlanner
	codec *codec.Codec
	reg   *registry.Registry
}

// New returns a Store serializing records through codec/reg and persisting
// through ds.
func New(ds *datastore.Store, codec *codec.Codec, reg *registry.Registry) *Store {
	return &Store{ds: ds, views: datastore.NewViewPlanner(ds), codec: codec, reg: reg}
}

// Create serializes rec to a document and persists it, returning the
// assigned id and revision.
func (s *Store) Create(ctx context.Context, rec registry.Record) (id, rev string, err error) {
	doc, err := s.toDocument(rec)
	if err != nil {
		return "", "", err
	}
	return s.ds.Create(ctx, doc)
}

// Update serializes rec (which must carry "_id"/"_rev") and writes it,
// subject to the revision check.
func (s *Store) Update(ctx context.Context, rec registry.Record) (id, rev string, err error) {
	doc, err := s.toDocument(rec)
	if err != nil {
		return "", "", err
	}
	return s.ds.Update(ctx, doc)
}

// Read fetches id and reconstructs it as a typed record through the
// registry.
func (s *Store) Read(ctx context.Context, id string) (registry.Record, error) {
	doc, err := s.ds.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.fromDocument(doc)
}

// Delete removes id, subject to the revision check when rev is non-empty.
func (s *Store) Delete(ctx context.Context, id, rev string) error {
	return s.ds.Delete(ctx, id, rev)
}

func (s *Store) toDocument(rec registry.Record) (datastore.Document, error) {
	m, err := s.codec.EncodeRecord(rec)
	if err != nil {
		return nil, err
	}
	return datastore.Document(m), nil
}

func (s *Store) fromDocument(doc datastore.Document) (registry.Record, error) {
	wire, err := s.codec.Encode(map[string]any(doc))
	if err != nil {
		return nil, err
	}
	v, err := s.codec.Decode(wire)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(registry.Record)
	if !ok {
		return nil, &datastore.Error{Kind: datastore.KindBadRequest, Message: "document has no type_ field"}
	}
	return rec, nil
}
