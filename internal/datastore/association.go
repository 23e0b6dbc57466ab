package datastore

// Association is a typed (subject, predicate, object) edge, stored in a
// RESOURCES-profile datastore's "_assoc" sidecar (§3).
type Association struct {
	ID      string
	Rev     string
	Subject string
	SubType string
	Pred    string
	Object  string
	ObjType string
	Retired bool
}

// DirEntry is a directory entry, stored in a DIRECTORY-profile datastore's
// "_dir" sidecar (§3).
type DirEntry struct {
	ID     string
	Rev    string
	Org    string
	Parent string
	Key    string
}
