package datastore

import "github.com/docxology/pyonstore/pkg/config"

// Profile re-exports config.Profile for package-local use.
type Profile = config.Profile

const (
	ProfileBasic     = config.ProfileBasic
	ProfileResources = config.ProfileResources
	ProfileDirectory = config.ProfileDirectory
	ProfileEvents    = config.ProfileEvents
)

// ddlScriptProfile resolves the legacy DIRECTORY→RESOURCES DDL aliasing rule: a
// DIRECTORY-profile datastore that has no profile_directory.sql script of
// its own falls back to profile_resources.sql, since historically
// DIRECTORY shared the RESOURCES schema. DIRECTORY stays first-class for
// every other purpose (sidecar table selection in extraColumns stays
// "_dir", never "_assoc"/"_resource").
func ddlScriptProfile(p Profile, hasDirectoryScript bool) Profile {
	if p == ProfileDirectory && !hasDirectoryScript {
		return ProfileResources
	}
	return p
}

// extraColumns mirrors the original implementation's _get_extra_cols: given
// a decoded document body and the datastore's profile, it returns the
// sidecar columns to populate and the table the row belongs in.
//
// table is the base datastore table name; it is suffixed "_assoc" or
// "_dir" when the document routes to a sidecar table instead of the
// primary one.
func extraColumns(doc map[string]any, table string, profile Profile) (cols []string, destTable string) {
	destTable = table
	switch profile {
	case ProfileResources:
		if doc["type_"] == "Association" {
			return []string{"s", "st", "p", "o", "ot", "retired"}, table + "_assoc"
		}
		if _, ok := doc["type_"]; ok {
			return []string{"type_", "lcstate", "availability", "name", "ts_created"}, table
		}
	case ProfileDirectory:
		if doc["type_"] == "DirEntry" {
			return []string{"org", "parent", "key"}, table + "_dir"
		}
	case ProfileEvents:
		if _, ok := doc["origin"]; ok {
			return []string{"origin", "origin_type", "sub_type", "ts_created", "type_"}, table
		}
	}
	return nil, table
}
