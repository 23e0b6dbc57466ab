// View query planner (C7): eleven named views compiled to SQL, exposed as a
// closed set of Go methods on ViewPlanner. A single string-keyed Query
// dispatch exists only for wire-level view requests (Design Note 4); callers
// inside this module, internal/facade included, use the typed methods.
package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ViewPlanner compiles and runs the named views against a single Store's
// table and its sidecars.
type ViewPlanner struct {
	store *Store
}

// NewViewPlanner returns a ViewPlanner over store.
func NewViewPlanner(store *Store) *ViewPlanner {
	return &ViewPlanner{store: store}
}

// AltIDMatch is one row of resource.by_alt_id's (namespace, id) unnesting.
type AltIDMatch struct {
	Doc       Document
	Namespace string
	AltID     string
}

// FilterOpts is the universal filter map every named view accepts (§4.6):
// limit/skip page the view's natural ordering, descending reverses it.
type FilterOpts struct {
	Limit      int
	Skip       int
	Descending bool
}

// reverseOrder turns a comma-separated list of ascending order-by columns
// into its descending form.
func reverseOrder(orderBy string) string {
	if orderBy == "" {
		return ""
	}
	cols := strings.Split(orderBy, ",")
	for i, c := range cols {
		cols[i] = strings.TrimSpace(c) + " DESC"
	}
	return strings.Join(cols, ", ")
}

func (p *ViewPlanner) queryDocs(ctx context.Context, table, where string, orderBy string, opts FilterOpts, args ...any) ([]Document, error) {
	stmt := fmt.Sprintf("SELECT doc FROM %s", table)
	if where != "" {
		stmt += " WHERE " + where
	}
	order := orderBy
	if opts.Descending {
		order = reverseOrder(orderBy)
	}
	if order != "" {
		stmt += " ORDER BY " + order
	}
	if opts.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", opts.Skip)
	}
	var out []Document
	err := p.store.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, stmt, args...)
		p.store.trace(stmt, 0)
		if err != nil {
			return classifyPGError(err, false)
		}
		defer rows.Close()
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			var doc Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return err
			}
			out = append(out, doc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ByType implements resource.by_type: all non-retired resources of restype.
func (p *ViewPlanner) ByType(ctx context.Context, restype string, opts FilterOpts) ([]Document, error) {
	return p.queryDocs(ctx, p.store.table, "type_=$1 AND lcstate<>'RETIRED'", "name", opts, restype)
}

// ByLCState implements resource.by_lcstate: resources in state, optionally
// restricted to restype. A row matches when either its lcstate or its
// availability equals state.
func (p *ViewPlanner) ByLCState(ctx context.Context, state string, restype string, opts FilterOpts) ([]Document, error) {
	where := "(lcstate=$1 OR availability=$1)"
	args := []any{state}
	if restype != "" {
		where += " AND type_=$2"
		args = append(args, restype)
	}
	return p.queryDocs(ctx, p.store.table, where, "name", opts, args...)
}

// ByName implements resource.by_name: non-retired resources with the given
// name, optionally restricted to restype.
func (p *ViewPlanner) ByName(ctx context.Context, name string, restype string, opts FilterOpts) ([]Document, error) {
	where := "name=$1 AND lcstate<>'RETIRED'"
	args := []any{name}
	if restype != "" {
		where += " AND type_=$2"
		args = append(args, restype)
	}
	return p.queryDocs(ctx, p.store.table, where, "name", opts, args...)
}

// ByKeyword implements resource.by_keyword: resources whose keyword list
// (via json_keywords) contains kw, optionally restricted to restype.
func (p *ViewPlanner) ByKeyword(ctx context.Context, kw string, restype string, opts FilterOpts) ([]Document, error) {
	where := "$1 = ANY(json_keywords(doc))"
	args := []any{kw}
	if restype != "" {
		where += " AND type_=$2"
		args = append(args, restype)
	}
	return p.queryDocs(ctx, p.store.table, where, "name", opts, args...)
}

// ByNestedType implements resource.by_nested_type: resources whose nested
// type list (via json_nested) contains nt, optionally restricted to
// restype.
func (p *ViewPlanner) ByNestedType(ctx context.Context, nt string, restype string, opts FilterOpts) ([]Document, error) {
	where := "$1 = ANY(json_nested(doc))"
	args := []any{nt}
	if restype != "" {
		where += " AND type_=$2"
		args = append(args, restype)
	}
	return p.queryDocs(ctx, p.store.table, where, "name", opts, args...)
}

// ByAttribute implements resource.by_attribute: resources of restype whose
// special-attribute projection (via json_specialattr) matches attr=val
// exactly, or matches attr=* (a LIKE prefix) when val is empty.
func (p *ViewPlanner) ByAttribute(ctx context.Context, restype, attr, val string, opts FilterOpts) ([]Document, error) {
	if val != "" {
		needle := attr + "=" + val
		return p.queryDocs(ctx, p.store.table,
			"type_=$1 AND $2 = ANY(json_specialattr(doc))", "name", opts, restype, needle)
	}
	prefix := attr + "=%"
	return p.queryDocs(ctx, p.store.table,
		"type_=$1 AND EXISTS (SELECT 1 FROM unnest(json_specialattr(doc)) a WHERE a LIKE $2)",
		"name", opts, restype, prefix)
}

// ByAltID implements resource.by_alt_id: resources whose alt_ids list (via
// json_altids, "namespace:id" pairs) contains a pair matching altID and/or
// altIDNS; either filter may be empty to mean "any".
func (p *ViewPlanner) ByAltID(ctx context.Context, altID, altIDNS string, opts FilterOpts) ([]AltIDMatch, error) {
	stmt := fmt.Sprintf(
		"SELECT doc, split_part(pair, ':', 1), split_part(pair, ':', 2) "+
			"FROM %s, unnest(json_altids(doc)) AS pair WHERE true", p.store.table)
	args := []any{}
	n := 1
	if altIDNS != "" {
		stmt += fmt.Sprintf(" AND split_part(pair, ':', 1)=$%d", n)
		args = append(args, altIDNS)
		n++
	}
	if altID != "" {
		stmt += fmt.Sprintf(" AND split_part(pair, ':', 2)=$%d", n)
		args = append(args, altID)
		n++
	}
	order := "split_part(pair, ':', 1), split_part(pair, ':', 2)"
	if opts.Descending {
		order = reverseOrder(order)
	}
	stmt += " ORDER BY " + order
	if opts.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", opts.Skip)
	}
	var out []AltIDMatch
	err := p.store.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, stmt, args...)
		p.store.trace(stmt, 0)
		if err != nil {
			return classifyPGError(err, false)
		}
		defer rows.Close()
		for rows.Next() {
			var raw []byte
			var ns, id string
			if err := rows.Scan(&raw, &ns, &id); err != nil {
				return err
			}
			var doc Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return err
			}
			out = append(out, AltIDMatch{Doc: doc, Namespace: ns, AltID: id})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ByKey implements dir.by_key: the directory entry at exactly
// (org, parent, key).
func (p *ViewPlanner) ByKey(ctx context.Context, org, parent, key string, opts FilterOpts) ([]Document, error) {
	return p.queryDocs(ctx, p.store.table+"_dir",
		"org=$1 AND parent=$2 AND key=$3", "key", opts, org, parent, key)
}

// ByParent implements dir.by_parent: entries directly under parent,
// optionally restricted to key.
func (p *ViewPlanner) ByParent(ctx context.Context, org, parent, key string, opts FilterOpts) ([]Document, error) {
	where := "org=$1 AND parent=$2"
	args := []any{org, parent}
	if key != "" {
		where += " AND key=$3"
		args = append(args, key)
	}
	return p.queryDocs(ctx, p.store.table+"_dir", where, "key", opts, args...)
}

// ByPath implements dir.by_path: entries whose parent path starts with the
// given path segments (e.g. segments ["a","b"] matches parent "/a/b" and
// anything nested under it).
func (p *ViewPlanner) ByPath(ctx context.Context, org string, segments []string, opts FilterOpts) ([]Document, error) {
	prefix := "/" + strings.Join(segments, "/")
	return p.queryDocs(ctx, p.store.table+"_dir",
		"org=$1 AND (parent=$2 OR parent LIKE $3)", "parent, key", opts,
		org, prefix, prefix+"/%")
}

// ByAttributeDir implements dir.by_attribute: entries under parent whose
// attributes.attr (via json_string) equals val.
func (p *ViewPlanner) ByAttributeDir(ctx context.Context, org, attr, val, parent string, opts FilterOpts) ([]Document, error) {
	path := "attributes." + attr
	return p.queryDocs(ctx, p.store.table+"_dir",
		"org=$1 AND json_string(doc, $2)=$3 AND (parent=$4 OR parent LIKE $5)",
		"key", opts, org, path, val, parent, parent+"/%")
}

// ByOrigin implements event.by_origin: events from origin, optionally
// bounded by a ts_created range [tsStart, tsEnd] (empty = unbounded).
func (p *ViewPlanner) ByOrigin(ctx context.Context, origin, tsStart, tsEnd string, opts FilterOpts) ([]Document, error) {
	where := "origin=$1"
	args := []any{origin}
	n := 2
	if tsStart != "" {
		where += fmt.Sprintf(" AND ts_created>=$%d", n)
		args = append(args, tsStart)
		n++
	}
	if tsEnd != "" {
		where += fmt.Sprintf(" AND ts_created<=$%d", n)
		args = append(args, tsEnd)
		n++
	}
	return p.queryDocs(ctx, p.store.table, where, "origin, ts_created", opts, args...)
}

// ByEventType implements event.by_type: events of type_, optionally
// bounded by a ts_created range.
func (p *ViewPlanner) ByEventType(ctx context.Context, typ, tsStart, tsEnd string, opts FilterOpts) ([]Document, error) {
	where := "type_=$1"
	args := []any{typ}
	n := 2
	if tsStart != "" {
		where += fmt.Sprintf(" AND ts_created>=$%d", n)
		args = append(args, tsStart)
		n++
	}
	if tsEnd != "" {
		where += fmt.Sprintf(" AND ts_created<=$%d", n)
		args = append(args, tsEnd)
		n++
	}
	return p.queryDocs(ctx, p.store.table, where, "type_, ts_created", opts, args...)
}

// ByOriginType implements event.by_origintype: events matching both origin
// and type_, optionally bounded by a ts_created range.
func (p *ViewPlanner) ByOriginType(ctx context.Context, origin, typ, tsStart, tsEnd string, opts FilterOpts) ([]Document, error) {
	where := "origin=$1 AND type_=$2"
	args := []any{origin, typ}
	n := 3
	if tsStart != "" {
		where += fmt.Sprintf(" AND ts_created>=$%d", n)
		args = append(args, tsStart)
		n++
	}
	if tsEnd != "" {
		where += fmt.Sprintf(" AND ts_created<=$%d", n)
		args = append(args, tsEnd)
		n++
	}
	return p.queryDocs(ctx, p.store.table, where, "origin, type_, ts_created", opts, args...)
}

// ByTime implements event.by_time: events within [tsStart, tsEnd]. Per
// S6, when neither endpoint is given and opts.Limit is unset, the result
// is capped at the 100 most recent events ordered ascending by
// ts_created, unless opts.Descending is set.
func (p *ViewPlanner) ByTime(ctx context.Context, tsStart, tsEnd string, opts FilterOpts) ([]Document, error) {
	where := ""
	args := []any{}
	n := 1
	if tsStart != "" {
		where = fmt.Sprintf("ts_created>=$%d", n)
		args = append(args, tsStart)
		n++
	}
	if tsEnd != "" {
		if where != "" {
			where += " AND "
		}
		where += fmt.Sprintf("ts_created<=$%d", n)
		args = append(args, tsEnd)
		n++
	}
	if tsStart == "" && tsEnd == "" && opts.Limit <= 0 {
		opts.Limit = 100
		if !opts.Descending {
			// Take the newest 100 by querying descending, then return them
			// oldest first.
			opts.Descending = true
			docs, err := p.queryDocs(ctx, p.store.table, where, "ts_created", opts, args...)
			if err != nil {
				return nil, err
			}
			for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
				docs[i], docs[j] = docs[j], docs[i]
			}
			return docs, nil
		}
	}
	return p.queryDocs(ctx, p.store.table, where, "ts_created", opts, args...)
}

// BySubject implements assoc.by_subject: associations with subject s.
func (p *ViewPlanner) BySubject(ctx context.Context, s string, opts FilterOpts) ([]Document, error) {
	return p.queryDocs(ctx, p.store.table+"_assoc", "s=$1 AND retired=false", "p", opts, s)
}

// BySubjectBulk implements assoc.by_subject_bulk: associations whose
// subject is any of ss.
func (p *ViewPlanner) BySubjectBulk(ctx context.Context, ss []string, opts FilterOpts) ([]Document, error) {
	return p.queryDocs(ctx, p.store.table+"_assoc", "s = ANY($1) AND retired=false", "s, p", opts, ss)
}

// ByObject implements assoc.by_object: associations with object o.
func (p *ViewPlanner) ByObject(ctx context.Context, o string, opts FilterOpts) ([]Document, error) {
	return p.queryDocs(ctx, p.store.table+"_assoc", "o=$1 AND retired=false", "p", opts, o)
}

// ByObjectBulk implements assoc.by_object_bulk: associations whose object
// is any of objs.
func (p *ViewPlanner) ByObjectBulk(ctx context.Context, objs []string, opts FilterOpts) ([]Document, error) {
	return p.queryDocs(ctx, p.store.table+"_assoc", "o = ANY($1) AND retired=false", "o, p", opts, objs)
}

// Query is the thin string-keyed dispatch for wire-level view requests
// (Design Note 4); code inside this module, internal/facade included, calls
// the typed methods above directly.
func (p *ViewPlanner) Query(ctx context.Context, designName, viewName string, args map[string]any) (any, error) {
	str := func(k string) string { s, _ := args[k].(string); return s }
	strs := func(k string) []string {
		v, _ := args[k].([]string)
		return v
	}
	opts := filterOptsFromArgs(args)

	switch designName + "." + viewName {
	case "resource.by_type":
		return p.ByType(ctx, str("restype"), opts)
	case "resource.by_lcstate":
		return p.ByLCState(ctx, str("state"), str("restype"), opts)
	case "resource.by_name":
		return p.ByName(ctx, str("name"), str("restype"), opts)
	case "resource.by_keyword":
		return p.ByKeyword(ctx, str("keyword"), str("restype"), opts)
	case "resource.by_nested_type":
		return p.ByNestedType(ctx, str("nested_type"), str("restype"), opts)
	case "resource.by_attribute":
		return p.ByAttribute(ctx, str("restype"), str("attr"), str("value"), opts)
	case "resource.by_alt_id":
		return p.ByAltID(ctx, str("alt_id"), str("alt_id_ns"), opts)
	case "dir.by_key":
		return p.ByKey(ctx, str("org"), str("parent"), str("key"), opts)
	case "dir.by_parent":
		return p.ByParent(ctx, str("org"), str("parent"), str("key"), opts)
	case "dir.by_path":
		return p.ByPath(ctx, str("org"), strs("path"), opts)
	case "dir.by_attribute":
		return p.ByAttributeDir(ctx, str("org"), str("attr"), str("value"), str("parent"), opts)
	case "event.by_origin":
		return p.ByOrigin(ctx, str("origin"), str("ts_start"), str("ts_end"), opts)
	case "event.by_type":
		return p.ByEventType(ctx, str("type"), str("ts_start"), str("ts_end"), opts)
	case "event.by_origintype":
		return p.ByOriginType(ctx, str("origin"), str("type"), str("ts_start"), str("ts_end"), opts)
	case "event.by_time":
		return p.ByTime(ctx, str("ts_start"), str("ts_end"), opts)
	case "assoc.by_subject":
		return p.BySubject(ctx, str("subject"), opts)
	case "assoc.by_subject_bulk":
		return p.BySubjectBulk(ctx, strs("subjects"), opts)
	case "assoc.by_object":
		return p.ByObject(ctx, str("object"), opts)
	case "assoc.by_object_bulk":
		return p.ByObjectBulk(ctx, strs("objects"), opts)
	default:
		return nil, newErr(KindBadRequest, "unknown view %s.%s", designName, viewName)
	}
}

// filterOptsFromArgs pulls the universal limit/skip/descending filter map
// (§4.6) out of a view's wire-level args, tolerating the numeric types
// encoding/json and the codec hand back (int, int64, float64).
func filterOptsFromArgs(args map[string]any) FilterOpts {
	intArg := func(k string) int {
		switch v := args[k].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return 0
		}
	}
	descending, _ := args["descending"].(bool)
	return FilterOpts{
		Limit:      intArg("limit"),
		Skip:       intArg("skip"),
		Descending: descending,
	}
}
