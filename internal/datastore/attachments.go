package datastore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Attachment is a binary blob attached to a document by name.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// CreateAttachment stores data under name against docID. A foreign-key
// violation (the parent document does not exist) classifies as NotFound.
func (s *Store) CreateAttachment(ctx context.Context, docID string, att Attachment) error {
	table := s.table + "_att"
	stmt := fmt.Sprintf(
		"INSERT INTO %s (docid, rev, doc, name, content_type) VALUES ($1, 1, $2, $3, $4)", table)
	return s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt, docID, att.Data, att.Name, att.ContentType)
		s.trace(stmt, 1)
		if err != nil {
			return classifyPGError(err, true)
		}
		return nil
	})
}

// ReadAttachment returns the bytes stored under name against docID.
func (s *Store) ReadAttachment(ctx context.Context, docID, name string) ([]byte, error) {
	table := s.table + "_att"
	stmt := fmt.Sprintf("SELECT doc FROM %s WHERE docid=$1 AND name=$2", table)
	var data []byte
	err := s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, stmt, docID, name)
		err := row.Scan(&data)
		s.trace(stmt, 1)
		if err != nil {
			if err == pgx.ErrNoRows {
				return newErr(KindNotFound, "attachment %s does not exist on %s", name, docID)
			}
			return classifyPGError(err, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UpdateAttachment overwrites the bytes/content type stored under name
// against docID, bumping its revision.
func (s *Store) UpdateAttachment(ctx context.Context, docID string, att Attachment) error {
	table := s.table + "_att"
	stmt := fmt.Sprintf(
		"UPDATE %s SET rev=rev+1, doc=$1, content_type=$2 WHERE docid=$3 AND name=$4", table)
	return s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, att.Data, att.ContentType, docID, att.Name)
		s.trace(stmt, tag.RowsAffected())
		if err != nil {
			return classifyPGError(err, false)
		}
		if tag.RowsAffected() == 0 {
			return newErr(KindNotFound, "attachment %s does not exist on %s", att.Name, docID)
		}
		return nil
	})
}

// DeleteAttachment removes the attachment stored under name against docID.
func (s *Store) DeleteAttachment(ctx context.Context, docID, name string) error {
	table := s.table + "_att"
	stmt := fmt.Sprintf("DELETE FROM %s WHERE docid=$1 AND name=$2", table)
	return s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, docID, name)
		s.trace(stmt, tag.RowsAffected())
		if err != nil {
			return classifyPGError(err, false)
		}
		if tag.RowsAffected() == 0 {
			return newErr(KindNotFound, "attachment %s does not exist on %s", name, docID)
		}
		return nil
	})
}

// ListAttachments returns the name/content-type pairs attached to docID.
func (s *Store) ListAttachments(ctx context.Context, docID string) ([]Attachment, error) {
	table := s.table + "_att"
	stmt := fmt.Sprintf("SELECT name, content_type FROM %s WHERE docid=$1", table)
	var out []Attachment
	err := s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, stmt, docID)
		s.trace(stmt, 0)
		if err != nil {
			return classifyPGError(err, false)
		}
		defer rows.Close()
		for rows.Next() {
			var a Attachment
			if err := rows.Scan(&a.Name, &a.ContentType); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
