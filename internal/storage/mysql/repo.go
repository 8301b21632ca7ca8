package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"hostel_finder/internal/domain"
)

// newID assigns primary keys; swapped in tests.
var newID = uuid.NewString

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type scanner interface {
	Scan(dest ...any) error
}

func scanHostel(s scanner) (domain.HostelRecord, error) {
	var h domain.HostelRecord
	var desc, thumb sql.NullString
	if err := s.Scan(
		&h.ID,
		&h.Name,
		&desc,
		&h.Price,
		&h.AvailableRooms,
		&h.OwnerName,
		&h.OwnerContact,
		&thumb,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		return domain.HostelRecord{}, err
	}
	h.Description = nullStr(desc)
	h.Thumbnail = nullStr(thumb)
	return h, nil
}

func (r *Repo) ListHostels(ctx context.Context) ([]domain.HostelRecord, error) {
	rows, err := r.db.QueryContext(ctx, listHostelsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HostelRecord
	for rows.Next() {
		h, err := scanHostel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetHostel(ctx context.Context, id string) (domain.HostelRecord, error) {
	h, err := scanHostel(r.db.QueryRowContext(ctx, getHostelSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HostelRecord{}, domain.ErrNotFound
		}
		return domain.HostelRecord{}, err
	}
	return h, nil
}

// ListRoomTypes returns the room types of every hostel in ids. An empty id set
// returns nothing without touching the database.
func (r *Repo) ListRoomTypes(ctx context.Context, ids []string) ([]domain.RoomTypeRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, listRoomTypesPrefix+"("+marks+")"+listRoomTypesOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomTypeRecord
	for rows.Next() {
		var rt domain.RoomTypeRecord
		var label string
		if err := rows.Scan(&rt.ID, &rt.HostelID, &label, &rt.Price, &rt.CreatedAt); err != nil {
			return nil, err
		}
		rt.RoomType = domain.RoomType(label)
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateHostel inserts the parent row and its room types in one transaction
// and returns the new id.
func (r *Repo) CreateHostel(ctx context.Context, h domain.HostelRecord, rts []domain.RoomTypeRecord) (string, error) {
	id := newID()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertHostelSQL,
			id,
			h.Name,
			valStr(h.Description),
			h.Price,
			h.AvailableRooms,
			h.OwnerName,
			h.OwnerContact,
			valStr(h.Thumbnail),
		); err != nil {
			return fmt.Errorf("insert hostel: %w", err)
		}
		return insertRoomTypes(ctx, tx, id, rts)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReplaceHostel updates the parent row and swaps its room-type set for rts.
// Nothing is written when the hostel does not exist.
func (r *Repo) ReplaceHostel(ctx context.Context, h domain.HostelRecord, rts []domain.RoomTypeRecord) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var found string
		if err := tx.QueryRowContext(ctx, lockHostelSQL, h.ID).Scan(&found); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, updateHostelSQL,
			h.Name,
			valStr(h.Description),
			h.Price,
			h.AvailableRooms,
			h.OwnerName,
			h.OwnerContact,
			valStr(h.Thumbnail),
			h.ID,
		); err != nil {
			return fmt.Errorf("update hostel: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteRoomTypesSQL, h.ID); err != nil {
			return fmt.Errorf("delete room types: %w", err)
		}
		return insertRoomTypes(ctx, tx, h.ID, rts)
	})
}

func insertRoomTypes(ctx context.Context, tx *sql.Tx, hostelID string, rts []domain.RoomTypeRecord) error {
	if len(rts) == 0 {
		return nil
	}
	values := make([]string, 0, len(rts))
	args := make([]any, 0, len(rts)*4)
	for _, rt := range rts {
		values = append(values, "(?,?,?,?)")
		args = append(args, newID(), hostelID, string(rt.RoomType), rt.Price)
	}
	if _, err := tx.ExecContext(ctx, insertRoomTypesPrefix+strings.Join(values, ","), args...); err != nil {
		return fmt.Errorf("insert room types: %w", err)
	}
	return nil
}

func (r *Repo) DeleteHostel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteHostelSQL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

/********** profiles / users **********/

func (r *Repo) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRowContext(ctx, getProfileSQL, userID).Scan(&p.ID, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, err
	}
	return p, nil
}

// CreateProfile inserts p unless a profile with the same id already exists.
func (r *Repo) CreateProfile(ctx context.Context, p domain.Profile) error {
	_, err := r.db.ExecContext(ctx, insertProfileSQL, p.ID, p.IsAdmin)
	return err
}

// GrantAdmin creates or upgrades the profile of userID to admin.
func (r *Repo) GrantAdmin(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, upsertAdminProfileSQL, userID)
	return err
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, findUserByEmailSQL, strings.ToLower(strings.TrimSpace(email))).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *Repo) CreateUser(ctx context.Context, u domain.User) (string, error) {
	id := newID()
	_, err := r.db.ExecContext(ctx, insertUserSQL, id, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash)
	if err != nil {
		return "", err
	}
	return id, nil
}
