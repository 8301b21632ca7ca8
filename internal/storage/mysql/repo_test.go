package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel_finder/internal/domain"
)

func newMock(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

// sequentialIDs makes generated ids predictable: id-1, id-2, ...
func sequentialIDs(t *testing.T) {
	t.Helper()
	n := 0
	prev := newID
	newID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	t.Cleanup(func() { newID = prev })
}

var hostelCols = []string{"id", "name", "description", "price", "available_rooms", "owner_name", "owner_contact", "thumbnail", "created_at", "updated_at"}

func TestListHostels(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(listHostelsSQL).WillReturnRows(sqlmock.NewRows(hostelCols).
		AddRow("b", "Royal Residence", "Quiet", 4500.0, 3, "Kofi", "0509876543", "https://cdn.test/b.png", now, now).
		AddRow("a", "Sunshine Hostel", nil, 3500.0, 0, "Ama", "0241234567", nil, now.Add(-time.Hour), now))

	got, err := repo.ListHostels(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	require.NotNil(t, got[0].Description)
	assert.Equal(t, "Quiet", *got[0].Description)
	assert.Nil(t, got[1].Description)
	assert.Nil(t, got[1].Thumbnail)
	assert.Equal(t, 3500.0, got[1].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHostel_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(getHostelSQL).WithArgs("nope").WillReturnRows(sqlmock.NewRows(hostelCols))

	_, err := repo.GetHostel(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRoomTypes(t *testing.T) {
	repo, mock := newMock(t)

	got, err := repo.ListRoomTypes(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	mock.ExpectQuery(listRoomTypesPrefix+"(?,?)"+listRoomTypesOrder).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "hostel_id", "room_type", "price", "created_at"}).
			AddRow("r1", "a", "single", 3500.0, now).
			AddRow("r2", "b", "quad", 4500.0, now))

	got, err = repo.ListRoomTypes(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.RoomQuad, got[1].RoomType)
	assert.Equal(t, "b", got[1].HostelID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHostel_WritesParentAndChildrenInOneTx(t *testing.T) {
	repo, mock := newMock(t)
	sequentialIDs(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertHostelSQL).
		WithArgs("id-1", "Sunshine Hostel", nil, 2800.0, 0, "Ama", "0241234567", "https://cdn.test/a.png").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertRoomTypesPrefix+"(?,?,?,?),(?,?,?,?)").
		WithArgs("id-2", "id-1", "single", 3500.0, "id-3", "id-1", "double", 2800.0).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	thumb := "https://cdn.test/a.png"
	id, err := repo.CreateHostel(context.Background(),
		domain.HostelRecord{Name: "Sunshine Hostel", Price: 2800, OwnerName: "Ama", OwnerContact: "0241234567", Thumbnail: &thumb},
		[]domain.RoomTypeRecord{{RoomType: domain.RoomSingle, Price: 3500}, {RoomType: domain.RoomDouble, Price: 2800}},
	)
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHostel_ChildFailureRollsBack(t *testing.T) {
	repo, mock := newMock(t)
	sequentialIDs(t)
	boom := errors.New("duplicate room type")

	mock.ExpectBegin()
	mock.ExpectExec(insertHostelSQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertRoomTypesPrefix + "(?,?,?,?)").WillReturnError(boom)
	mock.ExpectRollback()

	id, err := repo.CreateHostel(context.Background(),
		domain.HostelRecord{Name: "X", OwnerName: "Ama", OwnerContact: "0241234567"},
		[]domain.RoomTypeRecord{{RoomType: domain.RoomSingle, Price: 1}},
	)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceHostel_SwapsRoomTypes(t *testing.T) {
	repo, mock := newMock(t)
	sequentialIDs(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockHostelSQL).WithArgs("h1").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("h1"))
	mock.ExpectExec(updateHostelSQL).
		WithArgs("Royal Residence", "Quiet", 2500.0, 4, "Kofi", "0509876543", nil, "h1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteRoomTypesSQL).WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(insertRoomTypesPrefix+"(?,?,?,?),(?,?,?,?)").
		WithArgs("id-1", "h1", "double", 2500.0, "id-2", "h1", "triple", 3000.0).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	desc := "Quiet"
	err := repo.ReplaceHostel(context.Background(),
		domain.HostelRecord{ID: "h1", Name: "Royal Residence", Description: &desc, Price: 2500, AvailableRooms: 4, OwnerName: "Kofi", OwnerContact: "0509876543"},
		[]domain.RoomTypeRecord{{RoomType: domain.RoomDouble, Price: 2500}, {RoomType: domain.RoomTriple, Price: 3000}},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceHostel_Missing(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockHostelSQL).WithArgs("gone").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.ReplaceHostel(context.Background(), domain.HostelRecord{ID: "gone"}, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteHostel(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(deleteHostelSQL).WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteHostelSQL).WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteHostel(context.Background(), "h1"))
	assert.ErrorIs(t, repo.DeleteHostel(context.Background(), "h1"), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfiles(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(getProfileSQL).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_admin", "created_at", "updated_at"}).AddRow("u1", true, now, now))
	mock.ExpectQuery(getProfileSQL).WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_admin", "created_at", "updated_at"}))
	mock.ExpectExec(insertProfileSQL).WithArgs("u2", false).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsertAdminProfileSQL).WithArgs("u3").WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := repo.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	_, err = repo.GetProfile(context.Background(), "u2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.CreateProfile(context.Background(), domain.Profile{ID: "u2"}))
	require.NoError(t, repo.GrantAdmin(context.Background(), "u3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsers(t *testing.T) {
	repo, mock := newMock(t)
	sequentialIDs(t)

	mock.ExpectExec(insertUserSQL).WithArgs("id-1", "admin@hostels.test", "hash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(findUserByEmailSQL).WithArgs("admin@hostels.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).AddRow("id-1", "admin@hostels.test", "hash", time.Now()))
	mock.ExpectQuery(findUserByEmailSQL).WithArgs("ghost@hostels.test").WillReturnError(sql.ErrNoRows)

	id, err := repo.CreateUser(context.Background(), domain.User{Email: " Admin@Hostels.test ", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	u, err := repo.FindUserByEmail(context.Background(), "ADMIN@hostels.test")
	require.NoError(t, err)
	assert.Equal(t, "id-1", u.ID)

	_, err = repo.FindUserByEmail(context.Background(), "ghost@hostels.test")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
