package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestClassroomRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "building", "capacity", "active", "created_at", "updated_at"}).
		AddRow("room-1", "R101", "Science Wing", 40, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, building, capacity, active, created_at, updated_at FROM classrooms WHERE id = $1")).
		WithArgs("room-1").
		WillReturnRows(rows)

	room, err := repo.FindByID(context.Background(), "room-1")
	require.NoError(t, err)
	require.Equal(t, "R101", room.Name)
	require.Equal(t, "Science Wing", room.Building)
	require.Equal(t, 40, room.Capacity)
	require.True(t, room.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}
