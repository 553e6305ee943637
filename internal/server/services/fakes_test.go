package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/parcelsync/internal/dbx"
	"github.com/dmitrijs2005/parcelsync/internal/server/models"
	recordsrepo "github.com/dmitrijs2005/parcelsync/internal/server/repositories/records"
	refreshtokensrepo "github.com/dmitrijs2005/parcelsync/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/parcelsync/internal/server/repositories/users"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error
	created   []*models.User

	getOut *models.User
	getErr error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.created = append(f.created, u)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	u.ID = "new-user"
	return u, nil
}

func (f *fakeUsersRepo) GetUserByEmail(context.Context, string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeRefreshRepo struct {
	mu sync.Mutex

	findOut *models.RefreshToken
	findErr error
	delErr  error

	createErr error
	issued    []string
	deleted   []string
}

func (f *fakeRefreshRepo) Create(_ context.Context, _ string, token string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.issued = append(f.issued, token)
	return nil
}

func (f *fakeRefreshRepo) Find(context.Context, string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, token)
	return f.delErr
}

type fakeRecordsRepo struct {
	got     *models.Record
	created bool
	err     error
}

func (f *fakeRecordsRepo) Create(_ context.Context, rec *models.Record) (*models.Record, bool, error) {
	f.got = rec
	if f.err != nil {
		return nil, false, f.err
	}
	out := *rec
	out.ID = "rec-1"
	return &out, f.created, nil
}

func (f *fakeRecordsRepo) GetByClientItemID(context.Context, string, string) (*models.Record, error) {
	return nil, errors.New("not used")
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	r  *fakeRefreshRepo
	rc *fakeRecordsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                    { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository    { return m.r }
func (m *fakeRepoManager) Records(dbx.DBTX) recordsrepo.Repository                { return m.rc }
