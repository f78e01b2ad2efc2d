package catalog

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

const mockAny = mock.Anything

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, r Record) (Record, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(Record), args.Error(1)
}

func (m *mockStore) GetByID(ctx context.Context, id int64, includeDeleted bool) (Record, error) {
	args := m.Called(ctx, id, includeDeleted)
	return args.Get(0).(Record), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, includeDeleted bool) ([]Record, error) {
	args := m.Called(ctx, includeDeleted)
	return recordsArg(args, 0), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, r Record) (bool, error) {
	args := m.Called(ctx, r)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) SoftDelete(ctx context.Context, id, actingUserID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, id, actingUserID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Search(ctx context.Context, term string) ([]Record, error) {
	args := m.Called(ctx, term)
	return recordsArg(args, 0), args.Error(1)
}

func (m *mockStore) Filter(ctx context.Context, f Filter) ([]Record, error) {
	args := m.Called(ctx, f)
	return recordsArg(args, 0), args.Error(1)
}

func (m *mockStore) Page(ctx context.Context, q PageQuery) ([]Record, int, error) {
	args := m.Called(ctx, q)
	return recordsArg(args, 0), args.Int(1), args.Error(2)
}

func (m *mockStore) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	args := m.Called(ctx, isbn)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ExistsByTitleAuthor(ctx context.Context, title, author string) (bool, error) {
	args := m.Called(ctx, title, author)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CountTotal(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CountAvailable(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CountByType(ctx context.Context, t Type) (int, error) {
	args := m.Called(ctx, t)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) BulkCreate(ctx context.Context, records []Record) ([]Record, error) {
	args := m.Called(ctx, records)
	return recordsArg(args, 0), args.Error(1)
}

func (m *mockStore) BulkUpdateQuantities(ctx context.Context, quantities map[int64]int, actingUserID int64, at time.Time) ([]int64, error) {
	args := m.Called(ctx, quantities, actingUserID, at)
	var ids []int64
	if v := args.Get(0); v != nil {
		ids = v.([]int64)
	}
	return ids, args.Error(1)
}

func recordsArg(args mock.Arguments, i int) []Record {
	if v := args.Get(i); v != nil {
		return v.([]Record)
	}
	return nil
}
