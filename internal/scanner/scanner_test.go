package scanner_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/graph"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/rpm"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/scanner"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/scanner/mocks"
)

const (
	idA = "a-0-1.0-1.azl3.x86_64"
	idB = "b-0-1.0-1.azl3.x86_64"
	idC = "c-0-1.0-1.azl3.x86_64"
)

func loadCatalog(t *testing.T, entries ...catalog.Entry) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(entries)
	require.NoError(t, err)
	return cat
}

func chainCatalog(t *testing.T) *catalog.Catalog {
	return loadCatalog(t,
		catalog.Entry{Identity: idA, Name: "a", SizeBytes: 100},
		catalog.Entry{Identity: idB, Name: "b", SizeBytes: 200},
		catalog.Entry{Identity: idC, Name: "c", SizeBytes: 50},
	)
}

// expectChain wires A→B→C: b requires a, c requires b.
func expectChain(q *mocks.MockDependentsQuerier, times int) {
	q.EXPECT().DirectDependents(gomock.Any(), "a").Return([]string{"b"}, nil).Times(times)
	q.EXPECT().DirectDependents(gomock.Any(), "b").Return([]string{"c"}, nil).Times(times)
	q.EXPECT().DirectDependents(gomock.Any(), "c").Return(nil, nil).Times(times)
}

func TestBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockDependentsQuerier(ctrl)
	expectChain(q, 1)

	s := scanner.New(q, nil)
	g, err := s.Build(context.Background(), chainCatalog(t))
	require.NoError(t, err)

	assert.Equal(t, []string{idA, idB, idC}, g.Nodes())
	assert.Equal(t, []string{idB}, g.Dependents(idA))
	assert.Equal(t, []string{idC}, g.Dependents(idB))
	assert.Empty(t, g.Dependents(idC))
}

func TestBuild_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockDependentsQuerier(ctrl)
	expectChain(q, 2)

	cat := chainCatalog(t)
	s := scanner.New(q, nil)
	s.Workers = 3

	first, err := s.Build(context.Background(), cat)
	require.NoError(t, err)
	second, err := s.Build(context.Background(), cat)
	require.NoError(t, err)

	assert.True(t, graph.Equal(first, second))
}

func TestBuild_SequentialMatchesParallel(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockDependentsQuerier(ctrl)
	expectChain(q, 2)

	cat := chainCatalog(t)
	seq := scanner.New(q, nil)
	seq.Workers = 1
	par := scanner.New(q, nil)
	par.Workers = 8

	a, err := seq.Build(context.Background(), cat)
	require.NoError(t, err)
	b, err := par.Build(context.Background(), cat)
	require.NoError(t, err)
	assert.True(t, graph.Equal(a, b))
}

func TestBuild_IgnoresSelfEdges(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockDependentsQuerier(ctrl)
	q.EXPECT().DirectDependents(gomock.Any(), "a").Return([]string{"a"}, nil)

	g, err := scanner.New(q, nil).Build(context.Background(),
		loadCatalog(t, catalog.Entry{Identity: idA, Name: "a", SizeBytes: 1}))
	require.NoError(t, err)
	assert.Empty(t, g.Dependents(idA))
	assert.True(t, g.HasNode(idA))
}

func TestBuild_MultipleMatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockDependentsQuerier(ctrl)
	q.EXPECT().DirectDependents(gomock.Any(), "a").Return([]string{"kernel"}, nil).AnyTimes()

	cat := loadCatalog(t,
		catalog.Entry{Identity: idA, Name: "a", SizeBytes: 1},
		catalog.Entry{Identity: "kernel-0-6.6.1-1.azl3.x86_64", Name: "kernel", SizeBytes: 1},
		catalog.Entry{Identity: "kernel-0-6.6.2-1.azl3.x86_64", Name: "kernel", SizeBytes: 1},
	)

	_, err := scanner.New(q, nil).Build(context.Background(), cat)
	assert.ErrorIs(t, err, catalog.ErrMultipleMatches)
}

func TestBuild_UnknownDependent(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockDependentsQuerier(ctrl)
	q.EXPECT().DirectDependents(gomock.Any(), "a").Return([]string{"ghost"}, nil)

	_, err := scanner.New(q, nil).Build(context.Background(),
		loadCatalog(t, catalog.Entry{Identity: idA, Name: "a", SizeBytes: 1}))
	assert.ErrorIs(t, err, catalog.ErrUnknownIdentity)
}

func TestBuild_QueryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockDependentsQuerier(ctrl)
	q.EXPECT().DirectDependents(gomock.Any(), "a").Return(nil, rpm.ErrQueryTimeout)
	q.EXPECT().DirectDependents(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	s := scanner.New(q, nil)
	s.Workers = 1
	g, err := s.Build(context.Background(), chainCatalog(t))

	require.Error(t, err)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, scanner.ErrQueryFailed)
	assert.ErrorIs(t, err, rpm.ErrQueryTimeout)
	assert.Contains(t, err.Error(), idA)
}

func TestBuild_Progress(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mocks.NewMockDependentsQuerier(ctrl)
	expectChain(q, 1)

	var mu sync.Mutex
	var calls []int
	s := scanner.New(q, nil)
	s.OnProgress = func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		calls = append(calls, done)
	}

	_, err := s.Build(context.Background(), chainCatalog(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, calls)
}

type fakeLister struct {
	pkgs []rpm.Package
	err  error
}

func (f fakeLister) ListInstalled(context.Context) ([]rpm.Package, error) {
	return f.pkgs, f.err
}

func TestInventory(t *testing.T) {
	cat, err := scanner.Inventory(context.Background(), fakeLister{pkgs: []rpm.Package{
		{Name: "bash", Epoch: "0", Version: "5.2.15", Release: "1.azl3", Arch: "x86_64", SizeBytes: 10},
		{Name: "glibc", Epoch: "0", Version: "2.38", Release: "8.azl3", Arch: "x86_64", SizeBytes: 20},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	id, err := cat.IdentityOf("glibc")
	require.NoError(t, err)
	assert.Equal(t, "glibc-0-2.38-8.azl3.x86_64", id)
}

func TestInventory_Errors(t *testing.T) {
	boom := errors.New("rpmdb locked")
	_, err := scanner.Inventory(context.Background(), fakeLister{err: boom})
	assert.ErrorIs(t, err, boom)

	dup := rpm.Package{Name: "bash", Epoch: "0", Version: "1", Release: "1", Arch: "x86_64"}
	_, err = scanner.Inventory(context.Background(), fakeLister{pkgs: []rpm.Package{dup, dup}})
	assert.ErrorIs(t, err, catalog.ErrDuplicateIdentity)
}
