package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacatalog/internal/catalog"
	"mediacatalog/internal/config"
	"mediacatalog/internal/lookup"
)

func newMemorySeeder() seeder {
	logger := config.NullLogger()
	return seeder{
		media:      catalog.NewService(catalog.NewMemoryRepo(), logger),
		categories: lookup.NewCategoryService(lookup.NewMemoryCategoryRepo(), logger),
		genres:     lookup.NewGenreService(lookup.NewMemoryGenreRepo(), logger),
		logger:     logger,
	}
}

func TestSeeder_RunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newMemorySeeder()
	want := len(sampleCategories()) + len(sampleGenres()) + len(sampleMedia())

	first, err := s.run(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, first.created)
	assert.Zero(t, first.skipped)

	second, err := s.run(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.created)
	assert.Equal(t, want, second.skipped)

	total, err := s.media.TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sampleMedia()), total)
}

func TestSeeder_SampleRecordsAreAvailable(t *testing.T) {
	ctx := context.Background()
	s := newMemorySeeder()
	_, err := s.run(ctx)
	require.NoError(t, err)

	hobbit, err := s.media.GetByISBN(ctx, "978-0547928227")
	require.NoError(t, err)
	assert.Equal(t, 5, hobbit.AvailableQuantity)

	movies, err := s.genres.ListByMediaType(ctx, catalog.TypeDVD)
	require.NoError(t, err)
	assert.Len(t, movies, len(sampleGenres()))

	books, err := s.genres.ListByMediaType(ctx, catalog.TypeBook)
	require.NoError(t, err)
	assert.Len(t, books, len(sampleGenres())-1)
}
