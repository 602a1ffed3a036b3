package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/font-crawler/internal/crawler"
)

func sampleRecord() crawler.CrawlRecord {
	started := time.Unix(1700000000, 0).UTC()
	return crawler.CrawlRecord{
		ID:           "0190b6c2-0000-7000-8000-000000000001",
		Request:      crawler.Request{StartURL: "https://example.com", Strategy: crawler.StrategyBreadthFirst, PageLimit: 3},
		Status:       crawler.CrawlStatusSucceeded,
		Fonts:        []string{"arial", "helvetica"},
		PagesVisited: 3,
		PagesFailed:  1,
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Second),
	}
}

func TestSaveCrawlInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCrawlStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	rec := sampleRecord()
	mock.ExpectExec("INSERT INTO crawls").
		WithArgs(
			rec.ID,
			rec.Request.StartURL,
			"breadth-first",
			3,
			"succeeded",
			"",
			[]string{"arial", "helvetica"},
			3,
			1,
			rec.StartedAt,
			rec.FinishedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveCrawl(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCrawlWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCrawlStoreWithPool(mock, "")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO crawls").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(boom)

	err = store.SaveCrawl(context.Background(), sampleRecord())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "insert crawl")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCrawlRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCrawlStoreWithPool(mock, "crawls")
	require.NoError(t, err)
	require.Error(t, store.SaveCrawl(context.Background(), crawler.CrawlRecord{}))
}

func TestGetCrawlScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCrawlStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	rec := sampleRecord()
	rows := pgxmock.NewRows([]string{
		"start_url", "strategy", "page_limit", "status", "reason", "fonts",
		"pages_visited", "pages_failed", "started_at", "finished_at",
	}).AddRow(
		rec.Request.StartURL, "breadth-first", 3, "succeeded", "", []string{"arial", "helvetica"},
		3, 1, rec.StartedAt, rec.FinishedAt,
	)
	mock.ExpectQuery("SELECT (.+) FROM crawls WHERE id").WithArgs(rec.ID).WillReturnRows(rows)

	got, err := store.GetCrawl(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCrawlNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCrawlStoreWithPool(mock, "crawls")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM crawls WHERE id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err = store.GetCrawl(context.Background(), "missing")
	require.ErrorIs(t, err, crawler.ErrCrawlNotFound)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCrawlStoreWithPool(mock, "font_crawls")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS font_crawls").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCrawlStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCrawlStoreWithPool(nil, "crawls")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewCrawlStoreWithPool(mock, "crawls; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewCrawlStore(context.Background(), Config{})
	require.ErrorContains(t, err, "db.dsn is required")
}
