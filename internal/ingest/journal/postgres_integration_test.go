//go:build integration

package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"iplist/internal/ingest/journal"
	"iplist/pkg/testutil/containers"
)

type PostgresJournalSuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	journal *journal.Postgres
}

func TestPostgresJournalSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresJournalSuite))
}

func (s *PostgresJournalSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.journal = journal.NewPostgres(s.pg.DB)
	s.Require().NoError(s.journal.Migrate(context.Background()))
	// migrating twice is harmless
	s.Require().NoError(s.journal.Migrate(context.Background()))
}

func (s *PostgresJournalSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "ingestions", "category_totals"))
}

func (s *PostgresJournalSuite) TestRecordAndRecent() {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.journal.Record(ctx, journal.Entry{
		RequestID: "req-1",
		Input:     "netflix",
		Domain:    "netflix.com",
		Category:  "streaming",
		Status:    journal.StatusCreated,
		IP4:       []string{"1.2.3.4", "5.6.7.8"},
		IP6:       []string{"2001:db8::1"},
		Resolver:  "8.8.8.8:53",
		Commit:    "c0ffee",
		CreatedAt: base,
	}))
	s.Require().NoError(s.journal.Record(ctx, journal.Entry{
		Input:     "???",
		Status:    journal.StatusError,
		Kind:      "ambiguous_input",
		Message:   "could not derive a domain",
		CreatedAt: base.Add(time.Minute),
	}))

	got, err := s.journal.Recent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 2)

	s.Equal("???", got[0].Input)
	s.Equal("ambiguous_input", got[0].Kind)
	s.Equal([]string{}, got[0].IP4)

	s.Equal("netflix.com", got[1].Domain)
	s.Equal([]string{"1.2.3.4", "5.6.7.8"}, got[1].IP4)
	s.Equal([]string{"2001:db8::1"}, got[1].IP6)
	s.Equal("c0ffee", got[1].Commit)
	s.True(base.Equal(got[1].CreatedAt))
}

func (s *PostgresJournalSuite) TestTotals() {
	ctx := context.Background()
	for _, status := range []string{journal.StatusCreated, journal.StatusUpdated, journal.StatusNoop} {
		s.Require().NoError(s.journal.Record(ctx, journal.Entry{Input: "x", Category: "ai", Status: status}))
	}

	totals, err := s.journal.Totals(ctx)
	s.Require().NoError(err)
	s.Equal(map[string]int{"ai": 2}, totals)
}

func (s *PostgresJournalSuite) TestLimit() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.journal.Record(ctx, journal.Entry{Input: "x", Status: journal.StatusNoop}))
	}
	got, err := s.journal.Recent(ctx, 3)
	s.Require().NoError(err)
	s.Len(got, 3)
}
