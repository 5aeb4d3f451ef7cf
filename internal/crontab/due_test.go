package crontab

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseTable(t *testing.T, input string) *Table {
	t.Helper()
	table, perrs, err := Parse("crontab", strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, perrs)
	return table
}

func TestDue_ExactMinuteMatch(t *testing.T) {
	table := mustParseTable(t, "30 4 * * * root /usr/local/bin/backup.sh\n")

	at := time.Date(2023, 3, 15, 4, 30, 0, 0, time.UTC)
	due := table.Due(at)
	require.Len(t, due, 1)
	assert.Equal(t, "/usr/local/bin/backup.sh", due[0].Command)

	// Seconds within the minute do not matter.
	assert.Len(t, table.Due(at.Add(42*time.Second)), 1)

	// One minute off on either side does not match.
	assert.Empty(t, table.Due(at.Add(-time.Minute)))
	assert.Empty(t, table.Due(at.Add(time.Minute)))
}

func TestDue_CrawlScheduleSundayOnly(t *testing.T) {
	table := mustParseTable(t, "23 2 * * 0 dokku dokku --rm enter ftc-scrapers sh ./crawl_all.sh\n")

	sunday := time.Date(2023, 1, 8, 2, 23, 0, 0, time.UTC)
	require.Equal(t, time.Sunday, sunday.Weekday())

	due := table.Due(sunday)
	require.Len(t, due, 1)
	assert.Equal(t, "dokku --rm enter ftc-scrapers sh ./crawl_all.sh", due[0].Command)
	assert.Equal(t, "dokku", due[0].Identity)

	monday := time.Date(2023, 1, 9, 2, 23, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())
	assert.Empty(t, table.Due(monday))
}

func TestDue_DayFieldPolicy(t *testing.T) {
	firstWednesday := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC) // dom=1, not Sunday
	require.Equal(t, time.Wednesday, firstWednesday.Weekday())
	sundayNotFirst := time.Date(2023, 1, 8, 0, 0, 0, 0, time.UTC) // Sunday, dom=8
	require.Equal(t, time.Sunday, sundayNotFirst.Weekday())
	plainTuesday := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC) // neither
	require.Equal(t, time.Tuesday, plainTuesday.Weekday())

	t.Run("dom restricted, dow wildcard fires on the 1st only", func(t *testing.T) {
		table := mustParseTable(t, "0 0 1 * * u cmd\n")
		assert.Len(t, table.Due(firstWednesday), 1)
		assert.Empty(t, table.Due(sundayNotFirst))
		assert.Empty(t, table.Due(plainTuesday))
	})

	t.Run("dom wildcard, dow restricted fires on Sundays only", func(t *testing.T) {
		table := mustParseTable(t, "0 0 * * 0 u cmd\n")
		assert.Len(t, table.Due(sundayNotFirst), 1)
		assert.Empty(t, table.Due(firstWednesday))
		assert.Empty(t, table.Due(plainTuesday))
	})

	t.Run("both restricted fires when either matches", func(t *testing.T) {
		table := mustParseTable(t, "0 0 1 * 0 u cmd\n")
		assert.Len(t, table.Due(firstWednesday), 1, "day-of-month match alone should fire")
		assert.Len(t, table.Due(sundayNotFirst), 1, "day-of-week match alone should fire")
		assert.Empty(t, table.Due(plainTuesday))
	})
}

func TestDue_MultipleJobsSameMinute(t *testing.T) {
	table := mustParseTable(t, `0 3 * * * alice /bin/one
0 3 * * * bob /bin/two
30 3 * * * carol /bin/three
`)
	due := table.Due(time.Date(2023, 5, 4, 3, 0, 0, 0, time.UTC))
	require.Len(t, due, 2)
	assert.Equal(t, "alice", due[0].Identity)
	assert.Equal(t, "bob", due[1].Identity)
}

func TestDue_Idempotent(t *testing.T) {
	table := mustParseTable(t, "*/5 * * * * u cmd\n")
	at := time.Date(2023, 7, 1, 12, 25, 0, 0, time.UTC)

	first := table.Due(at)
	second := table.Due(at)
	assert.Equal(t, first, second)
	require.Len(t, table.Jobs, 1, "Due must not mutate the table")
}

func TestNext_ReturnsUpcomingActivation(t *testing.T) {
	table := mustParseTable(t, "23 2 * * 0 dokku cmd arg\n")
	job := table.Jobs[0]

	after := time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC) // Wednesday
	next := job.Next(after)
	assert.Equal(t, time.Date(2023, 1, 8, 2, 23, 0, 0, time.UTC), next.UTC())
}
