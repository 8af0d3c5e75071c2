package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/custody-engine/generic"
)

func TestPeriod_HalfOpen(t *testing.T) {
	// GIVEN: A period covering one week
	p, err := generic.NewPeriod(generic.MustParseDate("2023-10-07"), generic.MustParseDate("2023-10-14"))
	require.NoError(t, err)

	// THEN: Start is in, End is out
	assert.Equal(t, 7, p.Len())
	assert.True(t, p.Contains(generic.MustParseDate("2023-10-07")))
	assert.True(t, p.Contains(generic.MustParseDate("2023-10-13")))
	assert.False(t, p.Contains(generic.MustParseDate("2023-10-14")))

	days := p.Days()
	require.Len(t, days, 7)
	assert.Equal(t, "2023-10-07", days[0].String())
	assert.Equal(t, "2023-10-13", days[6].String())
	assert.Equal(t, "[2023-10-07, 2023-10-14)", p.String())
}

func TestNewPeriod_RejectsReversedBounds(t *testing.T) {
	_, err := generic.NewPeriod(generic.MustParseDate("2023-10-14"), generic.MustParseDate("2023-10-07"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	empty, err := generic.NewPeriod(generic.MustParseDate("2023-10-07"), generic.MustParseDate("2023-10-07"))
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
	assert.Empty(t, empty.Days())
	assert.Empty(t, empty.Windows())
}

func TestMonthPeriod(t *testing.T) {
	p := generic.MonthPeriod(2023, time.November)
	assert.Equal(t, "2023-11-01", p.Start.String())
	assert.Equal(t, "2023-12-01", p.End.String())
	assert.Equal(t, 30, p.Len())
}

func TestPeriod_Windows(t *testing.T) {
	// GIVEN: A range crossing a year boundary
	p := generic.Period{Start: generic.MustParseDate("2023-11-20"), End: generic.MustParseDate("2024-02-01")}

	// THEN: Every touched month, but not the month of the exclusive end
	var got []string
	for _, w := range p.Windows() {
		got = append(got, w.String())
	}
	assert.Equal(t, []string{"2023-11", "2023-12", "2024-01"}, got)
}

func TestWindowsBetween_Inclusive(t *testing.T) {
	ws := generic.WindowsBetween(generic.MustParseDate("2023-10-31"), generic.MustParseDate("2023-11-01"))
	require.Len(t, ws, 2)
	assert.Equal(t, generic.Window{Year: 2023, Month: time.October}, ws[0])
	assert.Equal(t, generic.Window{Year: 2023, Month: time.November}, ws[1])

	assert.Nil(t, generic.WindowsBetween(generic.MustParseDate("2023-11-01"), generic.MustParseDate("2023-10-31")))
}

func TestWindow(t *testing.T) {
	w, err := generic.ParseWindow("2023-12")
	require.NoError(t, err)
	assert.Equal(t, "2023-12", w.String())
	assert.Equal(t, "2024-01", w.Next().String())
	assert.True(t, w.Contains(generic.MustParseDate("2023-12-31")))
	assert.False(t, w.Contains(generic.MustParseDate("2024-01-01")))
	assert.Equal(t, w, generic.MustParseDate("2023-12-15").Window())

	_, err = generic.ParseWindow("2023-13")
	assert.Error(t, err)
}
