package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLastSaturday(t *testing.T) {
	saturday := date(2024, time.March, 16)
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{name: "saturday itself", in: saturday.Add(15 * time.Hour), want: saturday},
		{name: "sunday", in: date(2024, time.March, 17), want: saturday},
		{name: "wednesday", in: date(2024, time.March, 20).Add(10 * time.Hour), want: saturday},
		{name: "friday late", in: date(2024, time.March, 22).Add(23*time.Hour + 59*time.Minute), want: saturday},
		{name: "next saturday", in: date(2024, time.March, 23), want: date(2024, time.March, 23)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, LastSaturday(tc.in))
		})
	}
}

func TestWeekContaining(t *testing.T) {
	w := WeekContaining(date(2024, time.March, 20))
	require.Equal(t, date(2024, time.March, 16), w.Start)
	require.Equal(t, date(2024, time.March, 22).Add(23*time.Hour+59*time.Minute), w.End)
	require.True(t, w.Contains(w.Start))
	require.True(t, w.Contains(w.End))
	require.False(t, w.Contains(w.End.Add(time.Second)))
}

func TestPreviousWeek(t *testing.T) {
	w := PreviousWeek(date(2024, time.March, 16).Add(time.Minute))
	require.Equal(t, date(2024, time.March, 9), w.Start)
}

func TestDayRange(t *testing.T) {
	w, err := DayRange(date(2024, time.March, 1).Add(5*time.Hour), date(2024, time.March, 3))
	require.NoError(t, err)
	require.Equal(t, date(2024, time.March, 1), w.Start)
	require.Equal(t, date(2024, time.March, 4).Add(-time.Microsecond), w.End)

	_, err = DayRange(date(2024, time.March, 3), date(2024, time.March, 1))
	require.ErrorIs(t, err, ErrInvalidDateRange)
}
