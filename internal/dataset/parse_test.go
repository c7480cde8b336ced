package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2013, time.August, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2013-08-01", "2013-08-01T00:00:00Z", "2013/08/01", "08/01/2013", "2013-08", " 2013-08-01 "} {
		t.Run(in, func(t *testing.T) {
			got, err := parseDate(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := parseDate("yesterday")
	assert.Error(t, err)
}

func TestDateInt(t *testing.T) {
	assert.Equal(t, 20000101.0, DateInt(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 19991231.0, DateInt(time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestParseFloat(t *testing.T) {
	v, err := parseFloat(" 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	for _, bad := range []string{"", "abc", "NaN", "Inf"} {
		_, err := parseFloat(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseYear(t *testing.T) {
	y, err := parseYear("2000.0")
	require.NoError(t, err)
	assert.Equal(t, 2000, y)

	_, err = parseYear("2000.5")
	assert.Error(t, err)
}
