package units

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "1"},
		{"1", "1"},
		{"m s-2", "m s-2"},
		{"m/s", "m s-1"},
		{"m2/s", "m2 s-1"},
		{"W m-2 K-4", "W m-2 K-4"},
		{"kg.m^-3", "kg m-3"},
		{"m**2 s**-1", "m2 s-1"},
		{"J K-1 mol-1", "J K-1 mol-1"},
		{"1/s", "s-1"},
		{"m m-1", "1"},
	}
	for _, tt := range tests {
		u, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, u.String(), tt.in)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"2 m", "m/s/s", "m^x", "weeks since 2000-01-01", "hours since yesterday"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestArithmetic(t *testing.T) {
	r := MustParse("J K-1 mol-1")
	mw := MustParse("kg mol-1")
	assert.True(t, r.Div(mw).Equal(MustParse("J K-1 kg-1")))
	assert.True(t, MustParse("m s-1").Mul(MustParse("hPa")).Equal(MustParse("hPa m s-1")))
	assert.True(t, MustParse("m").Pow(2).Equal(MustParse("m2")))
	assert.True(t, MustParse("m").Div(MustParse("m")).IsDimensionless())
	assert.False(t, MustParse("m").Equal(MustParse("s")))
}

func TestTimeReference(t *testing.T) {
	u, err := Parse("hours since 1900-01-01 00:00:00")
	require.NoError(t, err)

	step, epoch, ok := u.TimeReference()
	require.True(t, ok)
	assert.Equal(t, time.Hour, step)
	assert.Equal(t, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), epoch)

	d, ok := u.Date(48)
	require.True(t, ok)
	assert.Equal(t, time.Date(1900, 1, 3, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "hours since 1900-01-01 00:00:00", u.String())

	_, ok = MustParse("s").Date(1)
	assert.False(t, ok)
	assert.False(t, u.IsDimensionless())
	assert.True(t, u.Mul(Dimensionless).Equal(MustParse("hours")))
}
