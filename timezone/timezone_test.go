package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveZone(t *testing.T) {
	tests := []struct {
		spec       string
		wantOK     bool
		wantOffset int // seconds east of UTC on 2024-01-15
	}{
		{spec: "", wantOK: true, wantOffset: 0},
		{spec: "UTC", wantOK: true, wantOffset: 0},
		{spec: "America/Chicago", wantOK: true, wantOffset: -6 * 3600},
		{spec: "Asia/Kolkata", wantOK: true, wantOffset: 5*3600 + 1800},
		{spec: "UTC+5.75", wantOK: true, wantOffset: 5*3600 + 45*60},
		{spec: "UTC-3.5", wantOK: true, wantOffset: -(3*3600 + 1800)},
		{spec: "UTC+14", wantOK: true, wantOffset: 14 * 3600},
		{spec: "UTC+0", wantOK: true, wantOffset: 0},
		{spec: "UTC+15", wantOK: false},
		{spec: "UTC+5.2", wantOK: false},
		{spec: "UTC+abc", wantOK: false},
		{spec: "Mars/Olympus_Mons", wantOK: false},
		{spec: "Local", wantOK: false},
	}

	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			loc, ok := ResolveZone(tt.spec).Get()
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			_, offset := at.In(loc).Zone()
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestZoneOrUTC_FallsBack(t *testing.T) {
	assert.Equal(t, time.UTC, ZoneOrUTC("Not/AZone"))
	assert.Equal(t, "America/Chicago", ZoneOrUTC("America/Chicago").String())
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("Europe/Berlin"))
	assert.True(t, IsValid("UTC-9.5"))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("UTC+13.5"))
}

func TestManualOffsets_AllResolve(t *testing.T) {
	specs := ManualOffsets()
	require.NotEmpty(t, specs)
	assert.Equal(t, "UTC-12", specs[0])
	assert.Equal(t, "UTC+14", specs[len(specs)-1])
	assert.Contains(t, specs, "UTC+5.75")
	assert.Contains(t, specs, "UTC+12.75")

	for _, spec := range specs {
		assert.True(t, IsValid(spec), spec)
	}
}

func TestZonedInstant(t *testing.T) {
	chicago := ZoneOrUTC("America/Chicago")

	got, err := ZonedInstant("2024-07-04 09:30:00", chicago)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 4, 14, 30, 0, 0, time.UTC), got.UTC())

	_, err = ZonedInstant("July 4th", chicago)
	assert.Error(t, err)
}

func TestOffsetBetween_DST(t *testing.T) {
	chicago := ZoneOrUTC("America/Chicago")
	summer := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	winter := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	inDST := OffsetBetween(chicago, time.UTC, summer)
	inStandard := OffsetBetween(chicago, time.UTC, winter)

	assert.Equal(t, -5*3600, inDST)
	assert.Equal(t, -6*3600, inStandard)
	assert.Equal(t, 3600, inDST-inStandard)
	assert.Equal(t, 5*3600, OffsetBetween(time.UTC, chicago, summer))
}

func TestHumanizeOffset(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{7200, "+2 hours"},
		{-12600, "-3.5 hours"},
		{20700, "+5.75 hours"},
		{3600, "+1 hour"},
		{-3600, "-1 hour"},
		{0, "+0 hours"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, HumanizeOffset(tt.seconds))
		})
	}
}
