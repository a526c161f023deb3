package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeasonOf(t *testing.T) {
	want := map[time.Month]Season{
		time.December:  SeasonWinter,
		time.January:   SeasonWinter,
		time.February:  SeasonWinter,
		time.March:     SeasonSpring,
		time.April:     SeasonSpring,
		time.May:       SeasonSpring,
		time.June:      SeasonSummer,
		time.July:      SeasonSummer,
		time.August:    SeasonSummer,
		time.September: SeasonAutumn,
		time.October:   SeasonAutumn,
		time.November:  SeasonAutumn,
	}
	for m, s := range want {
		assert.Equal(t, s, SeasonOf(m), m.String())
	}
}

func TestParseSeason(t *testing.T) {
	s, err := ParseSeason(" Summer ")
	require.NoError(t, err)
	assert.Equal(t, SeasonSummer, s)

	_, err = ParseSeason("monsoon")
	require.ErrorIs(t, err, ErrMalformedInput)

	_, err = ParseSeason("")
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestAsyncDeliversResult(t *testing.T) {
	res := <-Async(func() (int, error) { return 42, nil })
	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)

	boom := errors.New("boom")
	res = <-Async(func() (int, error) { return 0, boom })
	assert.ErrorIs(t, res.Err, boom)
}

func TestAsyncRecoversPanic(t *testing.T) {
	res := <-Async(func() (string, error) { panic("kaboom") })
	require.ErrorIs(t, res.Err, ErrTaskPanic)
	assert.Contains(t, res.Err.Error(), "kaboom")
}

func TestSeasonBaselineJSONUndefinedStd(t *testing.T) {
	raw, err := json.Marshal(SeasonBaseline{City: "Rome", Season: SeasonWinter, Mean: 8, Std: math.NaN(), Count: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Rome","season":"winter","mean":8,"std":null,"count":1}`, string(raw))

	raw, err = json.Marshal(SeasonBaseline{City: "Rome", Season: SeasonWinter, Mean: 8, Std: 1.5, Count: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Rome","season":"winter","mean":8,"std":1.5,"count":3}`, string(raw))
}

func TestVerdictJSONBounds(t *testing.T) {
	table, err := NewBaselineTable([]SeasonBaseline{{City: "Oslo", Season: SeasonWinter, Mean: 0, Std: 0, Count: 4}})
	require.NoError(t, err)

	raw, err := json.Marshal(Judge(0, "Oslo", SeasonWinter, table))
	require.NoError(t, err)
	assert.JSONEq(t, `{"anomaly":false,"hasBaseline":true,"lower":0,"upper":0}`, string(raw))

	raw, err = json.Marshal(Judge(0, "Lima", SeasonWinter, table))
	require.NoError(t, err)
	assert.JSONEq(t, `{"anomaly":false,"hasBaseline":false}`, string(raw))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: Atlantis", ErrNotFound), KindNotFound},
		{&TransportError{Op: "geocode", StatusCode: 401, Message: "Invalid API key"}, KindTransport},
		{fmt.Errorf("wrapped: %w", &TransportError{Op: "current weather", Err: errors.New("dial tcp")}), KindTransport},
		{fmt.Errorf("%w: empty key", ErrConfig), KindConfig},
		{fmt.Errorf("%w: nil map", ErrTaskPanic), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err))
	}
}

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{Op: "geocode", StatusCode: 401, Message: "Invalid API key"}
	assert.Equal(t, "geocode: status 401: Invalid API key", err.Error())
	assert.True(t, errors.Is(err, ErrTransport))
}
