package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalString(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"45s"`), &d))
	require.Equal(t, 45*time.Second, d.Duration)
}

func TestDuration_UnmarshalNanos(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`15000000000`), &d))
	require.Equal(t, 15*time.Second, d.Duration)
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	var d Duration
	require.Error(t, json.Unmarshal([]byte(`"not a duration"`), &d))
	require.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	d := Duration{30 * time.Second}
	data, err := json.Marshal(d)
	require.NoError(t, err)

	var got Duration
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, d.Duration, got.Duration)
}
