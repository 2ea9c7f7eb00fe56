package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	var cfg struct {
		TTL   Duration `json:"ttl"`
		Reset Duration `json:"reset"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"ttl":"168h","reset":3600000000000}`), &cfg))
	assert.Equal(t, 7*24*time.Hour, cfg.TTL.Duration)
	assert.Equal(t, time.Hour, cfg.Reset.Duration)
}

func TestDuration_UnmarshalJSON_Invalid(t *testing.T) {
	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))
}
