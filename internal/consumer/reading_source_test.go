package consumer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Nordur12/SmartAquaria/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const devicesFixture = `{
  "d2": {
    "aquariumId": "a2",
    "userId": "u2",
    "ph": {"pHLevel": 7.1},
    "turbidity": {"condition": "CLEAR"},
    "temperature": {"temperature": 25.5}
  },
  "d1": {
    "aquariumId": "a1",
    "userId": "u1",
    "ph": {"pHLevel": 9.0}
  },
  "d3": {
    "userId": "u3",
    "turbidity": {"condition": ""}
  }
}`

func TestFirebaseReadingSource_FetchAll(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.URL.Query().Get("auth")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(devicesFixture))
	}))
	defer server.Close()

	source := NewFirebaseReadingSource(server.URL+"/", "secret", time.Second, zap.NewNop())

	readings, err := source.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/devices.json", gotPath)
	assert.Equal(t, "secret", gotAuth)

	require.Len(t, readings, 3)
	assert.Equal(t, "d1", readings[0].DeviceID)
	assert.Equal(t, "d2", readings[1].DeviceID)
	assert.Equal(t, "d3", readings[2].DeviceID)

	d1 := readings[0]
	assert.Equal(t, "u1", d1.UserID)
	assert.Equal(t, "a1", d1.AquariumID)
	require.NotNil(t, d1.PHLevel)
	assert.Equal(t, 9.0, *d1.PHLevel)
	assert.Nil(t, d1.TurbidityCondition)
	assert.Nil(t, d1.Temperature)

	d2 := readings[1]
	require.NotNil(t, d2.TurbidityCondition)
	assert.Equal(t, models.TurbidityClear, *d2.TurbidityCondition)
	require.NotNil(t, d2.Temperature)
	assert.Equal(t, 25.5, *d2.Temperature)

	d3 := readings[2]
	assert.False(t, d3.Evaluable())
	assert.Nil(t, d3.TurbidityCondition)
}

func TestFirebaseReadingSource_EmptyDatabase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`null`))
	}))
	defer server.Close()

	source := NewFirebaseReadingSource(server.URL, "", time.Second, zap.NewNop())

	readings, err := source.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestFirebaseReadingSource_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := NewFirebaseReadingSource(server.URL, "bad", time.Second, zap.NewNop())

	_, err := source.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}

func TestFirebaseReadingSource_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	source := NewFirebaseReadingSource(url, "", 200*time.Millisecond, zap.NewNop())

	_, err := source.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}
