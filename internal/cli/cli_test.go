package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeHistory writes 40 winter days of Berlin around 2C with one 25C spike
// and a short Cairo series.
func writeHistory(t *testing.T) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("city,timestamp,temperature,season\n")
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		temp := float64(i%5) - 1
		if i == 35 {
			temp = 25
		}
		fmt.Fprintf(&b, "Berlin,%s,%.1f,winter\n", start.AddDate(0, 0, i).Format("2006-01-02"), temp)
	}
	fmt.Fprintf(&b, "Cairo,2024-01-01,18,winter\nCairo,2024-01-02,20,winter\n")

	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ANOMALY_CONFIG", "")

	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--no-color", "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestBatch(t *testing.T) {
	out, err := run(t, "batch", "--data", writeHistory(t), "--workers", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Scored 42 readings from 2 cities using 2 workers.")
	assert.Contains(t, out, "2024-02-05")
	assert.Contains(t, out, "Berlin: 1 anomalies")
	assert.Contains(t, out, "Total: 1 of 42 readings anomalous")
}

func TestBaselinesAndSummary(t *testing.T) {
	path := writeHistory(t)

	out, err := run(t, "baselines", "--data", path, "--city", "Cairo")
	require.NoError(t, err)
	assert.Contains(t, out, "19.00")
	assert.NotContains(t, out, "Berlin")

	out, err = run(t, "summary", "--data", path, "Cairo", "Berlin")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Cairo"), strings.Index(out, "Berlin"))

	_, err = run(t, "summary", "--data", path, "Tokyo")
	require.Error(t, err)
}

func TestMissingDataset(t *testing.T) {
	_, err := run(t, "batch", "--data", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestLive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geo", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Atlantis" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[{"lat":52.5,"lon":13.4}]`)
	})
	mux.HandleFunc("/weather", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"main":{"temp":31}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Setenv("ANOMALY_GEOCODE_URL", srv.URL+"/geo")
	t.Setenv("ANOMALY_WEATHER_URL", srv.URL+"/weather")
	t.Setenv("ANOMALY_OPENWEATHER_API_KEY", "cli-key")
	t.Setenv("ANOMALY_RATE_LIMIT_RPS", "0")

	path := writeHistory(t)
	for _, extra := range [][]string{nil, {"--sequential"}} {
		args := append([]string{"live", "--data", path, "Berlin,Atlantis"}, extra...)
		out, err := run(t, args...)
		require.NoError(t, err)

		assert.Contains(t, out, "FAILED (not_found)")
		assert.Contains(t, out, "2 cities, 1 failed")
		assert.Contains(t, out, "31.00")
	}
}

func TestLiveWithoutCredential(t *testing.T) {
	t.Setenv("ANOMALY_OPENWEATHER_API_KEY", "")
	t.Setenv("OPENWEATHER_API_KEY", "")

	_, err := run(t, "live", "--data", writeHistory(t), "Berlin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential")
}
