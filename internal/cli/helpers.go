package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tutu-network/peernet/internal/daemon"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "Status API address host:port (default from config)")
}

var apiAddr string

var httpClient = &http.Client{Timeout: 10 * time.Second}

// apiBaseURL returns the status API root of the local daemon.
func apiBaseURL() (string, error) {
	if apiAddr != "" {
		return "http://" + apiAddr, nil
	}
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return "", err
	}
	return "http://" + net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port)), nil
}

// apiError is the JSON error body written by the status API.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// callAPI sends a request to the daemon and decodes a JSON reply into out
// (skipped when out is nil).
func callAPI(method, path string, query url.Values, out interface{}) error {
	base, err := apiBaseURL()
	if err != nil {
		return err
	}
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? (peernet serve): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var e apiError
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("%s %s: %s", method, path, e.Error.Message)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ago renders a timestamp relative to now for table output.
func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String() + " ago"
}
