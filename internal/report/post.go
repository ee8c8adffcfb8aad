package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Post sends the envelope to the collection endpoint as JSON. Any
// non-2xx response is an error; the endpoint body is not interpreted.
func Post(url string, env *Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("posting report: endpoint returned %s", resp.Status)
	}

	log.Info().
		Str("url", url).
		Str("run_id", env.RunID).
		Strs("reports", env.Names()).
		Int("bytes", len(body)).
		Msg("report delivered")
	return nil
}
