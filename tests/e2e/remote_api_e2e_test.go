//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func TestRemoteAPI_PlaybackSession(t *testing.T) {
	baseURL := strings.TrimRight(envOr("E2E_BASE_URL", "http://localhost:8080"), "/")
	devices := envOr("E2E_DEVICES", "1")
	start := envOr("E2E_START", "0")
	end := envOr("E2E_END", fmt.Sprint(time.Now().Unix()))
	client := &http.Client{Timeout: 20 * time.Second}

	t.Run("validate rejects bad devices", func(t *testing.T) {
		status, body := mustJSON(t, client, http.MethodGet, baseURL+"/api/history/validate?devices=x&start=0&end=1", nil)
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d body=%s", status, string(body))
		}
	})

	t.Run("validate sizes window", func(t *testing.T) {
		url := fmt.Sprintf("%s/api/history/validate?devices=%s&start=%s&end=%s", baseURL, devices, start, end)
		status, body := mustJSON(t, client, http.MethodGet, url, nil)
		if status != http.StatusOK {
			t.Fatalf("validate status=%d body=%s", status, string(body))
		}
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("unmarshal validate: %v body=%s", err, string(body))
		}
		if _, ok := out["is_valid"]; !ok {
			t.Fatalf("expected is_valid in validate response, got=%v", out)
		}
	})

	t.Run("load step current close", func(t *testing.T) {
		loadReq := map[string]any{
			"devices": asDeviceList(t, devices),
			"start":   asInt(t, start),
			"end":     asInt(t, end),
		}
		status, loadBody := mustJSON(t, client, http.MethodPost, baseURL+"/api/history/sessions", loadReq)
		if status != http.StatusCreated {
			t.Fatalf("load status=%d body=%s", status, string(loadBody))
		}
		var loaded map[string]any
		if err := json.Unmarshal(loadBody, &loaded); err != nil {
			t.Fatalf("unmarshal load: %v body=%s", err, string(loadBody))
		}
		id, _ := loaded["session_id"].(string)
		if id == "" {
			t.Fatalf("expected session_id, got=%v", loaded)
		}
		session := baseURL + "/api/history/sessions/" + id

		status, nextBody := mustJSON(t, client, http.MethodPost, session+"/next", nil)
		if status != http.StatusOK {
			t.Fatalf("next status=%d body=%s", status, string(nextBody))
		}
		status, prevBody := mustJSON(t, client, http.MethodPost, session+"/prev", nil)
		if status != http.StatusOK {
			t.Fatalf("prev status=%d body=%s", status, string(prevBody))
		}
		var prev map[string]any
		if err := json.Unmarshal(prevBody, &prev); err != nil {
			t.Fatalf("unmarshal prev: %v body=%s", err, string(prevBody))
		}
		if prev["position"] != float64(0) {
			t.Fatalf("expected cursor back at 0, got=%v", prev["position"])
		}

		status, currentBody := mustJSON(t, client, http.MethodGet, session+"/current", nil)
		if status != http.StatusOK {
			t.Fatalf("current status=%d body=%s", status, string(currentBody))
		}
		status, devicesBody := mustJSON(t, client, http.MethodGet, session+"/devices", nil)
		if status != http.StatusOK {
			t.Fatalf("devices status=%d body=%s", status, string(devicesBody))
		}

		status, _ = mustJSON(t, client, http.MethodDelete, session, nil)
		if status != http.StatusNoContent {
			t.Fatalf("close status=%d", status)
		}
		status, _ = mustJSON(t, client, http.MethodGet, session+"/current", nil)
		if status != http.StatusNotFound {
			t.Fatalf("closed session status=%d", status)
		}
	})

	t.Run("kpi", func(t *testing.T) {
		status, kpiBody := mustJSON(t, client, http.MethodGet, baseURL+"/ops/kpi", nil)
		if status != http.StatusOK {
			t.Fatalf("kpi status=%d body=%s", status, string(kpiBody))
		}
		var kpi map[string]any
		if err := json.Unmarshal(kpiBody, &kpi); err != nil {
			t.Fatalf("unmarshal kpi: %v body=%s", err, string(kpiBody))
		}
		if _, ok := kpi["load_total"]; !ok {
			t.Fatalf("expected load_total in kpi response")
		}
	})
}

func mustJSON(t *testing.T, client *http.Client, method, url string, body map[string]any) (int, []byte) {
	t.Helper()
	status, respBody, err := doRequest(client, method, url, body)
	if err != nil {
		t.Fatalf("%s %s request failed: %v", method, url, err)
	}
	return status, respBody
}

func doRequest(client *http.Client, method, url string, body map[string]any) (int, []byte, error) {
	var payloadBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		payloadBytes = b
	}

	var lastStatus int
	var lastBody []byte
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var payload io.Reader
		if len(payloadBytes) > 0 {
			payload = bytes.NewReader(payloadBytes)
		}
		req, err := http.NewRequest(method, url, payload)
		if err != nil {
			return 0, nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
			continue
		}
		lastStatus, lastBody, lastErr = resp.StatusCode, respBody, nil
		if resp.StatusCode >= 500 {
			time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
			continue
		}
		return resp.StatusCode, respBody, nil
	}
	if lastErr != nil {
		return 0, nil, lastErr
	}
	return lastStatus, lastBody, nil
}

func envOr(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func asInt(t *testing.T, raw string) int64 {
	t.Helper()
	var n int64
	if _, err := fmt.Sscan(raw, &n); err != nil {
		t.Fatalf("bad integer %q: %v", raw, err)
	}
	return n
}

func asDeviceList(t *testing.T, raw string) []int64 {
	t.Helper()
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		out = append(out, asInt(t, strings.TrimSpace(part)))
	}
	return out
}
