package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"medication-adherence/internal/ports/notify"
	"medication-adherence/internal/router"
)

func TestHTTP_EndToEnd_CaregiverFlow(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	ownerID := "owner-1"
	caregiverID := "caregiver-1"

	// 1) Owner crea paciente
	patientID := createPatient(t, ts.URL, ownerID, map[string]any{
		"id":       "p-asha",
		"name":     "Asha",
		"timezone": "Asia/Kolkata",
	})

	// 2) Owner define plan: Lisinopril con 1 unidad, Metformin sin stock
	{
		st, body := doReq(t, ts.URL, "PUT", "/patients/"+patientID+"/plan", ownerID, map[string]any{
			"medications": []map[string]any{
				{"name": "Lisinopril", "dosage": "10mg", "times": []string{"08:00"}, "food": "anytime", "stock": 1, "low_stock_threshold": 2},
				{"name": "Metformin", "dosage": "500mg", "times": []string{"09:00", "21:00"}, "food": "after", "stock": 0},
			},
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 setup plan, got %d body=%s", st, string(body))
		}
	}

	// 3) Cuidador todavía no tiene acceso
	{
		st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alerts", caregiverID, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 before caregiver is listed, got %d", st)
		}
	}

	// 4) Owner agrega cuidador
	{
		st, body := doReq(t, ts.URL, "PATCH", "/patients/"+patientID, ownerID, map[string]any{
			"caregiver_user_ids": []string{caregiverID},
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 patch patient, got %d body=%s", st, string(body))
		}
	}

	// 5) Cuidador ve el perfil pero no puede tocar el plan
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID, caregiverID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 get patient by caregiver, got %d body=%s", st, string(body))
		}
		st, _ = doReq(t, ts.URL, "PUT", "/patients/"+patientID+"/plan", caregiverID, map[string]any{"medications": []any{}})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 plan by caregiver, got %d", st)
		}
	}

	// 6) Cuidador confirma la última unidad de Lisinopril
	{
		st, body := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/doses/confirm", caregiverID, map[string]any{
			"medication": "Lisinopril",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 confirm, got %d body=%s", st, string(body))
		}
		var res struct {
			Outcome         string `json:"outcome"`
			Remaining       *int   `json:"remaining"`
			AlreadyResolved bool   `json:"already_resolved"`
			Dose            struct {
				Key string `json:"key"`
			} `json:"dose"`
		}
		mustJSON(t, body, &res)
		if res.Outcome != "resolved" || res.Remaining == nil || *res.Remaining != 0 || res.AlreadyResolved {
			t.Fatalf("unexpected confirm result: %s", string(body))
		}

		// 7) Segunda confirmación: no-op, stock intacto
		st, body = doReq(t, ts.URL, "POST", "/patients/"+patientID+"/doses/confirm", caregiverID, map[string]any{
			"medication": "Lisinopril",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 duplicate confirm, got %d body=%s", st, string(body))
		}
		mustJSON(t, body, &res)
		if !res.AlreadyResolved {
			t.Fatalf("expected already_resolved, got %s", string(body))
		}
	}

	// 8) Metformin sin stock: 409 con código propio
	{
		st, body := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/doses/confirm", caregiverID, map[string]any{
			"medication": "Metformin",
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 insufficient stock, got %d body=%s", st, string(body))
		}
		var e struct {
			Code string `json:"code"`
		}
		mustJSON(t, body, &e)
		if e.Code != "insufficient_stock" {
			t.Fatalf("expected insufficient_stock code, got %s", string(body))
		}
	}

	// 9) Reposición y signos vitales
	{
		st, body := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/inventory/Metformin/restock", caregiverID, map[string]any{"units": 30})
		if st != http.StatusOK {
			t.Fatalf("expected 200 restock, got %d body=%s", st, string(body))
		}
		st, body = doReq(t, ts.URL, "POST", "/patients/"+patientID+"/vitals", caregiverID, map[string]any{
			"type": "blood-pressure", "value": "120/80",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 vital, got %d body=%s", st, string(body))
		}
		st, body = doReq(t, ts.URL, "POST", "/patients/"+patientID+"/vitals", caregiverID, map[string]any{
			"type": "blood-pressure", "value": "high",
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 bad vital, got %d body=%s", st, string(body))
		}
	}

	// 10) Alertas activas, reconocimiento y resumen
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alerts?active=true", caregiverID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 alerts, got %d body=%s", st, string(body))
		}
		var list struct {
			Overall string `json:"overall"`
			Alerts  []struct {
				ID   string `json:"id"`
				Kind string `json:"kind"`
			} `json:"alerts"`
		}
		mustJSON(t, body, &list)
		if len(list.Alerts) == 0 || list.Overall != "high" {
			t.Fatalf("expected active high alerts, got %s", string(body))
		}

		st, body = doReq(t, ts.URL, "GET", "/patients/"+patientID+"/summary", caregiverID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), "stock") {
			t.Fatalf("expected summary mentioning stock, got %d body=%s", st, string(body))
		}

		for _, a := range list.Alerts {
			st, body = doReq(t, ts.URL, "POST", "/patients/"+patientID+"/alerts/"+a.ID+"/ack", caregiverID, nil)
			if st != http.StatusOK {
				t.Fatalf("expected 200 ack, got %d body=%s", st, string(body))
			}
		}

		st, body = doReq(t, ts.URL, "GET", "/patients/"+patientID+"/alerts?active=true", caregiverID, nil)
		mustJSON(t, body, &list)
		if st != http.StatusOK || len(list.Alerts) != 0 || list.Overall != "low" {
			t.Fatalf("expected no active alerts after ack, got %d body=%s", st, string(body))
		}
	}

	// 11) Auditoría: la confirmación quedó atribuida al cuidador
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/events?types=DOSE_CONFIRMED", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 events, got %d body=%s", st, string(body))
		}
		var evs []struct {
			Type      string `json:"type"`
			ActorType string `json:"actor_type"`
			ActorID   string `json:"actor_id"`
		}
		mustJSON(t, body, &evs)
		if len(evs) != 1 || evs[0].ActorID != caregiverID || evs[0].ActorType != "CAREGIVER_USER" {
			t.Fatalf("unexpected audit events: %s", string(body))
		}
	}
}

func TestHTTP_SnoozeByDoseKey(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	ownerID := "owner-2"
	patientID := createPatient(t, ts.URL, ownerID, map[string]any{"name": "Ravi", "timezone": "UTC"})

	st, body := doReq(t, ts.URL, "PUT", "/patients/"+patientID+"/plan", ownerID, map[string]any{
		"medications": []map[string]any{{"name": "Atorvastatin", "dosage": "20mg", "times": []string{"21:00"}, "food": "anytime"}},
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 setup plan, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "POST", "/patients/"+patientID+"/tick", ownerID, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 tick, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/patients/"+patientID+"/observation", ownerID, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 observation, got %d body=%s", st, string(body))
	}
	var obs struct {
		PendingDoses []struct {
			Key string `json:"key"`
		} `json:"pending_doses"`
	}
	mustJSON(t, body, &obs)
	if len(obs.PendingDoses) == 0 {
		t.Fatalf("expected a pending dose after tick, got %s", string(body))
	}

	key := url.PathEscape(obs.PendingDoses[0].Key)
	st, body = doReq(t, ts.URL, "POST", "/patients/"+patientID+"/doses/"+key+"/snooze", ownerID, map[string]any{"minutes": 10})
	if st != http.StatusOK {
		t.Fatalf("expected 200 snooze, got %d body=%s", st, string(body))
	}

	st, _ = doReq(t, ts.URL, "POST", "/patients/"+patientID+"/doses/"+key+"/snooze", ownerID, map[string]any{"minutes": 0})
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 zero-minute snooze, got %d", st)
	}
}

type captureDispatcher struct {
	mu  sync.Mutex
	got []notify.Action
}

func (c *captureDispatcher) Dispatch(_ context.Context, _ string, actions []notify.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, actions...)
	return nil
}

func TestHTTP_TickDeliversActions(t *testing.T) {
	disp := &captureDispatcher{}
	ts := httptest.NewServer(router.NewRouter(router.Options{Dispatcher: disp}))
	defer ts.Close()

	ownerID := "owner-3"
	patientID := createPatient(t, ts.URL, ownerID, map[string]any{"name": "Meera", "timezone": "UTC"})

	st, body := doReq(t, ts.URL, "PUT", "/patients/"+patientID+"/plan", ownerID, map[string]any{
		"medications": []map[string]any{{"name": "Amlodipine", "dosage": "5mg", "times": []string{"12:00"}, "food": "anytime", "stock": 0}},
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 setup plan, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "POST", "/patients/"+patientID+"/tick", ownerID, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 tick, got %d body=%s", st, string(body))
	}
	var res struct {
		Actions []struct {
			Kind string `json:"kind"`
		} `json:"actions"`
	}
	mustJSON(t, body, &res)

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.got) == 0 || len(disp.got) != len(res.Actions) {
		t.Fatalf("expected dispatched actions to match response, got %d dispatched body=%s", len(disp.got), string(body))
	}
	found := false
	for _, a := range disp.got {
		if a.Kind == "suggest-reorder" && a.Medication == "Amlodipine" && a.PatientID == patientID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected suggest-reorder for Amlodipine, got %+v", disp.got)
	}
}

func TestHTTP_Report(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	ownerID := "owner-4"
	patientID := createPatient(t, ts.URL, ownerID, map[string]any{"name": "Ravi", "timezone": "UTC"})

	st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/report?days=abc", ownerID, nil)
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 bad days, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/patients/"+patientID+"/report?days=365", ownerID, nil)
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 days over retention, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/patients/"+patientID+"/report", "stranger", nil)
	if st != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/patients/"+patientID+"/report?days=14", ownerID, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 report, got %d body=%s", st, string(body))
	}
	var rep struct {
		PatientID   string  `json:"patient_id"`
		PeriodDays  int     `json:"period_days"`
		OverallRate float64 `json:"overall_rate"`
	}
	mustJSON(t, body, &rep)
	if rep.PatientID != patientID || rep.PeriodDays != 14 || rep.OverallRate != 100 {
		t.Fatalf("unexpected report: %s", string(body))
	}
}

func TestHTTP_RequiresUser(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	st, _ := doReq(t, ts.URL, "GET", "/patients/anything/alerts", "", nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", st)
	}

	st, _ = doReq(t, ts.URL, "GET", "/health", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", st)
	}

	st, body := doReq(t, ts.URL, "GET", "/swagger/doc.json", "", nil)
	if st != http.StatusOK || !strings.Contains(string(body), "/patients/{patientID}/doses/confirm") {
		t.Fatalf("expected swagger doc, got %d", st)
	}
}

func createPatient(t *testing.T, baseURL, userID string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/patients", userID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create patient, got %d body=%s", st, string(body))
	}
	var out struct {
		ID string `json:"id"`
	}
	mustJSON(t, body, &out)
	if out.ID == "" {
		t.Fatalf("patient id empty, body=%s", string(body))
	}
	return out.ID
}

func mustJSON(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("json unmarshal: %v body=%s", err, string(body))
	}
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
