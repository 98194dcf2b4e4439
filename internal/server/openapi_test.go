package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

func TestHandleOpenAPI(t *testing.T) {
	h := handleOpenAPI()
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()

	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("content-type = %q, want application/json", got)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"openapi": "3.0.3"`) {
		t.Fatalf("body missing openapi version")
	}
	for _, path := range []string{"/healthz", "/api/match", "/api/match/score", "/api/match/win", "/api/match/end", "/api/events", "/api/ws"} {
		if !strings.Contains(body, `"`+path+`"`) {
			t.Errorf("body missing %s path", path)
		}
	}
}

func TestSwaggerUI(t *testing.T) {
	a := newTestApp(t)

	w := a.do(t, http.MethodGet, "/docs/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); !strings.Contains(got, "text/html") {
		t.Fatalf("content-type = %q, want text/html", got)
	}
	if body := w.Body.String(); !strings.Contains(body, "/openapi.json") {
		t.Fatalf("body missing /openapi.json")
	}
}

// The documented match shape has to track what Match actually encodes.
func TestMatchDocMatchesWire(t *testing.T) {
	m := scoreboard.Match{
		ID:          "m1",
		Kind:        scoreboard.KindDoubles,
		SideA:       []string{"Ana", "Cami"},
		SideB:       []string{"Beto", "Dani"},
		PointsToWin: 11,
		Winner:      scoreboard.TeamA,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("encoding match: %v", err)
	}
	var wire map[string]any
	json.Unmarshal(data, &wire)

	var documented []string
	typ := reflect.TypeOf(matchDoc{})
	for i := range typ.NumField() {
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		documented = append(documented, name)
	}

	var encoded []string
	for k := range wire {
		encoded = append(encoded, k)
	}
	slices.Sort(documented)
	slices.Sort(encoded)
	if !slices.Equal(documented, encoded) {
		t.Errorf("documented fields %v, encoded %v", documented, encoded)
	}
}
