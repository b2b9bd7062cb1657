package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states/binary_sensor.1f_inner_door_contact" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer ha-token" {
			t.Errorf("authorization: %s", auth)
		}
		json.NewEncoder(w).Encode(State{
			EntityID: "binary_sensor.1f_inner_door_contact",
			State:    "off",
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIURL: srv.URL + "/api", Token: "ha-token"})
	state, err := c.GetState(context.Background(), "binary_sensor.1f_inner_door_contact")
	if err != nil {
		t.Fatal(err)
	}
	if state.State != "off" {
		t.Errorf("state: %s", state.State)
	}
}

func TestGetState_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "entity not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIURL: srv.URL + "/api", Token: "ha-token"})
	if _, err := c.GetState(context.Background(), "binary_sensor.missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}
