package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_DefaultFingerprintRoundTrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	rt, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	client := &http.Client{Transport: rt}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestNew_Fingerprints(t *testing.T) {
	tests := []struct {
		fingerprint Fingerprint
		wantErr     bool
	}{
		{FingerprintDefault, false},
		{FingerprintChrome, false},
		{"firefox", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.fingerprint), func(t *testing.T) {
			rt, err := New(Options{Fingerprint: tt.fingerprint})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && rt == nil {
				t.Error("expected non-nil round tripper")
			}
		})
	}
}
