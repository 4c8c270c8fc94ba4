package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ofertascauca/senabot/pkg/config"
)

func TestNewWhatsAppCloudSender(t *testing.T) {
	tests := []struct {
		name          string
		accessToken   string
		phoneNumberID string
		wantErr       bool
	}{
		{
			name:          "Valid credentials",
			accessToken:   "test_token",
			phoneNumberID: "123456789",
			wantErr:       false,
		},
		{
			name:          "Missing access token",
			accessToken:   "",
			phoneNumberID: "123456789",
			wantErr:       true,
		},
		{
			name:          "Missing phone number ID",
			accessToken:   "test_token",
			phoneNumberID: "",
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.WhatsAppConfig{
				AccessToken:   tt.accessToken,
				PhoneNumberID: tt.phoneNumberID,
				GraphBaseURL:  "https://graph.facebook.com/v19.0",
			}

			sender, err := NewWhatsAppCloudSender(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWhatsAppCloudSender() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && sender == nil {
				t.Error("NewWhatsAppCloudSender() returned nil sender")
			}
		})
	}
}

func TestWhatsAppCloudSender_SendText(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotPayload whatsAppTextMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.test123"}]}`))
	}))
	defer server.Close()

	sender, err := NewWhatsAppCloudSender(&config.WhatsAppConfig{
		AccessToken:   "test_token",
		PhoneNumberID: "555000",
		GraphBaseURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("NewWhatsAppCloudSender() error = %v", err)
	}

	id, err := sender.SendText(context.Background(), "573001112233", "Hola 👋")
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if id != "wamid.test123" {
		t.Errorf("SendText() id = %q, want %q", id, "wamid.test123")
	}
	if gotPath != "/555000/messages" {
		t.Errorf("request path = %q, want %q", gotPath, "/555000/messages")
	}
	if gotAuth != "Bearer test_token" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if gotPayload.To != "573001112233" || gotPayload.Text.Body != "Hola 👋" {
		t.Errorf("payload = %+v", gotPayload)
	}
	if gotPayload.MessagingProduct != "whatsapp" || gotPayload.Type != "text" {
		t.Errorf("payload envelope = %+v", gotPayload)
	}
}

func TestWhatsAppCloudSender_SendTextServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	sender, err := NewWhatsAppCloudSender(&config.WhatsAppConfig{
		AccessToken:   "test_token",
		PhoneNumberID: "555000",
		GraphBaseURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("NewWhatsAppCloudSender() error = %v", err)
	}

	if _, err := sender.SendText(context.Background(), "573001112233", "hola"); err == nil {
		t.Fatal("SendText() expected error on server failure")
	}
	if calls < 2 {
		t.Errorf("expected retries, got %d calls", calls)
	}
}
