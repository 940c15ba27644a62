package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	base, err := url.Parse(ts.URL)
	require.NoError(t, err)
	return NewClient(base, ts.Client())
}

func TestClientFromEnvironment(t *testing.T) {
	cases := map[string]string{
		"":                      "http://127.0.0.1:8188",
		"0.0.0.0:9000":          "http://0.0.0.0:9000",
		"https://example.com":   "https://example.com:443",
		"http://10.0.0.1:12345": "http://10.0.0.1:12345",
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("STYLEGAN_HOST", value)

			client, err := ClientFromEnvironment()
			require.NoError(t, err)

			if client.base.String() != expect {
				t.Errorf("base = %q, erwartet %q", client.base.String(), expect)
			}
		})
	}
}

func TestClientGenerate(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unerwartete Anfrage %s %s", r.Method, r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "stylegan/") {
			t.Errorf("User-Agent = %q", ua)
		}

		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}

		want := GenerateRequest{Model: "ffhq", Seed: 7, Batch: 2, Truncation: 0.7, KeepAlive: &Duration{0}}
		if diff := cmp.Diff(want, req); diff != "" {
			t.Errorf("Request weicht ab (-erwartet +erhalten):\n%s", diff)
		}

		json.NewEncoder(w).Encode(GenerateResponse{
			Model:  req.Model,
			Seed:   req.Seed,
			Images: []ImageData{[]byte("a"), []byte("b")},
		})
	})

	resp, err := client.Generate(context.Background(), &GenerateRequest{Model: "ffhq", Seed: 7, Batch: 2, Truncation: 0.7, KeepAlive: &Duration{0}})
	require.NoError(t, err)

	if len(resp.Images) != 2 || string(resp.Images[1]) != "b" {
		t.Errorf("Images = %q", resp.Images)
	}
	if resp.Seed != 7 {
		t.Errorf("Seed = %d, erwartet 7", resp.Seed)
	}
}

func TestClientStatusError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		expect StatusError
	}{
		{
			name:   "json",
			status: http.StatusNotFound,
			body:   `{"error":"model 'x' not found"}`,
			expect: StatusError{StatusCode: 404, Status: "404 Not Found", ErrorMessage: "model 'x' not found"},
		},
		{
			name:   "plain",
			status: http.StatusInternalServerError,
			body:   "boom",
			expect: StatusError{StatusCode: 500, Status: "500 Internal Server Error", ErrorMessage: "boom"},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.Show(context.Background(), &ShowRequest{Model: "x"})

			var serr StatusError
			if !errors.As(err, &serr) {
				t.Fatalf("erwartet StatusError, erhalten %v", err)
			}

			if diff := cmp.Diff(tt.expect, serr); diff != "" {
				t.Errorf("StatusError weicht ab (-erwartet +erhalten):\n%s", diff)
			}
		})
	}
}

func TestClientVersionAndHeartbeat(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/":
		case r.Method == http.MethodGet && r.URL.Path == "/api/version":
			w.Write([]byte(`{"version":"1.2.3"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, client.Heartbeat(context.Background()))

	v, err := client.Version(context.Background())
	require.NoError(t, err)
	if v != "1.2.3" {
		t.Errorf("Version = %q, erwartet 1.2.3", v)
	}
}

func TestTensorValidate(t *testing.T) {
	cases := []struct {
		name   string
		tensor Tensor
		ok     bool
	}{
		{"valid", Tensor{Shape: []int{2, 3}, Data: make([]float32, 6)}, true},
		{"empty shape", Tensor{Data: []float32{1}}, false},
		{"short data", Tensor{Shape: []int{2, 3}, Data: make([]float32, 5)}, false},
		{"zero dim", Tensor{Shape: []int{0, 3}}, false},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tensor.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok erwartet %t", err, tt.ok)
			}
		})
	}
}
