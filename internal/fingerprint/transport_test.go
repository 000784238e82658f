package fingerprint

import (
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	utls "github.com/refraction-networking/utls"
)

func get(t *testing.T, p Profile, url string) (int, string) {
	t.Helper()
	rt, err := Transport(p, WithInsecureSkipVerify())
	if err != nil {
		t.Fatalf("Transport(%s): %v", p, err)
	}
	client := &http.Client{Transport: rt}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET with %s: %v", p, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestTransport_Profiles(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	for _, p := range []Profile{ProfileGo, ProfileChrome, ProfileFirefox, ProfileSafari} {
		t.Run(string(p), func(t *testing.T) {
			if code, _ := get(t, p, ts.URL); code != http.StatusOK {
				t.Errorf("expected 200, got %d", code)
			}
		})
	}
}

func TestTransport_HTTP2Server(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Proto))
	}))
	ts.EnableHTTP2 = true
	ts.StartTLS()
	defer ts.Close()

	for _, p := range []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileRandom} {
		t.Run(string(p), func(t *testing.T) {
			code, proto := get(t, p, ts.URL)
			if code != http.StatusOK {
				t.Errorf("expected 200, got %d", code)
			}
			if proto != "HTTP/1.1" {
				t.Errorf("expected HTTP/1.1, got %s", proto)
			}
		})
	}
}

func TestHelloSpec_OffersOnlyHTTP1(t *testing.T) {
	for p, id := range helloIDs {
		spec, err := helloSpec(id)
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		for _, ext := range spec.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok && !slices.Equal(alpn.AlpnProtocols, []string{"http/1.1"}) {
				t.Errorf("%s: ALPN offers %v", p, alpn.AlpnProtocols)
			}
		}
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	_, err := Transport(Profile("netscape"))
	if err == nil || err.Error() != `fingerprint: unknown profile "netscape"` {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		in      string
		want    Profile
		wantErr bool
	}{
		{in: "", want: ProfileGo},
		{in: "go", want: ProfileGo},
		{in: " Chrome ", want: ProfileChrome},
		{in: "firefox", want: ProfileFirefox},
		{in: "random", want: ProfileRandom},
		{in: "lynx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProfile(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
