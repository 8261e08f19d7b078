package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSite(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		bcPath  string
		cpsPath string
		wantErr bool
	}{
		{name: "valid", baseURL: "https://example.com", bcPath: "/sqrl", cpsPath: "/sqrl/cps"},
		{name: "relative base", baseURL: "example.com", bcPath: "/sqrl", cpsPath: "/sqrl/cps", wantErr: true},
		{name: "relative path", baseURL: "https://example.com", bcPath: "sqrl", cpsPath: "/sqrl/cps", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSite(tt.baseURL, tt.bcPath, tt.cpsPath, "Example")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSite_URLs(t *testing.T) {
	site, err := NewSite("https://example.com:8443/app/", "/sqrl", "/sqrl/cps", "Example")
	require.NoError(t, err)

	assert.Equal(t, "/app/sqrl?nut=abc", site.Qry("abc"))
	assert.Equal(t, "sqrl://example.com:8443/app/sqrl?nut=abc&sfn=RXhhbXBsZQ", site.SqrlURL("abc"))
	assert.Equal(t, "https://example.com:8443/app/sqrl/cps?token=t.o.k", site.CPSURL("t.o.k"))
}
