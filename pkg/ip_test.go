package pkg

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPIsLocal(t *testing.T) {
	cases := []struct {
		addr            string
		expectedIsLocal bool
	}{
		{addr: "83.12.53.65:2145", expectedIsLocal: false},
		{addr: "127.23.0.1:35325", expectedIsLocal: false},
		{addr: "127.0.0.1:35325", expectedIsLocal: true},
		{addr: "172.20.0.1:60102", expectedIsLocal: true},
		{addr: "172.200.0.1:60096", expectedIsLocal: true},
		{addr: "172.19.0.1:42452", expectedIsLocal: true},
		{addr: "111.12.56.65:8080", expectedIsLocal: false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expectedIsLocal, IPIsLocal(tc.addr))
	}
}

func TestReadUserIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "83.12.53.65:2145"
	ip, err := ReadUserIP(r)
	require.NoError(t, err)
	assert.Equal(t, "83.12.53.65", ip)

	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "83.12.53.65:2145"
	r.Header.Set("X-Real-Ip", "111.12.56.65")
	ip, err = ReadUserIP(r)
	require.NoError(t, err)
	assert.Equal(t, "111.12.56.65", ip)

	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "127.0.0.1:54212"
	ip, err = ReadUserIP(r)
	require.NoError(t, err)
	assert.Equal(t, "localhost", ip)

	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "not-an-ip"
	_, err = ReadUserIP(r)
	require.Error(t, err)
}
