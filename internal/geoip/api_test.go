package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/biopeak/backend/pkg"

	"github.com/go-redis/redismock/v8"
	"github.com/ipinfo/go/v2/ipinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ipInfoTestResponse = `{
  "ip": "127.0.0.2",
  "hostname": "153.red-80-36-233.staticip.rima-tde.net",
  "city": "Palma",
  "region": "Balearic Islands",
  "country": "ES",
  "loc": "39.5680,2.6835",
  "org": "AS3352 TELEFONICA DE ESPANA S.A.U.",
  "postal": "07198",
  "timezone": "Europe/Madrid"
}`

func TestGeoIp_GetIPGeoInfo(t *testing.T) {
	apiCallsCount := 0
	testServerHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCallsCount++
		if r.Method == http.MethodGet && r.URL.Path == "/127.0.0.2" {
			pkg.WriteResponse(w, "application/json", ipInfoTestResponse, http.StatusOK)
			return
		}
		http.Error(w, "unexpected path/method", http.StatusBadRequest)
	})
	testServer := httptest.NewServer(testServerHandler)
	defer testServer.Close()

	ipinfoClient := ipinfo.NewClient(testServer.Client(), nil, "dummy-token")
	baseURL, err := url.Parse(testServer.URL + "/")
	require.NoError(t, err)
	ipinfoClient.BaseURL = baseURL

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("ip-info::127.0.0.2").SetVal("")

	geoIp := NewApi(ipinfoClient, db)
	require.NotNil(t, geoIp)

	ctx := context.Background()

	// localhost short-circuits to the development Berlin info
	ipInfo, err := geoIp.GetIPGeoInfo(ctx, "localhost")
	require.NoError(t, err)
	require.NotNil(t, ipInfo)
	assert.Equal(t, &devGeoIpInfo, ipInfo)
	assert.Equal(t, 0, apiCallsCount)

	// non-dev IP goes to the ipinfo API
	ipInfo, err = geoIp.GetIPGeoInfo(ctx, "127.0.0.2")
	require.NoError(t, err)
	require.NotNil(t, ipInfo)
	assert.Equal(t, 1, apiCallsCount)

	assert.Equal(t, "Palma", ipInfo.City)
	assert.Equal(t, "ES", ipInfo.Country)
	assert.Equal(t, "07198", ipInfo.Postal)
	assert.Equal(t, "Europe/Madrid", ipInfo.Timezone)
	assert.Equal(t, "127.0.0.2", ipInfo.IP)
}

func TestGeoIp_GetIPGeoInfo_fromCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("ip-info::80.36.233.153").SetVal(`{"ip":"80.36.233.153","city":"Palma","country":"ES","timezone":"Europe/Madrid"}`)

	geoIp := NewApi(nil, db)
	require.NotNil(t, geoIp)

	ipInfo, err := geoIp.GetIPGeoInfo(context.Background(), "80.36.233.153")
	require.NoError(t, err)
	require.NotNil(t, ipInfo)
	assert.Equal(t, "Palma", ipInfo.City)
	assert.Equal(t, "Europe/Madrid", ipInfo.Timezone)
}

func TestGeoIp_GetIPGeoInfo_invalidIP(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("ip-info::not-an-ip").SetVal("")

	geoIp := NewApi(nil, db)
	_, err := geoIp.GetIPGeoInfo(context.Background(), "not-an-ip")
	require.EqualError(t, err, "ip addr not-an-ip is invalid")
}
