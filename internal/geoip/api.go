package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/biopeak/backend/internal/telemetry/tracing"
	"github.com/biopeak/backend/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/ipinfo/go/v2/ipinfo"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// IpInfo is the geo info we care about: the timezone is handed to clients
// so they can bucket activities into their local day.
type IpInfo struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
}

var devGeoIpInfo = IpInfo{
	IP:       "127.0.0.1",
	City:     "Berlin",
	Country:  "DE",
	Timezone: "Europe/Berlin",
}

type Api struct {
	mu           sync.Mutex
	ipinfoClient *ipinfo.Client
	redisClient  *redis.Client
}

func NewApi(
	ipinfoClient *ipinfo.Client,
	redisClient *redis.Client,
) *Api {
	return &Api{
		ipinfoClient: ipinfoClient,
		redisClient:  redisClient,
	}
}

func (gi *Api) GetRequestGeoInfo(ctx context.Context, r *http.Request) (*IpInfo, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "geoIp.getRequestGeoInfo")
	defer span.End()

	userIp, err := pkg.ReadUserIP(r)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("get user ip: %s", err))
		return nil, fmt.Errorf("get user ip: %w", err)
	}
	span.SetAttributes(attribute.String("user.ip", userIp))

	return gi.GetIPGeoInfo(ctx, userIp)
}

func (gi *Api) GetIPGeoInfo(ctx context.Context, userIp string) (*IpInfo, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "geoIp.getIPGeoInfo")
	defer span.End()

	// used for development
	if userIp == "localhost" || userIp == "127.0.0.1" {
		log.Debugf("ip geo info: returning development localhost / Berlin")
		return &devGeoIpInfo, nil
	}

	// the ipinfo free plan has a monthly request cap, and the mobile client fires
	// a few concurrent requests upon opening; serialize and try the redis cache first
	gi.mu.Lock()
	defer gi.mu.Unlock()

	userIpKey := fmt.Sprintf("ip-info::%s", userIp)
	cmd := gi.redisClient.Get(ctx, userIpKey)
	if err := cmd.Err(); err != nil && err != redis.Nil {
		log.Errorf("failed to find ip info from redis for [%s]: %s", userIpKey, err)
	}

	ipInfo := &IpInfo{}
	if ipInfoBytes := cmd.Val(); ipInfoBytes != "" {
		span.SetAttributes(attribute.Bool("user.ip.from-cache", true))
		log.Tracef("found geo ip info for [%s] in redis cache", userIp)
		if err := json.Unmarshal([]byte(ipInfoBytes), ipInfo); err == nil {
			return ipInfo, nil
		} else {
			log.Errorf("failed to unmarshal cached ip info from redis for %s: %s", userIp, err)
			// continue, and ask the ipinfo API
		}
	} else {
		span.SetAttributes(attribute.Bool("user.ip.from-cache", false))
		log.Debugf("ip info value from redis not found for [%s]", userIp)
	}

	ip := net.ParseIP(userIp)
	if ip == nil {
		span.SetStatus(codes.Error, "invalid ip")
		return nil, fmt.Errorf("ip addr %s is invalid", userIp)
	}

	log.Debugf("will ask ipinfo API for ip info: %s", userIp)

	core, err := gi.ipinfoClient.GetIPInfo(ip)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("get ip info: %s", err))
		return nil, fmt.Errorf("get ip info for %s: %w", userIp, err)
	}

	ipInfo = &IpInfo{
		IP:       core.IP.String(),
		City:     core.City,
		Region:   core.Region,
		Country:  core.Country,
		Postal:   core.Postal,
		Timezone: core.Timezone,
	}

	// cache response in redis
	ipInfoBytes, err := json.Marshal(ipInfo)
	if err != nil {
		log.Errorf("failed to marshal ip info for caching: %s", err)
		return ipInfo, nil
	}
	if err := gi.redisClient.Set(ctx, userIpKey, ipInfoBytes, 0).Err(); err != nil {
		log.Errorf("failed to cache ip info in redis for %s: %s", userIp, err)
	} else {
		log.Debugf("ip info cache set in redis for: %s", userIp)
	}

	return ipInfo, nil
}
