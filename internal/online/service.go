package online

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Zereker/nlu/pkg/log"
	"github.com/Zereker/nlu/pkg/metrics"
	"github.com/Zereker/nlu/pkg/redis"
)

const (
	cacheKeyAddress = "online:address"
	cacheKeyWeather = "online:weather:"
)

// ErrNoLocation 无法确定天气查询的地点
var ErrNoLocation = errors.New("no location for weather")

// Config 在线语义配置
type Config struct {
	Enabled    bool   `toml:"enabled"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	Timeout    string `toml:"timeout"`
	City       string `toml:"city"`        // IP 定位失败时使用的默认地址
	WeatherTTL string `toml:"weather_ttl"` // 天气缓存时间
	AddressTTL string `toml:"address_ttl"` // 默认地址缓存时间
}

// Validate 填充默认值并校验
func (c *Config) Validate() error {
	if c.Timeout == "" {
		c.Timeout = "5s"
	}
	if c.WeatherTTL == "" {
		c.WeatherTTL = "30m"
	}
	if c.AddressTTL == "" {
		c.AddressTTL = "24h"
	}
	for name, v := range map[string]string{"timeout": c.Timeout, "weather_ttl": c.WeatherTTL, "address_ttl": c.AddressTTL} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s is invalid: %w", name, err)
		}
	}
	if c.Enabled && c.APIKey == "" {
		return fmt.Errorf("api_key is required when online is enabled")
	}
	return nil
}

// Locator 从问题中抽取地名
// 实现 nlp.Tokenizer
type Locator interface {
	ExtractLocation(text string) string
}

type amapClient interface {
	IPLocation(ctx context.Context, ip string) (*IPLocationResponse, error)
	Geocode(ctx context.Context, address string) (*GeocodeResponse, error)
	Weather(ctx context.Context, city string) (*WeatherResponse, error)
}

// Service 在线语义数据源：默认地址与天气，结果缓存在 Redis
type Service struct {
	client     amapClient // 未开启时为 nil
	locator    Locator
	cache      *redis.Cache
	city       string
	weatherTTL time.Duration
	addressTTL time.Duration
	logger     *slog.Logger
}

// NewService 创建在线语义服务，cache 可以为 nil
func NewService(cfg Config, locator Locator, cache *redis.Cache) *Service {
	timeout, _ := time.ParseDuration(cfg.Timeout)
	weatherTTL, _ := time.ParseDuration(cfg.WeatherTTL)
	addressTTL, _ := time.ParseDuration(cfg.AddressTTL)

	s := &Service{
		locator:    locator,
		cache:      cache,
		city:       cfg.City,
		weatherTTL: weatherTTL,
		addressTTL: addressTTL,
		logger:     log.Logger("online"),
	}
	if cfg.Enabled {
		s.client = NewClient(cfg.APIKey, cfg.BaseURL, timeout)
	}
	return s
}

// DefaultAddress 机器人所在地址：IP 定位，失败时使用配置的城市
func (s *Service) DefaultAddress(ctx context.Context) (string, error) {
	if address, ok := s.cached(ctx, cacheKeyAddress); ok {
		return address, nil
	}

	address := s.locate(ctx)
	if address == "" {
		address = s.city
	}
	if address == "" {
		return "", ErrNoLocation
	}

	s.store(ctx, cacheKeyAddress, address, s.addressTTL)
	return address, nil
}

func (s *Service) locate(ctx context.Context) string {
	if s.client == nil {
		return ""
	}

	resp, err := s.client.IPLocation(ctx, "")
	if err != nil {
		s.logger.Warn("ip location failed", "error", err)
		return ""
	}

	province, city := string(resp.Province), string(resp.City)
	if province == city {
		return city
	}
	return province + city
}

// WeatherReport 天气播报。问题中没有地名时查询默认地址的天气。
func (s *Service) WeatherReport(ctx context.Context, question string) (string, error) {
	if s.client == nil {
		return "", errors.New("online weather is disabled")
	}

	location := ""
	if s.locator != nil {
		location = s.locator.ExtractLocation(question)
	}
	if location == "" {
		address, err := s.DefaultAddress(ctx)
		if err != nil {
			return "", err
		}
		location = address
	}

	key := cacheKeyWeather + location
	if report, ok := s.cached(ctx, key); ok {
		metrics.EnrichTotal.WithLabelValues("weather", "cache_hit").Inc()
		return report, nil
	}

	geo, err := s.client.Geocode(ctx, location)
	if err != nil {
		return "", fmt.Errorf("geocode %s: %w", location, err)
	}
	if len(geo.Geocodes) == 0 || geo.Geocodes[0].Adcode == "" {
		return "", fmt.Errorf("geocode %s: %w", location, ErrNoLocation)
	}

	weather, err := s.client.Weather(ctx, string(geo.Geocodes[0].Adcode))
	if err != nil {
		return "", fmt.Errorf("weather %s: %w", location, err)
	}
	if len(weather.Lives) == 0 {
		return "", fmt.Errorf("weather %s: empty lives", location)
	}

	report := FormatWeather(weather.Lives[0])
	s.store(ctx, key, report, s.weatherTTL)
	return report, nil
}

// FormatWeather 实况天气的播报文本
func FormatWeather(w LiveWeather) string {
	var b strings.Builder
	b.WriteString(w.City)
	b.WriteString(" ")
	b.WriteString(w.Weather)
	if w.Temperature != "" {
		b.WriteString(" ")
		b.WriteString(w.Temperature)
		b.WriteString("℃")
	}
	if w.WindDirection != "" {
		b.WriteString(" ")
		b.WriteString(w.WindDirection)
		b.WriteString("风")
		b.WriteString(w.WindPower)
		b.WriteString("级")
	}
	return b.String()
}

func (s *Service) cached(ctx context.Context, key string) (string, bool) {
	val, ok, err := s.cache.GetString(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed", "key", key, "error", err)
		return "", false
	}
	return val, ok
}

func (s *Service) store(ctx context.Context, key, val string, ttl time.Duration) {
	if err := s.cache.SetString(ctx, key, val, ttl); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
