package online

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// API path constants
const (
	IPLocationPath = "/v3/ip"
	GeocodePath    = "/v3/geocode/geo"
	WeatherPath    = "/v3/weather/weatherInfo"
)

const defaultBaseURL = "https://restapi.amap.com"

// BaseResponse 高德接口的公共应答字段
type BaseResponse struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	InfoCode string `json:"infocode"`
}

func (r *BaseResponse) IsSuccess() bool {
	return r.Status == "1" && r.InfoCode == "10000"
}

func (r *BaseResponse) Base() *BaseResponse {
	return r
}

// flexString 查询不到时高德返回空数组而不是空串
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = ""
	return nil
}

// IPLocationResponse IP 定位
type IPLocationResponse struct {
	BaseResponse
	Province flexString `json:"province"`
	City     flexString `json:"city"`
	Adcode   flexString `json:"adcode"`
}

// GeocodeResponse 地理编码
type GeocodeResponse struct {
	BaseResponse
	Geocodes []struct {
		FormattedAddress flexString `json:"formatted_address"`
		Province         flexString `json:"province"`
		City             flexString `json:"city"`
		Adcode           flexString `json:"adcode"`
	} `json:"geocodes"`
}

// LiveWeather 实况天气
type LiveWeather struct {
	Province      string `json:"province"`
	City          string `json:"city"`
	Adcode        string `json:"adcode"`
	Weather       string `json:"weather"`
	Temperature   string `json:"temperature"`
	WindDirection string `json:"winddirection"`
	WindPower     string `json:"windpower"`
	Humidity      string `json:"humidity"`
	ReportTime    string `json:"reporttime"`
}

// WeatherResponse 天气查询
type WeatherResponse struct {
	BaseResponse
	Lives []LiveWeather `json:"lives"`
}

// Client 高德开放平台 REST 客户端
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建客户端
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IPLocation 定位 ip 所在城市，ip 为空时定位请求方
func (c *Client) IPLocation(ctx context.Context, ip string) (*IPLocationResponse, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	if ip != "" {
		params.Set("ip", ip)
	}

	resp := &IPLocationResponse{}
	if err := c.doGet(ctx, IPLocationPath, params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Geocode 地址转行政区编码
func (c *Client) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("address", address)

	resp := &GeocodeResponse{}
	if err := c.doGet(ctx, GeocodePath, params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Weather 实况天气，city 为行政区编码
func (c *Client) Weather(ctx context.Context, city string) (*WeatherResponse, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("city", city)
	params.Set("extensions", "base")

	resp := &WeatherResponse{}
	if err := c.doGet(ctx, WeatherPath, params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// doGet performs GET request and checks response status
func (c *Client) doGet(ctx context.Context, path string, params url.Values, response interface {
	IsSuccess() bool
	Base() *BaseResponse
}) error {
	urlStr := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("unmarshal response failed: %w", err)
	}

	if !response.IsSuccess() {
		base := response.Base()
		return fmt.Errorf("gaode api error: %s - %s", base.InfoCode, base.Info)
	}

	return nil
}
