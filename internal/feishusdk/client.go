package feishusdk

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/httprunner/CamNotify/internal/env"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

const (
	defaultBaseURL     = "https://open.feishu.cn"
	defaultHTTPTimeout = 60 * time.Second

	defaultTransport = "sdk"

	// The SDK refuses to send without an app identity even when token
	// caching is off and every call carries its own tenant token.
	placeholderAppID     = "camnotify"
	placeholderAppSecret = "camnotify"
)

type imImageAPI interface {
	Create(ctx context.Context, req *larkim.CreateImageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateImageResp, error)
}

type imMessageAPI interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	AppID      string
	AppSecret  string
	BaseURL    string
	Transport  string
	HTTPClient *http.Client
}

// Client sends images to Feishu/Lark chats. Access tokens are supplied per
// call; the client never fetches or refreshes them.
type Client struct {
	baseURL    string
	larkClient *lark.Client
	httpClient *http.Client
	transport  string

	imageAPI   imImageAPI
	messageAPI imMessageAPI
}

// NewClient constructs a Client from opts.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	larkOpts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelError),
		lark.WithEnableTokenCache(false),
		lark.WithReqTimeout(httpClient.Timeout),
		lark.WithHttpClient(httpClient),
	}
	if baseURL != lark.FeishuBaseUrl {
		larkOpts = append(larkOpts, lark.WithOpenBaseUrl(baseURL))
	}
	appID := strings.TrimSpace(opts.AppID)
	if appID == "" {
		appID = placeholderAppID
	}
	appSecret := strings.TrimSpace(opts.AppSecret)
	if appSecret == "" {
		appSecret = placeholderAppSecret
	}
	client := lark.NewClient(appID, appSecret, larkOpts...)

	return &Client{
		baseURL:    baseURL,
		larkClient: client,
		httpClient: httpClient,
		transport:  normalizeTransport(opts.Transport),
		imageAPI:   client.Im.V1.Image,
		messageAPI: client.Im.V1.Message,
	}
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Optional variables:
//   - FEISHU_APP_ID, FEISHU_APP_SECRET (only identify the app to the SDK;
//     placeholders are used when unset)
//   - FEISHU_BASE_URL (defaults to https://open.feishu.cn)
//   - FEISHU_TRANSPORT (sdk/http, defaults to sdk)
func NewClientFromEnv() *Client {
	return NewClient(Options{
		AppID:     env.String("FEISHU_APP_ID", ""),
		AppSecret: env.String("FEISHU_APP_SECRET", ""),
		BaseURL:   env.String("FEISHU_BASE_URL", ""),
		Transport: env.String("FEISHU_TRANSPORT", ""),
	})
}

// Transport reports the active transport, "sdk" or "http".
func (c *Client) Transport() string {
	return c.transport
}

func normalizeTransport(raw string) string {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "sdk", "http":
		return mode
	default:
		return defaultTransport
	}
}

func (c *Client) useHTTP() bool {
	return c != nil && c.transport == "http"
}

func (c *Client) apiBase() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return defaultBaseURL
}

func tokenOptions(token string) []larkcore.RequestOptionFunc {
	return []larkcore.RequestOptionFunc{larkcore.WithTenantAccessToken(strings.TrimSpace(token))}
}
