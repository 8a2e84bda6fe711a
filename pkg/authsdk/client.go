package authsdk

import (
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// CSRFHeader is the header the CSRF token is replayed in.
const CSRFHeader = "X-CSRF-Token"

// SDKClient is a client for the warden API. It keeps a cookie jar so the
// CSRF cookie set by FetchCSRF is sent back automatically.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	mu        sync.RWMutex
	csrfToken string
}

// NewSDKClient creates a client with a 10 second timeout and a cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil)
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// NewSession returns a Session that authenticates with bearer.
func (c *SDKClient) NewSession(bearer string) *Session {
	return &Session{client: c, bearer: bearer}
}

// Session performs requests on behalf of one signed-in user.
type Session struct {
	client *SDKClient
	bearer string
}
