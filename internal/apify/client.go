package apify

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL = "https://api.apify.com"
	// Actor that searches LinkedIn posts by keyword without session cookies.
	defaultActor = "apimaestro~linkedin-posts-search-scraper-no-cookies"
	// Synchronous actor runs can take a while; the platform caps them at 300s.
	defaultTimeout = 5 * time.Minute
)

type Client struct {
	token  string
	logger *zap.Logger

	HTTPClient *http.Client
	APIURL     string
	Actor      string
}

func New(token string, logger *zap.Logger) *Client {
	return &Client{
		token:  token,
		logger: logger,
		APIURL: apiURL,
		Actor:  defaultActor,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}
