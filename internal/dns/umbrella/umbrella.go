package umbrella

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns"
)

const (
	defaultBaseURL = "https://api.umbrella.com"
	defaultTimeout = 30 * time.Second

	tokenPath            = "auth/v2/token"
	destinationListsPath = "policies/v2/destinationlists"

	// pageLimit is the largest page the destination list endpoint serves.
	pageLimit = 100
	// maxPages bounds the list walk for servers that never return a short page.
	maxPages = 1000
	// maxErrorBody caps how much of an error response is kept in HTTPError.
	maxErrorBody = 4 << 10
)

func init() {
	dns.Register("umbrella", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for the Cisco Umbrella policies API.
type Provider struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	base     *instrumentedTransport
	log      logr.Logger
}

// New creates an Umbrella provider from the given settings map.
// Required settings: username, password (the API key and secret).
// Optional settings: base_url (default https://api.umbrella.com),
// timeout (default 30s), requests_per_second (default 0, unpaced),
// skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	username := settings["username"]
	if username == "" {
		return nil, fmt.Errorf("umbrella: missing required setting 'username'")
	}
	password := settings["password"]
	if password == "" {
		return nil, fmt.Errorf("umbrella: missing required setting 'password'")
	}

	timeout := defaultTimeout
	if v := settings["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("umbrella: invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	var limiter *rate.Limiter
	if v := settings["requests_per_second"]; v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return nil, fmt.Errorf("umbrella: invalid requests_per_second %q", v)
		}
		if rps > 0 {
			limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Provider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		timeout:  timeout,
		base:     &instrumentedTransport{next: transport, limiter: limiter},
		log:      log,
	}, nil
}

// SetObserver makes the provider report every API request to o.
func (p *Provider) SetObserver(o dns.RequestObserver) {
	p.base.observer = o
}

func (p *Provider) url(path string) string {
	return p.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Authenticate runs the client-credentials grant against the token endpoint.
// The request is form encoded and carries the credentials as HTTP Basic auth.
func (p *Provider) Authenticate(ctx context.Context) (dns.Session, error) {
	p.log.Info("requesting access token")

	cfg := clientcredentials.Config{
		ClientID:     p.username,
		ClientSecret: p.password,
		TokenURL:     p.url(tokenPath),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: p.base, Timeout: p.timeout})

	tok, err := cfg.Token(ctx)
	if err != nil {
		return dns.Session{}, &dns.AuthError{Err: err}
	}
	p.log.Info("access token obtained", "expiry", tok.Expiry)
	return dns.Session{AccessToken: tok.AccessToken}, nil
}

// client returns an HTTP client that sends the session's bearer token.
func (p *Provider) client(s dns.Session) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.AccessToken, TokenType: "Bearer"})
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: p.base},
		Timeout:   p.timeout,
	}
}

// doRequest executes an authenticated JSON request and decodes a 2xx response
// into out when out is non-nil. Non-2xx answers and transport failures are
// returned as *dns.HTTPError.
func (p *Provider) doRequest(ctx context.Context, s dns.Session, method, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("umbrella: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.url(path), bodyReader)
	if err != nil {
		return fmt.Errorf("umbrella: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client(s).Do(req)
	if err != nil {
		return &dns.HTTPError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &dns.HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("umbrella: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// listResponse is the shape returned by the destination list collection.
type listResponse struct {
	Data []dns.DestinationList `json:"data"`
	Meta struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"meta"`
}

// ListDestinationLists fetches every destination list. Paging stops at a
// short or empty page, once meta.total lists are collected, or when a page
// repeats only lists already seen (a server that ignores page and limit).
func (p *Provider) ListDestinationLists(ctx context.Context, s dns.Session) ([]dns.DestinationList, error) {
	var all []dns.DestinationList
	seen := make(map[int64]struct{})
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("umbrella: destination lists exceed %d pages", maxPages)
		}
		var lr listResponse
		path := fmt.Sprintf("%s?page=%d&limit=%d", destinationListsPath, page, pageLimit)
		if err := p.doRequest(ctx, s, http.MethodGet, path, nil, &lr); err != nil {
			return nil, err
		}

		fresh := 0
		for _, l := range lr.Data {
			if _, dup := seen[l.ID]; dup {
				continue
			}
			seen[l.ID] = struct{}{}
			all = append(all, l)
			fresh++
		}
		if fresh == 0 || len(lr.Data) < pageLimit {
			break
		}
		if lr.Meta.Total > 0 && len(all) >= lr.Meta.Total {
			break
		}
	}
	p.log.V(1).Info("fetched destination lists", "count", len(all))
	return all, nil
}

// DeleteDestinationList removes a destination list and all of its destinations.
func (p *Provider) DeleteDestinationList(ctx context.Context, s dns.Session, id int64) error {
	p.log.Info("deleting destination list", "id", id)

	path := fmt.Sprintf("%s/%d", destinationListsPath, id)
	if err := p.doRequest(ctx, s, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	p.log.Info("destination list deleted", "id", id)
	return nil
}

// createRequest is the body of the create destination list call.
type createRequest struct {
	Name         string `json:"name"`
	Access       string `json:"access"`
	BundleTypeID int    `json:"bundleTypeId"`
	IsGlobal     bool   `json:"isGlobal"`
}

// createResponse accepts both the bare list object and a data envelope.
type createResponse struct {
	dns.DestinationList
	Data *dns.DestinationList `json:"data"`
}

// CreateDestinationList creates a new destination list and returns it with
// the id assigned by the service.
func (p *Provider) CreateDestinationList(ctx context.Context, s dns.Session, spec dns.ListSpec) (dns.DestinationList, error) {
	p.log.Info("creating destination list", "name", spec.Name, "access", spec.Access)

	body := createRequest{
		Name:         spec.Name,
		Access:       spec.Access,
		BundleTypeID: spec.BundleTypeID,
		IsGlobal:     spec.IsGlobal,
	}
	var cr createResponse
	if err := p.doRequest(ctx, s, http.MethodPost, destinationListsPath, body, &cr); err != nil {
		return dns.DestinationList{}, err
	}

	list := cr.DestinationList
	if cr.Data != nil {
		list = *cr.Data
	}
	if list.ID == 0 {
		return dns.DestinationList{}, fmt.Errorf("umbrella: create response carries no list id")
	}
	p.log.Info("destination list created", "id", list.ID)
	return list, nil
}

// destination is one element of the add destinations payload.
type destination struct {
	Destination string `json:"destination"`
}

// AddDestinations posts hostnames to a destination list in a single request.
func (p *Provider) AddDestinations(ctx context.Context, s dns.Session, id int64, hostnames []string) error {
	if len(hostnames) == 0 {
		return nil
	}
	body := make([]destination, 0, len(hostnames))
	for _, h := range hostnames {
		body = append(body, destination{Destination: h})
	}
	path := fmt.Sprintf("%s/%d/destinations", destinationListsPath, id)
	return p.doRequest(ctx, s, http.MethodPost, path, body, nil)
}
