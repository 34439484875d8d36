// Package unifi implements the dealer portal driver over its JSON
// endpoints.
package unifi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/newbienorbie/unifi-scraper/internal/config"
	"github.com/newbienorbie/unifi-scraper/internal/credstore"
	"github.com/newbienorbie/unifi-scraper/internal/dateutil"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
	"github.com/newbienorbie/unifi-scraper/internal/otp"
	"github.com/newbienorbie/unifi-scraper/internal/portal"
	"github.com/newbienorbie/unifi-scraper/internal/session"
)

// Client drives the dealer portal over HTTP. It satisfies
// portal.Driver and owns the session cookie lifecycle.
type Client struct {
	http     *resty.Client
	cfg      config.PortalConfig
	creds    *credstore.Store
	sessions *session.Cache
	otp      *otp.Resolver

	// pager state for the active month filter
	month      string
	year       int
	page       int
	totalPages int
}

type portalEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type loginResponse struct {
	portalEnvelope
}

type listResponse struct {
	portalEnvelope
	Data struct {
		Rows       []portal.OrderRow `json:"rows"`
		PageNumber int               `json:"pageNumber"`
		TotalPages int               `json:"totalPages"`
	} `json:"data"`
}

type detailResponse struct {
	portalEnvelope
	Data *portal.OrderDetail `json:"data"`
}

func NewClient(cfg config.PortalConfig, creds *credstore.Store, sessions *session.Cache, resolver *otp.Resolver) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)").
		SetHeader("Accept", "application/json")

	return &Client{
		http:     http,
		cfg:      cfg,
		creds:    creds,
		sessions: sessions,
		otp:      resolver,
		page:     1,
	}
}

// Login reuses a cached session when the portal still accepts it,
// otherwise performs the full credential and OTP exchange.
func (c *Client) Login(ctx context.Context) error {
	if st, ok := c.sessions.Load(); ok {
		c.http.SetCookies(st.HTTPCookies())
		if err := c.probeSession(ctx); err == nil {
			logger.CtxInfo(ctx, "Reusing cached portal session")
			return nil
		}
		logger.CtxInfo(ctx, "Cached session rejected by portal, logging in fresh")
		c.sessions.Invalidate()
		c.http.Cookies = nil
	}

	return c.freshLogin(ctx)
}

// probeSession hits the listing endpoint with the cached cookies. A
// logged-out session gets a redirect or an auth error code back.
func (c *Client) probeSession(ctx context.Context) error {
	var out listResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("pageSize", "1").
		SetQueryParam("pageNumber", "1").
		SetResult(&out).
		Get(c.cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("session probe failed: %w", err)
	}
	if resp.IsError() || out.Code == "401" || out.Code == "NOT_LOGIN" {
		return portal.ErrSessionInvalid
	}
	return nil
}

func (c *Client) freshLogin(ctx context.Context) error {
	creds, err := c.creds.Load()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	// The portal sends the OTP the moment the password is accepted,
	// so record the boundary before submitting.
	loginAt := time.Now()

	var out loginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"loginName": creds.Username,
			"password":  creds.Password,
		}).
		SetResult(&out).
		Post(c.cfg.LoginPath)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("login returned %d: %s", resp.StatusCode(), out.Message)
	}

	code, err := c.otp.Resolve(ctx, loginAt)
	if err != nil {
		return fmt.Errorf("otp resolution failed: %w", err)
	}

	var verify loginResponse
	resp, err = c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"loginName": creds.Username,
			"smsCode":   code,
		}).
		SetResult(&verify).
		Post(c.cfg.LoginPath + "/verify")
	if err != nil {
		return fmt.Errorf("otp verify request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("otp verify returned %d: %s", resp.StatusCode(), verify.Message)
	}

	cookies := session.FromHTTPCookies(resp.Cookies())
	if err := c.sessions.Save(cookies); err != nil {
		logger.CtxWarn(ctx, "Failed to persist session cache: %v", err)
	}
	c.http.SetCookies(resp.Cookies())
	return nil
}

// SetMonthFilter narrows the listing to one month and resets the
// pager. The portal takes the window as 14-digit timestamps.
func (c *Client) SetMonthFilter(ctx context.Context, month string, year int) error {
	c.month, c.year = month, year
	c.page = 1
	c.totalPages = 0

	// Fetch page 1 eagerly so a bad filter fails here, not on the
	// first ListPageRows call.
	_, err := c.fetchPage(ctx, 1)
	return err
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]portal.OrderRow, error) {
	from, to, err := dateutil.MonthRange(c.month, c.year)
	if err != nil {
		return nil, err
	}

	var out listResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("orderCreatedDateFrom", from).
		SetQueryParam("orderCreatedDateTo", to).
		SetQueryParam("pageSize", strconv.Itoa(c.cfg.PageSize)).
		SetQueryParam("pageNumber", strconv.Itoa(page)).
		SetResult(&out).
		Get(c.cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("listing page %d failed: %w", page, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing page %d returned %d: %s", page, resp.StatusCode(), out.Message)
	}
	if out.Code == "401" || out.Code == "NOT_LOGIN" {
		return nil, portal.ErrSessionInvalid
	}

	c.totalPages = out.Data.TotalPages
	if out.Data.PageNumber > 0 {
		c.page = out.Data.PageNumber
	}

	rows := out.Data.Rows[:0]
	for _, row := range out.Data.Rows {
		nbr, ok := portal.CleanOrderNumber(row.OrderNumber)
		if !ok {
			logger.CtxWarn(ctx, "Dropping listing row with malformed order number %q", row.OrderNumber)
			continue
		}
		row.OrderNumber = nbr
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) ListPageRows(ctx context.Context) ([]portal.OrderRow, error) {
	return c.fetchPage(ctx, c.page)
}

// FetchOrderDetail polls the detail endpoint until a payload with
// order data arrives or the bounded wait runs out.
func (c *Client) FetchOrderDetail(ctx context.Context, orderID string) (*portal.OrderDetail, error) {
	deadline := time.Now().Add(c.cfg.DetailWait)

	for {
		var out detailResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("custOrderId", orderID).
			SetResult(&out).
			Get(c.cfg.DetailPath)
		if err != nil {
			return nil, fmt.Errorf("detail fetch for %s failed: %w", orderID, err)
		}
		if out.Code == "401" || out.Code == "NOT_LOGIN" {
			return nil, portal.ErrSessionInvalid
		}
		if resp.IsSuccess() && out.Data != nil && out.Data.CustOrderNbr != "" {
			return out.Data, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: order %s", portal.ErrNoPayload, orderID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// NextPage advances the pager and confirms the portal actually moved
// to the requested page.
func (c *Client) NextPage(ctx context.Context) error {
	if c.totalPages > 0 && c.page >= c.totalPages {
		return portal.ErrLastPage
	}

	want := c.page + 1
	rows, err := c.fetchPage(ctx, want)
	if err != nil {
		return err
	}
	if c.page != want || len(rows) == 0 {
		// Portal silently clamps past the end instead of erroring.
		c.page = min(c.page, want)
		return portal.ErrLastPage
	}
	return nil
}

func (c *Client) ActivePage() int { return c.page }

func (c *Client) Close() error {
	c.http.Cookies = nil
	return nil
}
