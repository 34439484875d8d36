// Package portal defines the narrow surface the sync engine needs
// from the dealer portal. The concrete HTTP client lives in the
// unifi subpackage; tests substitute fakes.
package portal

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrLastPage is returned by NextPage when the pager is already
	// on the final page.
	ErrLastPage = errors.New("already on last page")

	// ErrNoPayload is returned by FetchOrderDetail when the detail
	// endpoint never yields order data within the bounded wait.
	ErrNoPayload = errors.New("no detail payload received")

	// ErrSessionInvalid signals the cached session was rejected and
	// a fresh login is needed.
	ErrSessionInvalid = errors.New("portal session invalid")
)

// OrderRow is one row of the paginated order listing.
type OrderRow struct {
	OrderID     string `json:"custOrderId"`
	OrderNumber string `json:"custOrderNbr"`
	OrderStatus string `json:"orderStatusName"`
	CreatedDate string `json:"orderCreatedDate"`
	UpdatedDate string `json:"orderCompletedDate"`
	CustName    string `json:"custName"`
}

// OrderDetail is the detail payload for a single order. Field names
// mirror the portal's JSON so the response binds directly.
type OrderDetail struct {
	CustOrderNbr         string             `json:"custOrderNbr"`
	CustInfo             *CustInfo          `json:"custInfo"`
	InstallationInfoList []InstallationInfo `json:"installationInfoList"`
	AttrValueList        []AttrValue        `json:"attrValueList"`
	OrderItemList        []OrderItem        `json:"orderItemList"`
	PartyName            string             `json:"partyName"`
	PartyStaffCode       string             `json:"partyStaffCode"`
}

type CustInfo struct {
	CustName      string      `json:"custName"`
	CertNbr       string      `json:"certNbr"`
	CertTypeName  string      `json:"certTypeName"`
	FullAddress   string      `json:"fullAddress"`
	Address       string      `json:"address"`
	PartyCertList []PartyCert `json:"partyCertList"`
}

type PartyCert struct {
	CertNbr      string `json:"certNbr"`
	CertTypeName string `json:"certTypeName"`
}

type InstallationInfo struct {
	CustContactDto  *CustContact     `json:"custContactDto"`
	AppointmentInfo *AppointmentInfo `json:"appointmentInfo"`
	DisplayAddress  string           `json:"displayAddress"`
}

type CustContact struct {
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	ContactNbr  string `json:"contactNbr"`
	MobilePhone string `json:"mobilePhone"`
	HomePhone   string `json:"homePhone"`
}

type AppointmentInfo struct {
	AppointmentStartTime string `json:"appointmentStartTime"`
	AppointmentEndTime   string `json:"appointmentEndTime"`
}

type AttrValue struct {
	AttrCode string `json:"attrCode"`
	Value    string `json:"value"`
}

type OrderItem struct {
	MainOfferName string      `json:"mainOfferName"`
	OfferName     string      `json:"offerName"`
	OfferInstList []OfferInst `json:"offerInstList"`
}

type OfferInst struct {
	AttrValueList []AttrValue `json:"attrValueList"`
}

// CleanOrderNumber strips the batch suffix the portal appends to
// grouped orders ("2025103112345 Batch 2/3" keeps only the leading
// token) and reports whether what remains looks like a real order
// number: at least ten characters, starting with a digit.
func CleanOrderNumber(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "Batch") {
		if fields := strings.Fields(s); len(fields) > 0 {
			s = fields[0]
		}
	}
	if len(s) < 10 || !unicode.IsDigit(rune(s[0])) {
		return s, false
	}
	return s, true
}

// Driver is everything the sync engine asks of the portal.
type Driver interface {
	// Login establishes a session, reusing a cached one when still
	// accepted by the portal.
	Login(ctx context.Context) error

	// SetMonthFilter narrows the order listing to one month (by
	// English month name) and resets the pager to page 1.
	SetMonthFilter(ctx context.Context, month string, year int) error

	// ListPageRows returns the rows of the current listing page.
	ListPageRows(ctx context.Context) ([]OrderRow, error)

	// FetchOrderDetail retrieves one order's detail payload within a
	// bounded wait. Returns ErrNoPayload when nothing usable arrives.
	FetchOrderDetail(ctx context.Context, orderID string) (*OrderDetail, error)

	// NextPage advances the pager, returning ErrLastPage at the end.
	NextPage(ctx context.Context) error

	// ActivePage reports the pager's current 1-based page number.
	ActivePage() int

	Close() error
}
