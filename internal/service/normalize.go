package service

import (
	"strings"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/dateutil"
	"github.com/newbienorbie/unifi-scraper/internal/domain"
	"github.com/newbienorbie/unifi-scraper/internal/portal"
)

// attribute codes carried in the detail payload's attrValueList
const (
	attrContactEmail       = "EXP_ORDER_CONTACT_EMAIL"
	attrContactNumber      = "EXP_ORDER_CONTACT_NUMBER"
	attrInstallAddressFull = "EXP_INSTALL_ADDRESS_FULL_NAME"
)

// normalizeOrder flattens one listing row plus its detail payload
// into the stored record. Precedence rules live here and nowhere
// else.
func normalizeOrder(row portal.OrderRow, detail *portal.OrderDetail, now time.Time) domain.OrderRecord {
	rec := domain.OrderRecord{
		OrderNumber: row.OrderNumber,
		OrderStatus: row.OrderStatus,
		CreatedDate: dateutil.StandardizeDate(dateutil.FormatPortalTimestamp(row.CreatedDate)),
		UpdatedDate: dateutil.StandardizeDate(dateutil.FormatPortalTimestamp(row.UpdatedDate)),
		Name:        row.CustName,
		LastSynced:  now.Format(time.RFC3339),
	}
	if detail == nil {
		return rec
	}

	if detail.CustOrderNbr != "" {
		rec.OrderNumber = detail.CustOrderNbr
	}

	// contact name on the installation wins over the customer name
	contact := firstContact(detail)
	if contact != nil && contact.ContactName != "" {
		rec.Name = contact.ContactName
	} else if detail.CustInfo != nil && detail.CustInfo.CustName != "" {
		rec.Name = detail.CustInfo.CustName
	}

	// installation contact email wins over the order attribute
	if contact != nil && contact.Email != "" {
		rec.Email = contact.Email
	} else {
		rec.Email = attrValue(detail.AttrValueList, attrContactEmail)
	}
	rec.PhoneNumber = joinPhones(detail, contact)
	rec.AppointmentDate = appointmentWindow(detail)
	rec.Address = installAddress(detail)
	rec.Package = packageName(detail)
	rec.ICNumber = icNumber(detail.CustInfo)
	rec.Creator = creator(detail)
	return rec
}

func firstContact(detail *portal.OrderDetail) *portal.CustContact {
	for i := range detail.InstallationInfoList {
		if c := detail.InstallationInfoList[i].CustContactDto; c != nil {
			return c
		}
	}
	return nil
}

func attrValue(attrs []portal.AttrValue, code string) string {
	for _, a := range attrs {
		if a.AttrCode == code {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// joinPhones collects every distinct phone number the payload carries,
// comma separated, in discovery order.
func joinPhones(detail *portal.OrderDetail, contact *portal.CustContact) string {
	var phones []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		phones = append(phones, p)
	}

	if contact != nil {
		add(contact.ContactNbr)
		add(contact.MobilePhone)
		add(contact.HomePhone)
	}
	add(attrValue(detail.AttrValueList, attrContactNumber))
	return strings.Join(phones, ", ")
}

// appointmentWindow renders "start - end" in display form. A payload
// with only a start keeps just the start.
func appointmentWindow(detail *portal.OrderDetail) string {
	for _, inst := range detail.InstallationInfoList {
		appt := inst.AppointmentInfo
		if appt == nil {
			continue
		}
		start := dateutil.FormatPortalTimestamp(appt.AppointmentStartTime)
		end := dateutil.FormatPortalTimestamp(appt.AppointmentEndTime)
		switch {
		case start != "" && end != "":
			return start + " - " + end
		case start != "":
			return start
		}
	}
	return ""
}

// installAddress prefers the installation's display address, then the
// offer instance's full-address attribute, then the customer record.
func installAddress(detail *portal.OrderDetail) string {
	for _, inst := range detail.InstallationInfoList {
		if addr := strings.TrimSpace(inst.DisplayAddress); addr != "" {
			return addr
		}
	}
	for _, item := range detail.OrderItemList {
		for _, offer := range item.OfferInstList {
			if addr := attrValue(offer.AttrValueList, attrInstallAddressFull); addr != "" {
				return addr
			}
		}
	}
	if cust := detail.CustInfo; cust != nil {
		if addr := strings.TrimSpace(cust.FullAddress); addr != "" {
			return addr
		}
		return strings.TrimSpace(cust.Address)
	}
	return ""
}

func packageName(detail *portal.OrderDetail) string {
	for _, item := range detail.OrderItemList {
		if item.MainOfferName != "" {
			return item.MainOfferName
		}
		if item.OfferName != "" {
			return item.OfferName
		}
	}
	return ""
}

// icNumber renders "number (type)", falling back to the party cert
// list when the top-level cert fields are blank.
func icNumber(cust *portal.CustInfo) string {
	if cust == nil {
		return ""
	}
	if cust.CertNbr != "" {
		return certLabel(cust.CertNbr, cust.CertTypeName)
	}
	for _, cert := range cust.PartyCertList {
		if cert.CertNbr != "" {
			return certLabel(cert.CertNbr, cert.CertTypeName)
		}
	}
	return ""
}

func certLabel(nbr, typeName string) string {
	if typeName == "" {
		return nbr
	}
	return nbr + " (" + typeName + ")"
}

func creator(detail *portal.OrderDetail) string {
	if detail.PartyName == "" {
		return detail.PartyStaffCode
	}
	if detail.PartyStaffCode == "" {
		return detail.PartyName
	}
	return detail.PartyName + " (" + detail.PartyStaffCode + ")"
}
