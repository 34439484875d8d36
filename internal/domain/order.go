package domain

// Headers is the column schema of a month tab / CSV file, in order.
// Column positions are load-bearing: Created Date drives the end-of-run
// sort and Last Synced drives the complete/incomplete partition.
var Headers = []string{
	"Order Number",
	"Order Status",
	"Created Date",
	"Updated Date",
	"Name",
	"Email",
	"Phone Number",
	"Appointment Date",
	"Address",
	"Package",
	"IC Number",
	"Creator",
	"Last Synced",
}

// Column indexes into Headers.
const (
	ColOrderNumber = 0
	ColOrderStatus = 1
	ColCreatedDate = 2
	ColUpdatedDate = 3
	ColLastSynced  = 12
)

// OrderRecord is one normalized portal order, keyed by OrderNumber.
// OrderNumber is opaque text; portal order numbers are long digit strings
// that must never pass through a numeric type.
type OrderRecord struct {
	OrderNumber     string `json:"order_number"`
	OrderStatus     string `json:"order_status"`
	CreatedDate     string `json:"created_date"`
	UpdatedDate     string `json:"updated_date"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	AppointmentDate string `json:"appointment_date"`
	Address         string `json:"address"`
	Package         string `json:"package"`
	ICNumber        string `json:"ic_number"`
	Creator         string `json:"creator"`
	LastSynced      string `json:"last_synced"`
}

// Values returns the record as a row in Headers order.
func (r *OrderRecord) Values() []string {
	return []string{
		r.OrderNumber,
		r.OrderStatus,
		r.CreatedDate,
		r.UpdatedDate,
		r.Name,
		r.Email,
		r.PhoneNumber,
		r.AppointmentDate,
		r.Address,
		r.Package,
		r.ICNumber,
		r.Creator,
		r.LastSynced,
	}
}

// RecordFromValues rebuilds a record from a row in Headers order.
// Short rows are tolerated; missing cells stay empty.
func RecordFromValues(values []string) OrderRecord {
	get := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}
	return OrderRecord{
		OrderNumber:     get(0),
		OrderStatus:     get(1),
		CreatedDate:     get(2),
		UpdatedDate:     get(3),
		Name:            get(4),
		Email:           get(5),
		PhoneNumber:     get(6),
		AppointmentDate: get(7),
		Address:         get(8),
		Package:         get(9),
		ICNumber:        get(10),
		Creator:         get(11),
		LastSynced:      get(12),
	}
}
