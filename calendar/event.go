package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Placeholders used when the API omits an optional field.
const (
	NoName            = "<No Name>"
	NoStreet          = "<No Street>"
	NoCity            = "<No City>"
	NoState           = "<No State>"
	NoCountryOrRegion = "<No Country Or Region>"
	NoPostalCode      = "<No Postal Code>"

	// Absent is used for an absent address or coordinates.
	Absent = "null"
)

// Event is one calendar event mapped from a calendar view response. The
// formatted fields are never empty because of a missing sub-object; they
// carry a placeholder instead.
type Event struct {
	// Organizer is formatted "Name <address>".
	Organizer string
	Subject   string

	// Start and End are UTC instants.
	Start time.Time
	End   time.Time

	LocationName string

	// LocationAddress is formatted "street, city, state, country, postal
	// code", or Absent.
	LocationAddress string

	// LocationCoordinates is formatted "lat, lon", or Absent.
	LocationCoordinates string

	WebLink          string
	OnlineMeetingUrl string
}

type apiEvent struct {
	Subject          string        `json:"Subject"`
	Organizer        *apiRecipient `json:"Organizer"`
	Start            *apiDateTime  `json:"Start"`
	End              *apiDateTime  `json:"End"`
	Location         *apiLocation  `json:"Location"`
	WebLink          string        `json:"WebLink"`
	OnlineMeetingUrl string        `json:"OnlineMeetingUrl"`
}

type apiRecipient struct {
	EmailAddress *apiEmailAddress `json:"EmailAddress"`
}

type apiEmailAddress struct {
	Name    string `json:"Name"`
	Address string `json:"Address"`
}

type apiDateTime struct {
	DateTime string `json:"DateTime"`
	TimeZone string `json:"TimeZone"`
}

type apiLocation struct {
	DisplayName string          `json:"DisplayName"`
	Address     *apiAddress     `json:"Address"`
	Coordinates *apiCoordinates `json:"Coordinates"`
}

type apiAddress struct {
	Street          string `json:"Street"`
	City            string `json:"City"`
	State           string `json:"State"`
	CountryOrRegion string `json:"CountryOrRegion"`
	PostalCode      string `json:"PostalCode"`
}

type apiCoordinates struct {
	Latitude  json.Number `json:"Latitude"`
	Longitude json.Number `json:"Longitude"`
}

func (e *apiEvent) event() (Event, error) {
	start, err := e.Start.instant()
	if err != nil {
		return Event{}, fmt.Errorf("start: %w", err)
	}
	end, err := e.End.instant()
	if err != nil {
		return Event{}, fmt.Errorf("end: %w", err)
	}
	ev := Event{
		Organizer:           organizer(e.Organizer),
		Subject:             e.Subject,
		Start:               start,
		End:                 end,
		LocationAddress:     Absent,
		LocationCoordinates: Absent,
		WebLink:             e.WebLink,
		OnlineMeetingUrl:    e.OnlineMeetingUrl,
	}
	if l := e.Location; l != nil {
		ev.LocationName = l.DisplayName
		ev.LocationAddress = l.Address.String()
		ev.LocationCoordinates = l.Coordinates.String()
	}
	return ev, nil
}

func organizer(r *apiRecipient) string {
	name, addr := NoName, ""
	if r != nil && r.EmailAddress != nil {
		if r.EmailAddress.Name != "" {
			name = r.EmailAddress.Name
		}
		addr = r.EmailAddress.Address
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

func (a *apiAddress) String() string {
	if a == nil {
		return Absent
	}
	return strings.Join([]string{
		orPlaceholder(a.Street, NoStreet),
		orPlaceholder(a.City, NoCity),
		orPlaceholder(a.State, NoState),
		orPlaceholder(a.CountryOrRegion, NoCountryOrRegion),
		orPlaceholder(a.PostalCode, NoPostalCode),
	}, ", ")
}

func (c *apiCoordinates) String() string {
	if c == nil {
		return Absent
	}
	return fmt.Sprintf("%s, %s", c.Latitude, c.Longitude)
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

// localLayout is the API's zone-less date time, with optional fractional
// seconds.
const localLayout = "2006-01-02T15:04:05"

// instant parses the event time as a UTC instant. Times without a zone are
// taken to be UTC; an absent time is the zero time.
func (d *apiDateTime) instant() (time.Time, error) {
	if d == nil || d.DateTime == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, d.DateTime); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(localLayout, d.DateTime, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date time %q: %w", d.DateTime, err)
	}
	return t, nil
}
