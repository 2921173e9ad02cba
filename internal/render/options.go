// Package render binds calendar events to a grid/timeline component and
// turns the component's interaction callbacks into calls on the event model.
package render

import "time"

// DefaultMobileWidth is the viewport width below which the condensed layout
// is used.
const DefaultMobileWidth = 500

// View names understood by the grid component.
const (
	ViewThreeDays = "timeGrid3Days"
	ViewDay       = "timeGridDay"
	ViewWeek      = "timeGridWeek"
	ViewMonth     = "dayGridMonth"
	ViewListWeek  = "listWeek"
)

// Toolbar lists comma separated button groups per toolbar slot.
type Toolbar struct {
	Left   string `json:"left,omitempty"`
	Center string `json:"center,omitempty"`
	Right  string `json:"right,omitempty"`
}

// ViewDef declares a custom time-grid view.
type ViewDef struct {
	Type         string `json:"type"`
	DurationDays int    `json:"durationDays"`
	ButtonText   string `json:"buttonText"`
}

// DayHeaderLink annotates a day column header so the host application can
// navigate to the note of that day.
type DayHeaderLink struct {
	Label    string   `json:"label"`
	Href     string   `json:"href"`
	DataHref string   `json:"dataHref"`
	Class    string   `json:"class"`
	Target   string   `json:"target"`
	Rel      string   `json:"rel"`
	Parts    []string `json:"parts"`
}

// Options is the configuration bundle handed to the grid component.
type Options struct {
	Mobile          bool               `json:"mobile"`
	InitialView     string             `json:"initialView"`
	HeaderToolbar   Toolbar            `json:"headerToolbar"`
	Views           map[string]ViewDef `json:"views"`
	NowIndicator    bool               `json:"nowIndicator"`
	ScrollTimeReset bool               `json:"scrollTimeReset"`
	DayHeaderFormat string             `json:"dayHeaderFormat"`
	Locale          string             `json:"locale"`
	FirstDay        int                `json:"firstDay"`
	Selectable      bool               `json:"selectable"`
	SelectMirror    bool               `json:"selectMirror"`
	Editable        bool               `json:"editable"`

	// DayHeader is called for every rendered day column.
	DayHeader func(day time.Time) DayHeaderLink `json:"-"`
}

// BuildOptions derives the component configuration from settings.
func BuildOptions(s Settings) Options {
	threshold := s.MobileWidth
	if threshold <= 0 {
		threshold = DefaultMobileWidth
	}
	mobile := s.Width > 0 && s.Width < threshold

	opts := Options{
		Mobile:          mobile,
		NowIndicator:    true,
		ScrollTimeReset: false,
		DayHeaderFormat: "ddd DD/MM",
		Locale:          "en-GB",
		FirstDay:        int(s.FirstDay),
		Selectable:      s.Handlers.Select != nil,
		SelectMirror:    s.Handlers.Select != nil,
		Editable:        s.Handlers.ModifyEvent != nil,
		DayHeader:       DayHeader,
	}

	dayButton := "day"
	if mobile {
		dayButton = "1"
		opts.InitialView = ViewThreeDays
		opts.HeaderToolbar = Toolbar{
			Left:  ViewThreeDays + "," + ViewDay + "," + ViewListWeek,
			Right: "today,prev,next",
		}
	} else {
		opts.InitialView = ViewWeek
		opts.HeaderToolbar = Toolbar{
			Left:   "prev,next today",
			Center: "title",
			Right:  ViewMonth + "," + ViewWeek + "," + ViewDay + "," + ViewListWeek,
		}
	}
	opts.Views = map[string]ViewDef{
		ViewDay:       {Type: "timeGrid", DurationDays: 1, ButtonText: dayButton},
		ViewThreeDays: {Type: "timeGrid", DurationDays: 3, ButtonText: "3"},
	}
	return opts
}

// DayHeader returns the link annotation for day, targeting its ISO date.
func DayHeader(day time.Time) DayHeaderLink {
	iso := day.Format(time.DateOnly)
	return DayHeaderLink{
		Label:    day.Format("Mon 02/01"),
		Href:     iso,
		DataHref: iso,
		Class:    "internal-link",
		Target:   "_blank",
		Rel:      "noopener",
		Parts:    []string{"link", "internal-link"},
	}
}
