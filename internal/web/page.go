package web

import (
	"html/template"
	"net/http"
	"sort"
	"time"

	appLog "vaultcal/internal/log"
	"vaultcal/internal/render"
)

var calendarTmpl = template.Must(template.New("calendar").Parse(`<!DOCTYPE html>
<html lang="en-GB">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; }
.grid { display: grid; grid-template-columns: repeat({{len .Days}}, 1fr); }
.day { border-left: 1px solid #ccc; padding: 4px; min-height: 100vh; }
.day.today { background: #fdf6e3; }
.event { border-radius: 3px; margin: 2px 0; padding: 2px 4px; background: #dbeafe; }
.event.ics, .event.gcal { background: #e5e7eb; }
.time { font-size: 0.8em; color: #555; }
</style>
</head>
<body>
<div class="grid" data-view="{{.View}}" data-ready="true">
{{range .Days}}<section class="day{{if .Today}} today{{end}}">
<h2><a href="{{.Header.Href}}" data-href="{{.Header.DataHref}}" class="{{.Header.Class}}" target="{{.Header.Target}}" rel="{{.Header.Rel}}">{{.Header.Label}}</a></h2>
{{range .Events}}<div class="event {{.Kind}}" data-id="{{.ID}}" data-editable="{{.Editable}}">
{{if .AllDay}}<span class="time">all day</span>{{else}}<span class="time">{{.Start.Format "15:04"}}</span>{{end}}
<span class="title">{{.Title}}</span>
</div>
{{end}}</section>
{{end}}</div>
</body>
</html>
`))

type pageDay struct {
	Header render.DayHeaderLink
	Today  bool
	Events []render.Display
}

type pageData struct {
	Title string
	View  string
	Days  []pageDay
}

// handleCalendar renders the server-side agenda used for snapshots. The
// number of columns follows the viewport: three days below the mobile
// width, a week otherwise.
//
// GET /calendar?width=984
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	s.syncRenderer(r.Context())

	opts := s.options(parseIntDefault(r.URL.Query().Get("width"), 0))
	loc := s.cfg.Location()
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	first, count := today, 3
	if !opts.Mobile {
		count = 7
		offset := (int(today.Weekday()) - opts.FirstDay + 7) % 7
		first = today.AddDate(0, 0, -offset)
	}

	data := pageData{
		Title: "vaultcal",
		View:  opts.InitialView,
		Days:  buildDays(s.comp.Events(), first, count, today),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := calendarTmpl.Execute(w, data); err != nil {
		appLog.Error("web: render calendar page", err)
	}
}

// buildDays buckets events into count day columns starting at first.
func buildDays(events []render.Display, first time.Time, count int, today time.Time) []pageDay {
	days := make([]pageDay, count)
	for i := range days {
		day := first.AddDate(0, 0, i)
		next := day.AddDate(0, 0, 1)
		pd := pageDay{
			Header: render.DayHeader(day),
			Today:  day.Equal(today),
		}
		for _, ev := range events {
			if onDay(ev, day, next) {
				pd.Events = append(pd.Events, ev)
			}
		}
		sort.SliceStable(pd.Events, func(a, b int) bool {
			ea, eb := pd.Events[a], pd.Events[b]
			if ea.AllDay != eb.AllDay {
				return ea.AllDay
			}
			return ea.Start.Before(eb.Start)
		})
		days[i] = pd
	}
	return days
}

// onDay reports whether ev intersects [day, next). An all-day end is
// exclusive.
func onDay(ev render.Display, day, next time.Time) bool {
	end := ev.Start
	if ev.End != nil {
		end = *ev.End
	}
	if !ev.Start.Before(next) {
		return false
	}
	if end.Equal(ev.Start) {
		return !ev.Start.Before(day)
	}
	return end.After(day)
}
