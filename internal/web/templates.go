package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/justestif/wellness-tracker/internal/autherr"
	"github.com/justestif/wellness-tracker/internal/insights"
	"github.com/justestif/wellness-tracker/internal/tracker"
)

// Templates manages HTML template rendering.
type Templates struct {
	templates map[string]*template.Template
	partials  map[string]*template.Template
	funcs     template.FuncMap
}

// NewTemplates creates a new template manager by loading templates from the given filesystem.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{
		templates: make(map[string]*template.Template),
		partials:  make(map[string]*template.Template),
		funcs:     defaultFuncs(),
	}

	if err := t.load(templatesFS); err != nil {
		return nil, err
	}

	return t, nil
}

// Render renders a page template with the given data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// RenderPartial renders a partial template (without base layout) with the given data.
func (t *Templates) RenderPartial(w io.Writer, partial string, data any) error {
	tmpl, ok := t.partials[partial]
	if !ok {
		return fmt.Errorf("partial %q not found", partial)
	}
	return tmpl.ExecuteTemplate(w, partial, data)
}

// load parses all templates from the filesystem. Every page is parsed
// together with the layouts and partials; partials are also parsed alone so
// fragments can be rendered without the layout.
func (t *Templates) load(templatesFS fs.FS) error {
	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return fmt.Errorf("finding layouts: %w", err)
	}
	partials, err := fs.Glob(templatesFS, "partials/*.html")
	if err != nil {
		return fmt.Errorf("finding partials: %w", err)
	}
	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return fmt.Errorf("finding pages: %w", err)
	}

	common := append(layouts, partials...)

	for _, page := range pages {
		name := templateName(page)
		files := append([]string{page}, common...)

		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}

	for _, partial := range partials {
		name := templateName(partial)
		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, partial)
		if err != nil {
			return fmt.Errorf("parsing partial %s: %w", name, err)
		}
		t.partials[name] = tmpl
	}

	return nil
}

func templateName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".html")
}

// defaultFuncs returns the default template functions.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		// scaleColor maps a 1-5 rating to a hue between red and green.
		"scaleColor": func(v float64) template.CSS {
			if v <= 0 {
				return "hsl(0, 0%, 80%)"
			}
			hue := (min(v, 5) - 1) / 4 * 130
			return template.CSS(fmt.Sprintf("hsl(%.0f, 65%%, 45%%)", hue))
		},

		"formatDate": func(d tracker.Date) string {
			t := d.Time()
			if t.IsZero() {
				return string(d)
			}
			return t.Format("Mon, Jan 2")
		},

		// formatDateRange formats a date range as "Jan 2 - Feb 3, 2006"
		"formatDateRange": func(start, end tracker.Date) string {
			s, e := start.Time(), end.Time()
			if s.Year() == e.Year() && s.Month() == e.Month() {
				return fmt.Sprintf("%s - %s", s.Format("Jan 2"), e.Format("2, 2006"))
			}
			if s.Year() == e.Year() {
				return fmt.Sprintf("%s - %s", s.Format("Jan 2"), e.Format("Jan 2, 2006"))
			}
			return fmt.Sprintf("%s - %s", s.Format("Jan 2, 2006"), e.Format("Jan 2, 2006"))
		},

		"number": formatNumber,

		// metricLabel turns "duration_hours" into "Duration hours".
		"metricLabel": func(name string) string {
			s := strings.ReplaceAll(name, "_", " ")
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},

		"seq": func(lo, hi int) []int {
			var out []int
			for i := lo; i <= hi; i++ {
				out = append(out, i)
			}
			return out
		},

		"itoa": strconv.Itoa,
	}
}

// formatNumber prints v without trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ============================================================================
// Page data
// ============================================================================

// PageData contains common data passed to all page templates.
type PageData struct {
	Title       string
	User        *UserData
	Flash       *FlashMessage
	CurrentPath string
	Trackers    []TrackerLink
	Configured  bool
}

// UserData contains authenticated user information.
type UserData struct {
	ID    string
	Email string
	Name  string
}

// FlashMessage represents a temporary notification message.
type FlashMessage struct {
	Type    string // "success", "error", "warning", "info"
	Message string
	Action  autherr.Action
}

// TrackerLink is a navigation entry for a tracker page.
type TrackerLink struct {
	Kind  tracker.Kind
	Title string
}

// AuthPageData contains data for the login, sign-up and password pages.
type AuthPageData struct {
	PageData
	Email       string
	FullName    string
	DateOfBirth string
	Token       string
	// Missing lists the password rules the submitted password failed.
	Missing []string
	// Sent is set once an email was dispatched and the form is done.
	Sent bool
}

// DashboardPageData contains data for the dashboard overview.
type DashboardPageData struct {
	PageData
	Today tracker.Date
	Cards []TrackerCard
}

// TrackerCard summarises one tracker on the dashboard.
type TrackerCard struct {
	Kind     tracker.Kind
	Title    string
	Logged   bool
	Count    int
	Averages []MetricView
}

// MetricView is a named metric value prepared for display.
type MetricView struct {
	Name   string
	Value  float64
	Change float64
}

// TrackerPageData contains data for a tracker page: the form for the day
// being edited and the entries of the window.
type TrackerPageData struct {
	PageData
	Kind    tracker.Kind
	Date    tracker.Date
	Fields  []FieldView
	Columns []string
	Rows    []EntryRow
	Metrics []MetricView
	Days    int
}

// FieldView is a form field with its current value.
type FieldView struct {
	formField
	Value string
}

// EntryRow is one entry in the tracker history table.
type EntryRow struct {
	Date   tracker.Date
	Values []string
}

// EntryListData is the data of the entry-list partial.
type EntryListData struct {
	Kind    tracker.Kind
	Columns []string
	Rows    []EntryRow
}

// ProfilePageData contains data for the profile page.
type ProfilePageData struct {
	PageData
	Profile      *tracker.Profile
	DateOfBirth  string
	WeightGoalKg string
	Missing      []string
}

// InsightsPageData contains data for the insights page.
type InsightsPageData struct {
	PageData
	Report *insights.Report
	Days   int
}
