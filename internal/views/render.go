package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"

	"irrigation-node/internal/journal"
)

//go:embed templates
var viewsFS embed.FS

var dashboardTmpl *template.Template

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	dashboardTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// DashboardData is the view model for the node's status page.
type DashboardData struct {
	DeviceID         string
	Version          string
	LocalTime        string
	Connected        bool
	TimeSynchronized bool
	PumpRuns24h      int
	LastCycle        *journal.Cycle
	Cycles           []journal.Cycle
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderCyclesPartial executes only the cycle table into w.
func RenderCyclesPartial(w io.Writer, cycles []journal.Cycle) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/cycles.html", cycles)
}
