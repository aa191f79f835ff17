package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateBookingReceived  = "booking_received"
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateStatusChanged    = "status_changed"
	TemplateInvitation       = "invitation"
)

// Renderer renders the HTML email bodies. Each template defines "content" and
// is rendered inside the shared "layout".
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: map[string]*template.Template{}}
	for _, name := range []string{TemplateBookingReceived, TemplateBookingConfirmed, TemplateStatusChanged, TemplateInvitation} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

func (r *Renderer) Render(name string, data any) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// AppointmentData feeds the appointment templates.
type AppointmentData struct {
	ClinicName      string
	RecipientName   string
	PetName         string
	ServiceName     string
	VetName         string
	When            string
	Status          string
	PaymentRequired bool
}

type InvitationData struct {
	ClinicName string
	Role       string
	Link       string
	Expires    string
}
