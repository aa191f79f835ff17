package identity

import "errors"

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// Action is an operation guarded by the permission table.
type Action int

const (
	ViewDashboard Action = iota + 1
	ViewAppointments
	BookAppointment
	UpdateAppointmentStatus
	ManagePets
	ManageOwnPets
	ManageServices
	ManageStaff
	ManageInvitations
	ManageSettings
	ManageBilling
	ManageClinics
	ManageUsers
	ViewPortal
)

var actionNames = map[Action]string{
	ViewDashboard:           "view_dashboard",
	ViewAppointments:        "view_appointments",
	BookAppointment:         "book_appointment",
	UpdateAppointmentStatus: "update_appointment_status",
	ManagePets:              "manage_pets",
	ManageOwnPets:           "manage_own_pets",
	ManageServices:          "manage_services",
	ManageStaff:             "manage_staff",
	ManageInvitations:       "manage_invitations",
	ManageSettings:          "manage_settings",
	ManageBilling:           "manage_billing",
	ManageClinics:           "manage_clinics",
	ManageUsers:             "manage_users",
	ViewPortal:              "view_portal",
}

// Actions lists every guarded action.
func Actions() []Action {
	out := make([]Action, 0, len(actionNames))
	for a := ViewDashboard; a <= ViewPortal; a++ {
		out = append(out, a)
	}
	return out
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Can is the permission table. Every role has its own case so adding a role
// forces a decision for each action.
func Can(role Role, action Action) bool {
	switch role {
	case SuperAdmin:
		switch action {
		case ViewPortal, ManageOwnPets:
			return false
		default:
			return action >= ViewDashboard && action <= ManageUsers
		}
	case ClinicAdmin:
		switch action {
		case ViewDashboard, ViewAppointments, BookAppointment, UpdateAppointmentStatus,
			ManagePets, ManageServices, ManageStaff, ManageInvitations, ManageSettings, ManageBilling:
			return true
		}
		return false
	case Vet:
		switch action {
		case ViewDashboard, ViewAppointments, UpdateAppointmentStatus, ManagePets:
			return true
		}
		return false
	case Receptionist:
		switch action {
		case ViewDashboard, ViewAppointments, BookAppointment, UpdateAppointmentStatus, ManagePets:
			return true
		}
		return false
	case PetOwner:
		switch action {
		case ViewPortal, ManageOwnPets, BookAppointment:
			return true
		}
		return false
	}
	return false
}

// Require returns ErrUnauthenticated or ErrForbidden when id may not perform action.
func Require(id *Identity, action Action) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if !Can(id.Role, action) {
		return ErrForbidden
	}
	return nil
}
