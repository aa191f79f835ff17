package handlers

import (
	"net/http"
	"strings"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

type petRequest struct {
	Name        string `json:"name"`
	Species     string `json:"species"`
	Breed       string `json:"breed"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"date_of_birth"`
	OwnerID     string `json:"owner_id"`
	OwnerEmail  string `json:"owner_email"`
	ClinicSlug  string `json:"clinic_slug"`
}

func (p petRequest) input() model.PetInput {
	return model.PetInput{
		Name:        p.Name,
		Species:     p.Species,
		Breed:       p.Breed,
		Gender:      p.Gender,
		DateOfBirth: p.DateOfBirth,
	}
}

// petScope authorizes a pet request. Staff see every pet of their clinic;
// owners see only their own pets.
func (h *Handler) petScope(w http.ResponseWriter, r *http.Request) (*identity.Identity, storage.PetScope, bool) {
	id := identity.FromContext(r.Context())
	if id != nil && id.Role == identity.PetOwner {
		if _, ok := h.authorize(w, r, identity.ManageOwnPets); !ok {
			return nil, storage.PetScope{}, false
		}
		return id, storage.PetScope{OwnerID: id.UserID}, true
	}
	id, clinicID, ok := h.staffScope(w, r, identity.ManagePets)
	if !ok {
		return nil, storage.PetScope{}, false
	}
	return id, storage.PetScope{ClinicID: clinicID}, true
}

func (h *Handler) ListPets(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.petScope(w, r)
	if !ok {
		return
	}
	pets, err := h.store.ListPets(r.Context(), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(pets))
}

func (h *Handler) GetPet(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.petScope(w, r)
	if !ok {
		return
	}
	pet, err := h.store.GetPet(r.Context(), pathID(r), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, pet)
}

// CreatePet registers a pet. Staff name the owner by id or email; owners
// register their own pets with their clinic, or the clinic named by slug.
func (h *Handler) CreatePet(w http.ResponseWriter, r *http.Request) {
	id, scope, ok := h.petScope(w, r)
	if !ok {
		return
	}
	var req petRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var pet model.Pet
	if err := req.input().Apply(&pet, h.now()); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	var owner model.User
	if scope.OwnerID != "" {
		u, err := h.store.GetUser(ctx, id.UserID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		owner = u
		pet.ClinicID = owner.ClinicID
		if slug := strings.TrimSpace(req.ClinicSlug); slug != "" {
			clinic, err := h.store.GetClinicBySlug(ctx, slug)
			if err != nil {
				if storage.IsNotFound(err) {
					h.fail(w, r, model.Invalid("clinic_slug", "clinic not found"))
					return
				}
				h.fail(w, r, err)
				return
			}
			pet.ClinicID = clinic.ID
		}
		if pet.ClinicID == "" {
			h.fail(w, r, model.Invalid("clinic_slug", "is required"))
			return
		}
	} else {
		ownerID := strings.TrimSpace(req.OwnerID)
		ownerEmail := strings.ToLower(strings.TrimSpace(req.OwnerEmail))
		if ownerID == "" && ownerEmail == "" {
			h.fail(w, r, model.Invalid("owner_id", "owner_id or owner_email is required"))
			return
		}
		u, err := h.store.GetOwner(ctx, ownerID, ownerEmail)
		if err != nil {
			if storage.IsNotFound(err) {
				h.fail(w, r, model.Invalid("owner_id", "pet owner not found"))
				return
			}
			h.fail(w, r, err)
			return
		}
		owner = u
		pet.ClinicID = scope.ClinicID
	}
	pet.OwnerID = owner.ID

	if err := h.store.CreatePet(ctx, &pet); err != nil {
		h.fail(w, r, err)
		return
	}
	if owner.ClinicID == "" {
		if err := h.store.BindOwnerClinic(ctx, owner.ID, pet.ClinicID); err != nil {
			h.logger.Warn("bind owner clinic failed", "user_id", owner.ID, "clinic_id", pet.ClinicID, "err", err)
		}
	}
	writeOK(w, http.StatusCreated, pet)
}

func (h *Handler) UpdatePet(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.petScope(w, r)
	if !ok {
		return
	}
	var req petRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	pet, err := h.store.GetPet(ctx, pathID(r), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.input().Apply(&pet, h.now()); err != nil {
		h.fail(w, r, err)
		return
	}
	pet, err = h.store.UpdatePet(ctx, pet, scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, pet)
}

func (h *Handler) DeletePet(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.petScope(w, r)
	if !ok {
		return
	}
	if err := h.store.DeactivatePet(r.Context(), pathID(r), scope); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
