package domain

import (
	"encoding/json"
	"time"
)

// PinStatus is the moderation lifecycle state of a pin.
type PinStatus string

const (
	StatusPending  PinStatus = "pending"
	StatusActive   PinStatus = "active"
	StatusDisputed PinStatus = "disputed"
	StatusRemoved  PinStatus = "removed"
)

// Valid reports whether s is one of the known statuses.
func (s PinStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDisputed, StatusRemoved:
		return true
	}
	return false
}

// Pin is a user-submitted geolocated report.
type Pin struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Category           string    `json:"category"`
	Lat                float64   `json:"lat"`
	Lng                float64   `json:"lng"`
	Tags               []string  `json:"tags"`
	Rating             *float64  `json:"rating"`
	Images             []string  `json:"images"`
	IsPublic           bool      `json:"is_public"`
	Status             PinStatus `json:"status"`
	OwnerID            *string   `json:"created_by"`
	OwnerUsername      string    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	ConfirmationsCount int       `json:"confirmations_count"`
}

// OwnedBy reports whether userID owns the pin. Ownerless pins are owned by nobody.
func (p *Pin) OwnedBy(userID string) bool {
	return userID != "" && p.OwnerID != nil && *p.OwnerID == userID
}

// Confirmation is one user's corroboration of one pin.
type Confirmation struct {
	ID        string    `json:"id"`
	PinID     string    `json:"pin_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Confirmer identifies a user who confirmed a pin.
type Confirmer struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}

// PinView is the projection of a pin returned to clients.
type PinView struct {
	Pin
	Color         Tier        `json:"color"`
	UserConfirmed bool        `json:"user_confirmed"`
	ConfirmedBy   []Confirmer `json:"confirmed_by,omitempty"`
}

// MarshalJSON writes confirmed_by whenever it is set, as [] when nobody has
// confirmed yet. Anonymous projections leave it nil and omit the key.
func (v PinView) MarshalJSON() ([]byte, error) {
	type view PinView
	out := struct {
		view
		ConfirmedBy *[]Confirmer `json:"confirmed_by,omitempty"`
	}{view: view(v)}
	if v.ConfirmedBy != nil {
		out.ConfirmedBy = &v.ConfirmedBy
	}
	return json.Marshal(out)
}

// NewPinView projects p for actor. confirmers may be nil when unknown.
func NewPinView(p Pin, actor Actor, confirmers []Confirmer) PinView {
	v := PinView{Pin: p, Color: TierFor(p.ConfirmationsCount)}
	if p.Tags == nil {
		v.Tags = []string{}
	}
	if p.Images == nil {
		v.Images = []string{}
	}
	if !actor.Authenticated() {
		return v
	}
	for _, c := range confirmers {
		if c.UserID == actor.UserID {
			v.UserConfirmed = true
		}
	}
	v.ConfirmedBy = confirmers
	if v.ConfirmedBy == nil {
		v.ConfirmedBy = []Confirmer{}
	}
	return v
}

// PinInput carries the client-writable fields of a new pin. Status, visibility
// and owner are assigned by the server and have no place here.
type PinInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Tags        []string `json:"tags"`
	Rating      *float64 `json:"rating"`
	Images      []string `json:"images"`
}

// PinPatch is a partial update of the content fields of a pin.
type PinPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
	Tags        *[]string `json:"tags"`
	Rating      *float64  `json:"rating"`
	Images      *[]string `json:"images"`
}

// Apply copies the set fields of patch onto p.
func (patch PinPatch) Apply(p *Pin) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Lat != nil {
		p.Lat = *patch.Lat
	}
	if patch.Lng != nil {
		p.Lng = *patch.Lng
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
	if patch.Rating != nil {
		r := *patch.Rating
		p.Rating = &r
	}
	if patch.Images != nil {
		p.Images = *patch.Images
	}
}

// AdminPinRow is one line of the administrative pin listing.
type AdminPinRow struct {
	Pin
	OwnerUsername string `json:"owner_username,omitempty"`
	Color         Tier   `json:"color"`
	ColorHex      string `json:"color_hex"`
	ConfirmedBy   string `json:"confirmed_by"`
}

// PinEventType names a ledger or pin lifecycle event.
type PinEventType string

const (
	EventPinCreated          PinEventType = "pin.created"
	EventConfirmationCreated PinEventType = "confirmation.created"
	EventConfirmationDeleted PinEventType = "confirmation.deleted"
	EventPinStatusChanged    PinEventType = "pin.status_changed"
)

// PinEvent is published after a committed mutation.
type PinEvent struct {
	Type   PinEventType `json:"type"`
	PinID  string       `json:"pin_id"`
	UserID string       `json:"user_id,omitempty"`
	At     time.Time    `json:"at"`
}
