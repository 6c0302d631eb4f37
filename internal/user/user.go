package user

import "time"

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInActive Status = "InActive"
)

// Valid reports whether s is one of the two known statuses.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInActive
}

// User is a directory record. Profile is nil when no image was uploaded.
type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile"`
	Gender    Gender    `json:"gender"`
	Status    Status    `json:"status"`
	Profile   *string   `json:"profile"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName joins first and last name the way exports display it.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// CreateInput carries the fields accepted when creating a user.
type CreateInput struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Mobile    string `json:"mobile" validate:"required,mobile"`
	Gender    Gender `json:"gender" validate:"required,oneof=Male Female"`
	Status    Status `json:"status" validate:"omitempty,oneof=Active InActive"`
	Location  string `json:"location" validate:"required,min=2,max=100"`
}

// Patch is a partial update: nil fields are left untouched.
type Patch struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName  *string `json:"lastName" validate:"omitempty,min=2,max=50"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Mobile    *string `json:"mobile" validate:"omitempty,mobile"`
	Gender    *Gender `json:"gender" validate:"omitempty,oneof=Male Female"`
	Status    *Status `json:"status" validate:"omitempty,oneof=Active InActive"`
	Location  *string `json:"location" validate:"omitempty,min=2,max=100"`

	// Profile is set by the service after an upload, never by clients.
	Profile *string `json:"-"`
}

// Empty reports whether the patch carries no field at all.
func (p Patch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Mobile == nil &&
		p.Gender == nil && p.Status == nil && p.Location == nil && p.Profile == nil
}

// Apply copies every present field of p onto u.
func (p Patch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Mobile != nil {
		u.Mobile = *p.Mobile
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	if p.Profile != nil {
		u.Profile = p.Profile
	}
}
