package models

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePatient Role = "patient"
)

// Gender of a user as captured at onboarding.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// User represents an identity record. The scheduling core only reads it.
type User struct {
	BaseModel
	Name   string `gorm:"size:200;not null" json:"name"`
	Email  string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone  string `gorm:"size:32" json:"phone"`
	Gender Gender `gorm:"size:10;default:'other'" json:"gender"`
}
