package models

// Patient is the clinical profile created once per user at registration.
type Patient struct {
	BaseModel
	UserID                    string  `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Name                      string  `gorm:"size:200;not null" json:"name"`
	Age                       *int    `json:"age,omitempty"`
	Email                     string  `gorm:"size:255" json:"email,omitempty"`
	Phone                     string  `gorm:"size:32" json:"phone,omitempty"`
	IdentificationDocumentID  *string `gorm:"size:255" json:"identificationDocumentId"`
	IdentificationDocumentURL *string `gorm:"type:text" json:"identificationDocumentUrl"`
}
