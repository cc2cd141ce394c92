package applications

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// StepData is a partial wizard update. Nil fields are left untouched.
type StepData struct {
	FirstName   *string       `json:"firstName,omitempty"`
	LastName    *string       `json:"lastName,omitempty"`
	Email       *string       `json:"email,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	Nationality *string       `json:"nationality,omitempty"`
	DateOfBirth *string       `json:"dateOfBirth,omitempty"`
	Gender      *enums.Gender `json:"gender,omitempty"`

	EducationLevel     *enums.EducationLevel `json:"educationLevel,omitempty"`
	SchoolNamePrevious *string               `json:"schoolNamePrevious,omitempty"`
	Major              *string               `json:"major,omitempty"`
	GraduationYear     *int                  `json:"graduationYear,omitempty"`
	GPA                *string               `json:"gpa,omitempty"`
	LanguageTest       *enums.LanguageTest   `json:"languageTest,omitempty"`
	LanguageScore      *string               `json:"languageScore,omitempty"`

	IntendedProgram  *string   `json:"intendedProgram,omitempty"`
	IntendedSemester *string   `json:"intendedSemester,omitempty"`
	Motivation       *string   `json:"motivation,omitempty"`
	Documents        *[]string `json:"documents,omitempty"`
}

func (d StepData) columns() map[string]any {
	cols := map[string]any{}
	setString := func(name string, v *string) {
		if v != nil {
			cols[name] = *v
		}
	}
	setString("first_name", d.FirstName)
	setString("last_name", d.LastName)
	setString("email", d.Email)
	setString("phone", d.Phone)
	setString("nationality", d.Nationality)
	setString("date_of_birth", d.DateOfBirth)
	if d.Gender != nil {
		cols["gender"] = *d.Gender
	}
	if d.EducationLevel != nil {
		cols["education_level"] = *d.EducationLevel
	}
	setString("school_name_previous", d.SchoolNamePrevious)
	setString("major", d.Major)
	if d.GraduationYear != nil {
		cols["graduation_year"] = *d.GraduationYear
	}
	setString("gpa", d.GPA)
	if d.LanguageTest != nil {
		cols["language_test"] = *d.LanguageTest
	}
	setString("language_score", d.LanguageScore)
	setString("intended_program", d.IntendedProgram)
	setString("intended_semester", d.IntendedSemester)
	setString("motivation", d.Motivation)
	if d.Documents != nil {
		docs := *d.Documents
		if docs == nil {
			docs = []string{}
		}
		cols["documents"] = datatypes.JSONSlice[string](docs)
	}
	return cols
}

// ListFilter narrows the admin listing. Zero values match everything.
type ListFilter struct {
	Status   enums.ApplicationStatus
	SchoolID string
	UserID   string
}

// ApplicationDTO is the transport shape of an application.
type ApplicationDTO struct {
	ID              uuid.UUID               `json:"id"`
	UserID          string                  `json:"userId"`
	SchoolID        string                  `json:"schoolId"`
	SchoolName      string                  `json:"schoolName"`
	ReferenceNumber string                  `json:"referenceNumber"`
	Status          enums.ApplicationStatus `json:"status"`
	CurrentStep     int                     `json:"currentStep"`

	FirstName   *string       `json:"firstName,omitempty"`
	LastName    *string       `json:"lastName,omitempty"`
	Email       *string       `json:"email,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	Nationality *string       `json:"nationality,omitempty"`
	DateOfBirth *string       `json:"dateOfBirth,omitempty"`
	Gender      *enums.Gender `json:"gender,omitempty"`

	EducationLevel     *enums.EducationLevel `json:"educationLevel,omitempty"`
	SchoolNamePrevious *string               `json:"schoolNamePrevious,omitempty"`
	Major              *string               `json:"major,omitempty"`
	GraduationYear     *int                  `json:"graduationYear,omitempty"`
	GPA                *string               `json:"gpa,omitempty"`
	LanguageTest       *enums.LanguageTest   `json:"languageTest,omitempty"`
	LanguageScore      *string               `json:"languageScore,omitempty"`

	IntendedProgram  *string  `json:"intendedProgram,omitempty"`
	IntendedSemester *string  `json:"intendedSemester,omitempty"`
	Motivation       *string  `json:"motivation,omitempty"`
	Documents        []string `json:"documents"`

	PaymentID     *string              `json:"paymentId,omitempty"`
	PaymentStatus *enums.PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentAmount *decimal.Decimal     `json:"paymentAmount,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
}

func FromModel(a *models.Application) *ApplicationDTO {
	if a == nil {
		return nil
	}
	docs := []string(a.Documents)
	if docs == nil {
		docs = []string{}
	}
	return &ApplicationDTO{
		ID:                 a.ID,
		UserID:             a.UserID,
		SchoolID:           a.SchoolID,
		SchoolName:         a.SchoolName,
		ReferenceNumber:    a.ReferenceNumber,
		Status:             a.Status,
		CurrentStep:        a.CurrentStep,
		FirstName:          a.FirstName,
		LastName:           a.LastName,
		Email:              a.Email,
		Phone:              a.Phone,
		Nationality:        a.Nationality,
		DateOfBirth:        a.DateOfBirth,
		Gender:             a.Gender,
		EducationLevel:     a.EducationLevel,
		SchoolNamePrevious: a.SchoolNamePrevious,
		Major:              a.Major,
		GraduationYear:     a.GraduationYear,
		GPA:                a.GPA,
		LanguageTest:       a.LanguageTest,
		LanguageScore:      a.LanguageScore,
		IntendedProgram:    a.IntendedProgram,
		IntendedSemester:   a.IntendedSemester,
		Motivation:         a.Motivation,
		Documents:          docs,
		PaymentID:          a.PaymentID,
		PaymentStatus:      a.PaymentStatus,
		PaymentAmount:      a.PaymentAmount,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
		SubmittedAt:        a.SubmittedAt,
		PaidAt:             a.PaidAt,
	}
}

// FromModels maps a slice of applications.
func FromModels(list []models.Application) []ApplicationDTO {
	out := make([]ApplicationDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}
