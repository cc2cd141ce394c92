package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// Application is a student's admission file for one school.
type Application struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID          string    `gorm:"column:user_id;type:text;not null;index"`
	SchoolID        string    `gorm:"column:school_id;type:text;not null"`
	SchoolName      string    `gorm:"column:school_name;type:text;not null"`
	ReferenceNumber string    `gorm:"column:reference_number;type:text;not null;default:''"`

	// Personal (step 1)
	FirstName   *string       `gorm:"column:first_name;type:text"`
	LastName    *string       `gorm:"column:last_name;type:text"`
	Email       *string       `gorm:"column:email;type:text"`
	Phone       *string       `gorm:"column:phone;type:text"`
	Nationality *string       `gorm:"column:nationality;type:text"`
	DateOfBirth *string       `gorm:"column:date_of_birth;type:text"`
	Gender      *enums.Gender `gorm:"column:gender;type:text"`

	// Education (step 2)
	EducationLevel     *enums.EducationLevel `gorm:"column:education_level;type:text"`
	SchoolNamePrevious *string               `gorm:"column:school_name_previous;type:text"`
	Major              *string               `gorm:"column:major;type:text"`
	GraduationYear     *int                  `gorm:"column:graduation_year"`
	GPA                *string               `gorm:"column:gpa;type:text"`
	LanguageTest       *enums.LanguageTest   `gorm:"column:language_test;type:text"`
	LanguageScore      *string               `gorm:"column:language_score;type:text"`

	// Program (step 3)
	IntendedProgram  *string                     `gorm:"column:intended_program;type:text"`
	IntendedSemester *string                     `gorm:"column:intended_semester;type:text"`
	Motivation       *string                     `gorm:"column:motivation;type:text"`
	Documents        datatypes.JSONSlice[string] `gorm:"column:documents;not null;default:'[]'"`

	Status      enums.ApplicationStatus `gorm:"column:status;type:text;not null;default:draft;index"`
	CurrentStep int                     `gorm:"column:current_step;not null;default:1"`

	PaymentID     *string              `gorm:"column:payment_id;type:text"`
	PaymentStatus *enums.PaymentStatus `gorm:"column:payment_status;type:text"`
	PaymentAmount *decimal.Decimal     `gorm:"column:payment_amount;type:numeric(12,2)"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null;index"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
	SubmittedAt *time.Time `gorm:"column:submitted_at"`
	PaidAt      *time.Time `gorm:"column:paid_at"`
}

func (Application) TableName() string { return "applications" }
