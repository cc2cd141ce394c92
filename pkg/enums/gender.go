package enums

// Gender is the self-reported value from the personal step.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// EducationLevel is the highest completed level from the education step.
type EducationLevel string

const (
	EducationHighSchool EducationLevel = "high_school"
	EducationBachelor   EducationLevel = "bachelor"
	EducationMaster     EducationLevel = "master"
	EducationPhD        EducationLevel = "phd"
)

// LanguageTest names the language certificate an applicant holds.
type LanguageTest string

const (
	LanguageTestTOPIK LanguageTest = "topik"
	LanguageTestIELTS LanguageTest = "ielts"
	LanguageTestTOEFL LanguageTest = "toefl"
	LanguageTestNone  LanguageTest = "none"
)

var (
	genders         = set[Gender]{GenderMale, GenderFemale, GenderOther}
	educationLevels = set[EducationLevel]{EducationHighSchool, EducationBachelor, EducationMaster, EducationPhD}
	languageTests   = set[LanguageTest]{LanguageTestTOPIK, LanguageTestIELTS, LanguageTestTOEFL, LanguageTestNone}
)

func ParseGender(value string) (Gender, error) {
	return genders.parse("gender", value)
}

func ParseEducationLevel(value string) (EducationLevel, error) {
	return educationLevels.parse("education level", value)
}

func ParseLanguageTest(value string) (LanguageTest, error) {
	return languageTests.parse("language test", value)
}
