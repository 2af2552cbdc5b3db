package report

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Validate checks that every table of r has columns and rows. It looks at
// presence only: content, types and cross references are not inspected.
// An empty rows slice is valid, a nil one is not.
func Validate(r Report) ValidationResult {
	var errs []string
	switch v := r.(type) {
	case Single:
		errs = checkData("Data", v.Data)
	case Combined:
		errs = append(checkData("Cloud data", v.Cloud), checkData("Backup data", v.Backup)...)
	default:
		errs = []string{"Report data is missing"}
	}
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func checkData(label string, d Data) []string {
	var errs []string
	if d.Columns == nil {
		errs = append(errs, label+" columns are missing or invalid")
	}
	if d.Rows == nil {
		errs = append(errs, label+" rows are missing or invalid")
	}
	return errs
}
