package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"crs-prediction-api/models"
)

var validate = validator.New()

// ValidateDraw checks a draw against the struct tags on models.Draw.
func ValidateDraw(d models.Draw) error {
	return describe(d, validate.Struct(d))
}

// ValidateStoredDraw applies the same rules except the round number, which
// draws taken from the site document never carry.
func ValidateStoredDraw(d models.Draw) error {
	return describe(d, validate.StructExcept(d, "Number"))
}

func describe(d models.Draw, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("draw %q invalid: %s", d.Number, strings.Join(fields, ", "))
}

// Partition splits draws into valid ones and the errors for the rest.
func Partition(draws []models.Draw) ([]models.Draw, []error) {
	valid := make([]models.Draw, 0, len(draws))
	var errs []error
	for _, d := range draws {
		if err := ValidateDraw(d); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, d)
	}
	return valid, errs
}
