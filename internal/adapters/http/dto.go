package httpadapter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/projection"
)

var requestValidate = validator.New(validator.WithRequiredStructEnabled())

type redactionRequest struct {
	Indices []int `json:"indices" validate:"required,min=1,max=1000,dive,min=0"`
}

type listDocumentsRequest struct {
	Search    string `validate:"max=200"`
	Status    string `validate:"omitempty,oneof=uploaded processing analyzed redacted exported"`
	RiskLevel string `validate:"omitempty,oneof=low medium high"`
	FileKind  string `validate:"omitempty,oneof=pdf png jpeg tiff text"`
	Limit     int    `validate:"gte=0,lte=200"`
}

func parseListDocumentsRequest(values url.Values) (listDocumentsRequest, error) {
	req := listDocumentsRequest{
		Search:    strings.TrimSpace(values.Get("q")),
		Status:    strings.ToLower(strings.TrimSpace(values.Get("status"))),
		RiskLevel: strings.ToLower(strings.TrimSpace(values.Get("risk_level"))),
		FileKind:  strings.ToLower(strings.TrimSpace(values.Get("file_kind"))),
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return listDocumentsRequest{}, invalidRequest("parse list query", fmt.Errorf("limit %q is not a number", raw))
		}
		req.Limit = limit
	}
	if err := validateRequest("parse list query", req); err != nil {
		return listDocumentsRequest{}, err
	}
	return req, nil
}

func (r listDocumentsRequest) query() domain.DocumentQuery {
	return domain.DocumentQuery{
		Status:    domain.DocumentStatus(r.Status),
		RiskLevel: domain.RiskLevel(r.RiskLevel),
		FileKind:  domain.FileKind(r.FileKind),
		Search:    r.Search,
	}
}

func (r listDocumentsRequest) criteria() projection.Criteria {
	return projection.Criteria{
		Search:    r.Search,
		Status:    domain.DocumentStatus(r.Status),
		RiskLevel: domain.RiskLevel(r.RiskLevel),
		FileKind:  domain.FileKind(r.FileKind),
	}
}

func validateRequest(op string, req any) error {
	if err := requestValidate.Struct(req); err != nil {
		return invalidRequest(op, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return err
	}
	first := validationErrs[0]
	if first.Param() != "" {
		return fmt.Errorf("field %s failed %s=%s", strings.ToLower(first.Field()), first.Tag(), first.Param())
	}
	return fmt.Errorf("field %s failed %s", strings.ToLower(first.Field()), first.Tag())
}

func invalidRequest(op string, err error) error {
	return domain.WrapError(domain.ErrInvalidInput, op, err)
}
