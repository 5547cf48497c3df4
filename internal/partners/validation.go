package partners

import (
	"strings"

	"github.com/meridian-assist/meridian/internal/shared"
)

func (s *Service) validate(input PartnerInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return shared.Validationf("partner name is required")
	}
	if input.Email != "" && !strings.Contains(input.Email, "@") {
		return shared.Validationf("partner email is invalid")
	}
	return nil
}
