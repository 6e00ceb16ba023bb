package recommend

import (
	"fmt"
	"strings"

	"github.com/leakscope/backend/internal/signals"
)

// Derive maps fired signal categories to a fixed remediation checklist,
// substituting extracted entity names where available. The result is never
// empty; entries with no category signal get the manual-analysis fallback.
func Derive(profile signals.Profile, isLeak bool) []string {
	var recommendations []string

	orgs := joinOrDefault(profile.OrgEntities, "the affected services")
	geoSuffix := ""
	if len(profile.GeoEntities) > 0 {
		geoSuffix = " in " + strings.Join(profile.GeoEntities, ", ")
	}

	if profile.Credentials {
		recommendations = append(recommendations,
			"Rotate credentials in the compromised systems.",
			"Enable two-factor authentication (2FA).",
			fmt.Sprintf("Audit security at %s.", orgs),
		)
	}
	if profile.Personal {
		recommendations = append(recommendations,
			fmt.Sprintf("Notify affected users%s about the exposure.", geoSuffix),
			"Encrypt stored personal data.",
			"Review data-protection compliance.",
		)
	}
	if profile.Financial {
		recommendations = append(recommendations,
			"Block the compromised accounts.",
			"Set up transaction monitoring.",
			fmt.Sprintf("Contact the issuing banks%s.", geoSuffix),
		)
	}
	if profile.Health {
		recommendations = append(recommendations,
			"Notify healthcare regulators.",
			"Encrypt medical records.",
			"Train staff on handling patient data.",
		)
	}
	if profile.IntellectualProperty {
		recommendations = append(recommendations,
			"Review intellectual-property rights and licenses.",
			"Restrict access to confidential material.",
		)
	}
	if profile.Volume {
		recommendations = append(recommendations,
			"Scale the incident response to the reported volume.",
			fmt.Sprintf("Allocate additional analysis resources%s.", geoSuffix),
		)
	}
	if isLeak {
		recommendations = append(recommendations,
			"Investigate the leak origin and harden affected systems.",
		)
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Needs manual analysis to determine further actions.")
	}

	return recommendations
}

func joinOrDefault(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}
