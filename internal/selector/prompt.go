package selector

import (
	"fmt"
	"strings"

	"github.com/mr1hm/go-saferoute/internal/models"
)

const systemPrompt = `You are an emergency response coordinator with detailed knowledge of natural disasters and of what emergency facilities can offer. Analyze the disaster scenario and the available facilities and recommend the single most appropriate facility for immediate assistance.

Weigh:
1. Disaster type and severity
2. Facility type and likely capabilities
3. Distance from the user
4. Capacity by facility type (hospitals > clinics > pharmacies)
5. Fitness for this specific disaster (flood victims need hospitals that can evacuate, for example)

Respond ONLY with valid JSON in exactly this format:
{
  "recommendedFacility": "<facility id from the list>",
  "score": 95,
  "reasoning": "why this facility is the best choice",
  "priority": "highest | high | medium | low",
  "alternativeFacilities": [{"buildingId": "<facility id>", "score": 80, "reasoning": "..."}]
}`

func buildPrompt(disasterType string, a models.DisasterAssessment, facilities []models.Facility) string {
	var b strings.Builder

	b.WriteString("DISASTER SCENARIO:\n")
	fmt.Fprintf(&b, "- Type: %s\n", disasterType)
	fmt.Fprintf(&b, "- Risk Level: %s\n", a.RiskLevel)
	fmt.Fprintf(&b, "- Probability: %.0f%%\n", a.Probability*100)
	fmt.Fprintf(&b, "- Analysis: %s\n", orDefault(a.Analysis, "Not provided"))
	fmt.Fprintf(&b, "- Recommendations: %s\n", orDefault(strings.Join(a.Recommendations, ", "), "None"))

	b.WriteString("\nAVAILABLE EMERGENCY FACILITIES:\n")
	for i, f := range facilities {
		fmt.Fprintf(&b, "\n%d. ID: %s\n", i+1, f.ID)
		fmt.Fprintf(&b, "   Name: %s\n", f.Name)
		fmt.Fprintf(&b, "   Type: %s\n", f.Category)
		fmt.Fprintf(&b, "   Distance: %s\n", formatDistance(f, "Unknown"))
		fmt.Fprintf(&b, "   Address: %s\n", orDefault(f.Address, "Not provided"))
		fmt.Fprintf(&b, "   Phone: %s\n", orDefault(f.Phone, "Not provided"))
	}

	fmt.Fprintf(&b, "\nFor a %q emergency, which facility is most appropriate for immediate response? "+
		"Consider its capabilities for this disaster type, distance and accessibility, likely resources, "+
		"and the kind of help needed (hospitals for severe injuries, clinics for minor issues, pharmacies for medication).\n",
		disasterType)

	return b.String()
}

func formatDistance(f models.Facility, unknown string) string {
	d, ok := f.Distance()
	if !ok {
		return unknown
	}
	return fmt.Sprintf("%.2f km", d/1000)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
