package ai

// ConceptTypes defines the valid categories for extracted concepts.
// They are tuned for study material rather than conversation.
var ConceptTypes = []string{
	"abstract_concept",
	"algorithm",
	"artifact",
	"chemical",
	"date",
	"discipline",
	"event",
	"formula",
	"law",
	"location",
	"measurement",
	"method",
	"organism",
	"organization",
	"person",
	"process",
	"quantity",
	"software",
	"technology",
	"term",
	"theory",
	"work",
}
