package scoring

// Category is a built-in keyword list with its weight multiplier.
type Category struct {
	Name     string
	Weight   float64
	Keywords []string
}

// DefaultCategories are the domain keyword lists used for relevance.
var DefaultCategories = []Category{
	{
		Name:   "technology",
		Weight: 1.0,
		Keywords: []string{
			"software", "cloud", "cybersecurity", "information technology", "data analytics",
			"artificial intelligence", "machine learning", "network", "database", "web development",
			"it support", "digital transformation", "help desk", "devops", "saas",
		},
	},
	{
		Name:   "professional_services",
		Weight: 0.9,
		Keywords: []string{
			"engineering", "architecture", "legal", "accounting", "auditing",
			"program management", "research", "technical assistance", "evaluation", "advisory",
		},
	},
	{
		Name:   "business_services",
		Weight: 0.8,
		Keywords: []string{
			"consulting", "management", "marketing", "staffing", "logistics",
			"call center", "administrative support", "translation", "printing", "facilities",
		},
	},
	{
		Name:   "healthcare",
		Weight: 0.7,
		Keywords: []string{
			"health", "medical", "clinical", "hospital", "pharmaceutical",
			"telehealth", "behavioral health", "public health", "nursing",
		},
	},
	{
		Name:   "education",
		Weight: 0.6,
		Keywords: []string{
			"education", "curriculum", "school", "university", "e-learning",
			"workforce development", "teacher", "student", "literacy",
		},
	},
}

type setAsideProgram struct {
	name       string
	indicators []string
}

var setAsidePrograms = []setAsideProgram{
	{"small business", []string{"small business", "sba", "total small"}},
	{"veteran-owned", []string{"veteran", "sdvosb", "vosb", "service-disabled"}},
	{"women-owned", []string{"women-owned", "woman-owned", "wosb", "edwosb"}},
	{"minority-owned", []string{"minority", "8(a)", "8a", "disadvantaged", "hubzone"}},
}

var nicheKeywords = []string{
	"specialized", "niche", "proprietary", "sole source", "unique capability",
	"highly technical", "specific expertise", "limited competition",
}

var complexityIndicators = []string{
	"compliance", "certification", "clearance", "bonding", "insurance",
}
