package signals

import (
	"regexp"
	"sort"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// Profile holds the boolean category signals and extracted entities for one
// entry. Derived purely from text and never mutated afterwards.
type Profile struct {
	Credentials          bool `json:"credentials"`
	Personal             bool `json:"personal"`
	Financial            bool `json:"financial"`
	Health               bool `json:"health"`
	IntellectualProperty bool `json:"intellectual_property"`
	Volume               bool `json:"volume"`
	LeakLanguage         bool `json:"leak_language"`
	HasServiceEntity     bool `json:"has_service_entity"`

	GeoEntities []string `json:"geo_entities"`
	OrgEntities []string `json:"org_entities"`
}

// HasCategory reports whether any qualitative data category fired. Volume
// and leak language are not categories.
func (p Profile) HasCategory() bool {
	return p.Credentials || p.Personal || p.Financial || p.Health || p.IntellectualProperty
}

// Term lists are matched as case-insensitive stems so common inflections
// still hit.
var (
	credentialTerms = []string{"парол", "password", "ключ", "token", "секрет", "auth"}
	personalTerms   = []string{"почта", "email", "телефон", "имя", "фамили", "адрес", "фио", "снилс", "паспорт"}
	financialTerms  = []string{"карта", "счёт", "банковск", "кредит", "платёж", "аккаунт"}
	healthTerms     = []string{"здоровье", "диагноз", "лечение", "больниц", "пациент"}
	ipTerms         = []string{"патент", "авторское право", "исходный код", "source code"}
	leakTerms       = []string{"утечк", "слив", "хакер", "взлом", "leak", "breach", "доступ"}
)

var volumeRE = regexp.MustCompile(`(?i)\d+\s*(тыс\.?|тысяч|млн|миллион\p{Ll}*|млрд|гб|gb|тб|tb|records|записей)`)

// knownOrgs is the fixed organization gazetteer. Matched case-sensitively,
// names are proper nouns.
var knownOrgs = []string{
	"Газета.Ru",
	"Московский институт психоанализа",
	"4Chan",
	"Steam",
	"ЦАМ",
	"ПРАВОКАРД",
}

var knownGeo = []string{
	"Австралия",
	"Санкт-Петербург",
	"Москва",
	"Россия",
}

// managementCompanyRE matches "УК <Name>" style org references.
var managementCompanyRE = regexp.MustCompile(`УК [А-Я][а-я]+(?: [А-Я][а-я]+)*`)

// capitalizedPhraseRE is the heuristic for "this text names a concrete
// entity": two or more adjacent capitalized words.
var capitalizedPhraseRE = regexp.MustCompile(`\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)+`)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract derives the signal profile for one text. Deterministic.
func (e *Extractor) Extract(text string) Profile {
	lower := strings.ToLower(text)

	profile := Profile{
		Credentials:          containsAny(lower, credentialTerms),
		Personal:             containsAny(lower, personalTerms),
		Financial:            containsAny(lower, financialTerms),
		Health:               containsAny(lower, healthTerms),
		IntellectualProperty: containsAny(lower, ipTerms),
		Volume:               volumeRE.MatchString(text),
		LeakLanguage:         containsAny(lower, leakTerms),
	}

	// The boolean depends only on the fixed gazetteer and the phrase
	// heuristics, so scoring stays deterministic. NER output enriches the
	// entity name sets but never flips the signal.
	profile.HasServiceEntity = containsKnownOrg(text) ||
		managementCompanyRE.MatchString(text) ||
		capitalizedPhraseRE.MatchString(text)

	profile.GeoEntities, profile.OrgEntities = extractEntities(text)

	return profile
}

func containsKnownOrg(text string) bool {
	for _, name := range knownOrgs {
		if strings.Contains(text, name) {
			return true
		}
	}
	return false
}

func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func extractEntities(text string) (geo, org []string) {
	geoSet := make(map[string]struct{})
	orgSet := make(map[string]struct{})

	for _, name := range knownGeo {
		if strings.Contains(text, name) {
			geoSet[name] = struct{}{}
		}
	}
	for _, name := range knownOrgs {
		if strings.Contains(text, name) {
			orgSet[name] = struct{}{}
		}
	}
	for _, match := range managementCompanyRE.FindAllString(text, -1) {
		orgSet[match] = struct{}{}
	}

	// NER supplements the gazetteer for names it does not know.
	if doc, err := prose.NewDocument(text); err == nil {
		for _, ent := range doc.Entities() {
			switch ent.Label {
			case "GPE":
				geoSet[ent.Text] = struct{}{}
			case "ORG":
				orgSet[ent.Text] = struct{}{}
			}
		}
	}

	return sortedKeys(geoSet), sortedKeys(orgSet)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
