package declaration

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DuplicateKey names the grouping a cluster was found by
type DuplicateKey string

const (
	DuplicateByInsuranceCode DuplicateKey = "insurance_code"
	DuplicateByFullName      DuplicateKey = "full_name"
)

// DuplicateMember is a participant inside a cluster, with a back-reference to its declaration
type DuplicateMember struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	DeclarationID uuid.UUID `json:"declaration_id"`
	Stt           int       `json:"stt"`
	FullName      string    `json:"full_name"`
	InsuranceCode string    `json:"insurance_code,omitempty"`
}

// DuplicateCluster is a group of two or more participants sharing a key value
type DuplicateCluster struct {
	Key     DuplicateKey      `json:"key"`
	Value   string            `json:"value"`
	Members []DuplicateMember `json:"members"`
}

// DuplicateDetector groups participants by insurance code and by normalized name.
// Participants are fed in batches so callers can page through large sets.
// A detector is not safe for concurrent use.
type DuplicateDetector struct {
	lower     cases.Caser
	byCode    map[string][]DuplicateMember
	codeOrder []string
	byName    map[string][]DuplicateMember
	nameOrder []string
	seen      int
}

// NewDuplicateDetector creates an empty detector
func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{
		lower:  cases.Lower(language.Vietnamese),
		byCode: make(map[string][]DuplicateMember),
		byName: make(map[string][]DuplicateMember),
	}
}

// Add feeds a batch of participants
func (d *DuplicateDetector) Add(participants ...Participant) {
	for i := range participants {
		p := &participants[i]
		d.seen++
		member := DuplicateMember{
			ParticipantID: p.ID,
			DeclarationID: p.DeclarationID,
			Stt:           p.Stt,
			FullName:      p.FullName,
		}
		if p.InsuranceCode != nil {
			member.InsuranceCode = strings.TrimSpace(*p.InsuranceCode)
		}

		if code := member.InsuranceCode; code != "" {
			if _, ok := d.byCode[code]; !ok {
				d.codeOrder = append(d.codeOrder, code)
			}
			d.byCode[code] = append(d.byCode[code], member)
		}
		if name := d.NormalizeName(p.FullName); name != "" {
			if _, ok := d.byName[name]; !ok {
				d.nameOrder = append(d.nameOrder, name)
			}
			d.byName[name] = append(d.byName[name], member)
		}
	}
}

// NormalizeName trims, composes and lower-cases a full name
func (d *DuplicateDetector) NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return d.lower.String(norm.NFC.String(name))
}

// Scanned returns how many participants have been fed so far
func (d *DuplicateDetector) Scanned() int {
	return d.seen
}

// Clusters returns insurance-code clusters first, then name clusters, each in first-seen order
func (d *DuplicateDetector) Clusters() []DuplicateCluster {
	clusters := make([]DuplicateCluster, 0)
	for _, code := range d.codeOrder {
		if members := d.byCode[code]; len(members) > 1 {
			clusters = append(clusters, DuplicateCluster{Key: DuplicateByInsuranceCode, Value: code, Members: members})
		}
	}
	for _, name := range d.nameOrder {
		if members := d.byName[name]; len(members) > 1 {
			clusters = append(clusters, DuplicateCluster{Key: DuplicateByFullName, Value: name, Members: members})
		}
	}
	return clusters
}

// DetectDuplicates runs a one-shot detection over an in-memory set
func DetectDuplicates(participants []Participant) []DuplicateCluster {
	detector := NewDuplicateDetector()
	detector.Add(participants...)
	return detector.Clusters()
}
