// Package segment splits composite documents into typed, role-tagged
// sections and filters out the ones that should not be extracted.
package segment

// Pedagogical roles. META marks non-content such as covers and contents pages.
const (
	RoleActivate  = "ACTIVATE"
	RoleInput     = "INPUT"
	RoleCheck     = "CHECK"
	RoleProduce   = "PRODUCE"
	RoleReflect   = "REFLECT"
	RoleReference = "REFERENCE"
	RoleMeta      = "META"
)

var roles = map[string]bool{
	RoleActivate: true, RoleInput: true, RoleCheck: true, RoleProduce: true,
	RoleReflect: true, RoleReference: true, RoleMeta: true,
}

// Filter actions.
const (
	ActionExtract   = "extract"
	ActionReference = "reference"
)

// Section is a half-open byte range [StartOffset, EndOffset) of the text.
type Section struct {
	Title           string `json:"title"`
	StartOffset     int    `json:"startOffset"`
	EndOffset       int    `json:"endOffset"`
	SectionType     string `json:"sectionType,omitempty"`
	PedagogicalRole string `json:"pedagogicalRole"`
	HasQuestions    bool   `json:"hasQuestions"`
	HasAnswerKey    bool   `json:"hasAnswerKey"`
	FilterAction    string `json:"filterAction,omitempty"`
}

// Text returns the section's slice of full.
func (s Section) Text(full string) string {
	return full[s.StartOffset:s.EndOffset]
}

// Len is the section length in bytes.
func (s Section) Len() int {
	return s.EndOffset - s.StartOffset
}

// Segmentation is the segmenter's result. Sections are ordered and
// non-overlapping.
type Segmentation struct {
	IsComposite bool      `json:"isComposite"`
	Sections    []Section `json:"sections"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// Whole is the single-section view of text used for short documents and
// every failure path.
func Whole(text string, warnings ...string) Segmentation {
	return Segmentation{
		Sections: []Section{{
			Title:           "Full document",
			StartOffset:     0,
			EndOffset:       len(text),
			PedagogicalRole: RoleInput,
		}},
		Warnings: warnings,
	}
}
