package survey

// Question identifies one survey column by its raw header text.
type Question string

// Record is one survey response row. Keys are shared with the table header,
// so every record exposes the same key set in the same order.
type Record struct {
	keys   []Question
	values []string
}

// NewRecord zips a header with one row of cells. The caller guarantees
// len(values) == len(keys).
func NewRecord(keys []Question, values []string) Record {
	return Record{keys: keys, values: values}
}

// Keys returns the record's questions in header order.
func (r Record) Keys() []Question {
	out := make([]Question, len(r.keys))
	copy(out, r.keys)
	return out
}

// Values returns the answers in header order.
func (r Record) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Get returns the answer for q and whether q is a key of the record.
func (r Record) Get(q Question) (string, bool) {
	for i, k := range r.keys {
		if k == q {
			return r.values[i], true
		}
	}
	return "", false
}

// Len is the number of keys.
func (r Record) Len() int { return len(r.keys) }

// Table is the decoded form of an upload: the header plus one Record per data row.
type Table struct {
	Header  []Question
	Records []Record
}

// AnswerSet holds every answer given to one question, in row order.
type AnswerSet []string

// PromptPair is the system instruction and user content sent for one question.
type PromptPair struct {
	System string
	User   string
}

// AnalysisResult pairs a question with the model output, or with an error
// marker when the invocation for that question failed.
type AnalysisResult struct {
	Question Question `json:"question"`
	Analysis string   `json:"analysis"`
	Error    string   `json:"error,omitempty"`
}

// Failed reports whether the result carries an error marker instead of model output.
func (r AnalysisResult) Failed() bool { return r.Error != "" }

// ResultCollection is the ordered output of one run, one entry per question.
type ResultCollection []AnalysisResult

// Failures counts error-marked entries.
func (c ResultCollection) Failures() int {
	n := 0
	for _, r := range c {
		if r.Failed() {
			n++
		}
	}
	return n
}
