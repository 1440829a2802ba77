package survey

// ExtractQuestions returns the table's questions in header order.
// A header with no data rows is valid and still yields every question.
func ExtractQuestions(t Table) ([]Question, error) {
	if len(t.Header) == 0 {
		return nil, &EmptyInputError{Reason: "no header columns"}
	}
	seen := make(map[Question]struct{}, len(t.Header))
	out := make([]Question, 0, len(t.Header))
	for _, q := range t.Header {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out, nil
}

// AnswersFor collects the answers to q across all records, in row order.
func AnswersFor(t Table, q Question) AnswerSet {
	out := make(AnswerSet, 0, len(t.Records))
	for _, r := range t.Records {
		v, _ := r.Get(q)
		out = append(out, v)
	}
	return out
}
