package domain

// HistoryPage is one page of a conversation's message log, ordered by
// ascending sequence.
type HistoryPage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// NextAfter returns the cursor for the following page: the last sequence of
// this page, or 0 when the page is empty.
func (p *HistoryPage) NextAfter() int64 {
	if len(p.Messages) == 0 {
		return 0
	}
	return p.Messages[len(p.Messages)-1].Sequence
}
