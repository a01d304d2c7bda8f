package actor

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/ashureev/satty/internal/domain"
)

// wireInt is a 64-bit integer as the backend sends it. structpb carries
// numbers as float64, so the backend encodes timestamps and amounts as
// decimal strings. Bare numbers are still accepted for small values.
type wireInt int64

func (v *wireInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = 0
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return fmt.Errorf("int64 field: %w", err)
		}
		if s == "" {
			*v = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("int64 field %q: %w", s, err)
		}
		*v = wireInt(n)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err == nil {
		*v = wireInt(n)
		return nil
	}
	f, ferr := strconv.ParseFloat(string(b), 64)
	if ferr != nil {
		return fmt.Errorf("int64 field %s: %w", b, err)
	}
	*v = wireInt(f)
	return nil
}

type wireQuest struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	StartTime    wireInt  `json:"start_time"`
	EndTime      wireInt  `json:"end_time"`
	Reward       wireInt  `json:"reward"`
	Participants []string `json:"participants"`
}

func (q wireQuest) domain() domain.Quest {
	return domain.Quest{
		ID:           q.ID,
		Title:        q.Title,
		Description:  q.Description,
		StartTime:    int64(q.StartTime),
		EndTime:      int64(q.EndTime),
		Reward:       int64(q.Reward),
		Participants: q.Participants,
	}
}

type wireSubmission struct {
	QuestID        string  `json:"quest_id"`
	UserID         string  `json:"user_id"`
	SubmissionText string  `json:"submission_text"`
	Timestamp      wireInt `json:"timestamp"`
}

type wireProfile struct {
	ID          string           `json:"id"`
	Principal   string           `json:"principal"`
	Username    string           `json:"username"`
	Twitter     string           `json:"twitter"`
	Submissions []wireSubmission `json:"submissions"`
}

func (p wireProfile) domain() domain.UserProfile {
	out := domain.UserProfile{
		ID:        p.ID,
		Principal: p.Principal,
		Username:  p.Username,
		Twitter:   p.Twitter,
	}
	if p.Submissions != nil {
		out.Submissions = make([]domain.QuestSubmission, 0, len(p.Submissions))
	}
	for _, s := range p.Submissions {
		out.Submissions = append(out.Submissions, domain.QuestSubmission{
			QuestID:        s.QuestID,
			UserID:         s.UserID,
			SubmissionText: s.SubmissionText,
			Timestamp:      int64(s.Timestamp),
		})
	}
	return out
}

type wireWinner struct {
	QuestID string  `json:"quest_id"`
	UserID  string  `json:"user_id"`
	Amount  wireInt `json:"amount"`
}

func (w wireWinner) domain() domain.Winner {
	return domain.Winner{QuestID: w.QuestID, UserID: w.UserID, Amount: int64(w.Amount)}
}
