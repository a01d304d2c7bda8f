package domain

// The types below mirror the backend schema. They carry no behavior; the
// backend owns validation.

// Quest is a time-bounded task with a reward.
type Quest struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
	Reward       int64    `json:"reward"`
	Participants []string `json:"participants"`
}

// UserProfile is a participant's public profile.
type UserProfile struct {
	ID          string            `json:"id"`
	Principal   string            `json:"principal"`
	Username    string            `json:"username"`
	Twitter     string            `json:"twitter"`
	Submissions []QuestSubmission `json:"submissions"`
}

// QuestSubmission is one answer submitted to a quest.
type QuestSubmission struct {
	QuestID        string `json:"quest_id"`
	UserID         string `json:"user_id"`
	SubmissionText string `json:"submission_text"`
	Timestamp      int64  `json:"timestamp"`
}

// Winner is a payout record for a quest.
type Winner struct {
	QuestID string `json:"quest_id"`
	UserID  string `json:"user_id"`
	Amount  int64  `json:"amount"`
}
