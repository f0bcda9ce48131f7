package tracker

import (
	"time"

	"jobhunter/internal/ai"
	"jobhunter/internal/classifier"
	"jobhunter/internal/filter"
	"jobhunter/internal/posting"
)

// Job is the tracked record of one deduplicated posting: the posting itself
// plus every decision the pipeline made about it.
type Job struct {
	Posting        posting.Posting    `json:"posting"`
	Verdict        *filter.Verdict    `json:"verdict,omitempty"`
	Classification *classifier.Result `json:"classification,omitempty"`
	External       *ai.ExternalScore  `json:"external,omitempty"`

	RuleScore  float64 `json:"rule_score"`
	FinalScore float64 `json:"final_score"`

	Status             Status     `json:"status"`
	ResumeArtifactPath string     `json:"resume_artifact_path,omitempty"`
	AppliedAt          *time.Time `json:"applied_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ID is the posting fingerprint, which doubles as the job's identity.
func (j *Job) ID() string {
	return j.Posting.ID
}
