package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchOutcomeValidate(t *testing.T) {
	jobID := "job-1"

	valid := MatchOutcome{EmailID: "email-1", JobID: &jobID, Method: MethodAuto, Score: 0.9}
	assert.NoError(t, valid.Validate())

	noMatch := MatchOutcome{EmailID: "email-1", Method: MethodAuto}
	assert.NoError(t, noMatch.Validate(), "nil job id records a no-match")

	noEmail := MatchOutcome{Method: MethodAuto}
	assert.Error(t, noEmail.Validate())

	badScore := MatchOutcome{EmailID: "email-1", Method: MethodAuto, Score: 1.2}
	assert.Error(t, badScore.Validate())

	badMethod := MatchOutcome{EmailID: "email-1", Method: MatchMethod("guess")}
	assert.Error(t, badMethod.Validate())

	emptyJob := ""
	emptyJobID := MatchOutcome{EmailID: "email-1", Method: MethodAuto, JobID: &emptyJob}
	assert.Error(t, emptyJobID.Validate())
}

func TestMatchCandidatesTop(t *testing.T) {
	assert.Nil(t, MatchCandidates{}.Top())

	candidates := MatchCandidates{
		{Job: JobCandidate{ID: "a"}, Composite: 0.9},
		{Job: JobCandidate{ID: "b"}, Composite: 0.8},
	}
	top := candidates.Top()
	assert.Equal(t, "a", top.Job.ID)
}

func TestTopNCopies(t *testing.T) {
	candidates := MatchCandidates{
		{Job: JobCandidate{ID: "a"}, Composite: 0.9},
		{Job: JobCandidate{ID: "b"}, Composite: 0.8},
	}

	top := candidates.TopN(2)
	top[0].Job.ID = "mutated"
	assert.Equal(t, "a", candidates[0].Job.ID, "TopN must not alias the source slice")
}
