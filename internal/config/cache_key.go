package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey holds the JTI of the single live student session.
func (r *CacheKeyStruct) UserSessionKey(userID uuid.UUID) string {
	return fmt.Sprintf("login:%s", userID)
}

// ExamAnswerKey returns the cache key for an exam's answer key
func (r *CacheKeyStruct) ExamAnswerKey(examID uuid.UUID) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// SubmissionStreamKey marks the connection currently streaming a submission.
func (r *CacheKeyStruct) SubmissionStreamKey(submissionID uuid.UUID) string {
	return fmt.Sprintf("submission:%s:stream", submissionID)
}

var CacheKey = NewCacheKeyStruct()
